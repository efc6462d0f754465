package websocket

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connFromBytes(data []byte) *conn {
	return newConn(bufio.NewReadWriter(
		bufio.NewReader(bytes.NewReader(data)),
		bufio.NewWriter(io.Discard),
	))
}

func TestConn_ReadRequest(t *testing.T) {
	t.Run("Round-trips an unmasked text frame", func(t *testing.T) {
		// Given: a frame written by our own codec
		var buf bytes.Buffer
		bufrw := bufio.NewReadWriter(bufio.NewReader(&buf), bufio.NewWriter(&buf))

		payload := []byte(`{"action":"room:play"}`)
		require.NoError(t, writeFrame(bufrw, frame{
			isFin:   true,
			opCode:  opCodeText,
			length:  uint64(len(payload)),
			payload: payload,
		}))

		// When: the frame is read back
		got, err := newConn(bufrw).readRequest()

		// Then: the payload survives intact
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	})

	t.Run("Unmasks a masked client frame", func(t *testing.T) {
		// Given: a masked frame as a browser would send it
		payload := []byte("hello")
		mask := []byte{0x01, 0x02, 0x03, 0x04}

		data := []byte{0x80 | opCodeText, 0x80 | byte(len(payload))}
		data = append(data, mask...)
		for i, b := range payload {
			data = append(data, b^mask[i%4])
		}

		got, err := connFromBytes(data).readRequest()

		require.NoError(t, err)
		assert.Equal(t, payload, got)
	})

	t.Run("Reports a close frame as EOF", func(t *testing.T) {
		got, err := connFromBytes([]byte{0x80 | opCodeClose, 0x00}).readRequest()

		assert.ErrorIs(t, err, io.EOF)
		assert.Nil(t, got)
	})

	t.Run("Rejects an oversized declared length before allocating", func(t *testing.T) {
		// Given: a header claiming a multi-gigabyte payload
		data := []byte{0x80 | opCodeText, 127}
		size := make([]byte, 8)
		binary.BigEndian.PutUint64(size, 1<<32)
		data = append(data, size...)

		// When: the frame is read
		_, err := connFromBytes(data).readRequest()

		// Then: it is refused without touching the payload
		assert.ErrorIs(t, err, errFrameTooLarge)
	})
}
