package entity

import "time"

// User is a durable account record.
type User struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Balance     int64     `json:"balance"`
	GamesPlayed int       `json:"games_played"`
	GamesWon    int       `json:"games_won"`
	CreatedAt   time.Time `json:"created_at"`
}
