package models

import "time"

// UserStation links a user to a station in their saved list.
// The (user_id, station_id) pair is unique; inserts are idempotent.
type UserStation struct {
	UserID    string    `json:"user_id"`
	StationID int64     `json:"station_id"`
	AddedAt   time.Time `json:"added_at"`
}

// RevalidationStats is the snapshot persisted after each full revalidation pass.
type RevalidationStats struct {
	Online    int       `json:"online"`
	Total     int       `json:"total"`
	CreatedAt time.Time `json:"created_at"`
}
