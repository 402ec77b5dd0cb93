package entity

import "time"

// TimelineEntry is one element of a dispute's append-only timeline.
type TimelineEntry struct {
	Actor   string    `json:"actor"`
	Role    string    `json:"role"`
	Message string    `json:"message"`
	Type    string    `json:"type"`
	At      time.Time `json:"at"`
}

type Dispute struct {
	ID        string          `json:"id" db:"id"`
	BookingID string          `json:"booking_id" db:"booking_id"`
	Status    string          `json:"status" db:"status"`
	Timeline  []TimelineEntry `json:"timeline" db:"timeline"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}
