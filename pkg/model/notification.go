package model

import "time"

const (
	EventTypeSpotReleased = "parking.spot.released"
)

// SpotReleasedEvent is published when a day first transitions to released,
// so interested employees can be notified that the spot became bookable.
type SpotReleasedEvent struct {
	SpotID     string    `json:"spot_id"`
	SpotNumber int       `json:"spot_number"`
	SpotZone   string    `json:"spot_zone"`
	Date       string    `json:"date"`
	MarkedBy   string    `json:"marked_by"`
	OccurredAt time.Time `json:"occurred_at"`
}
