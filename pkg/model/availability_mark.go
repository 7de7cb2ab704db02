package model

import "time"

// AvailabilityMark records, per (spot, day), whether the holder has released
// the spot for that day. Unique per (spot_id, date); writes are upserts so a
// retried request lands on the same row.
type AvailabilityMark struct {
	ID        string    `json:"id,omitempty" bson:"_id,omitempty"`
	SpotID    string    `json:"spot_id" bson:"spot_id" validate:"required,mongodb"`
	Date      time.Time `json:"date" bson:"date" validate:"required"`
	Released  bool      `json:"released" bson:"released"`
	MarkedBy  string    `json:"marked_by" bson:"marked_by" validate:"required,mongodb"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// AvailabilityRequest is the payload for marking days released or reclaimed.
type AvailabilityRequest struct {
	Dates    []string `json:"dates" validate:"required,min=1,dive,required"`
	Released bool     `json:"released"`
}
