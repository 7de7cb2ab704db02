package model

import "time"

// Employee carries the subset of the personnel record the reservation core
// needs: role and the spot back-reference. The back-reference and
// Spot.AssignedEmployeeID must always agree or both be empty.
type Employee struct {
	ID             string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	Name           string    `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Role           Role      `json:"role" bson:"role" validate:"required,oneof=general direction admin"`
	AssignedSpotID string    `json:"assigned_spot_id,omitempty" bson:"assigned_spot_id,omitempty"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
}

func (e *Employee) HoldsSpot() bool {
	return e.AssignedSpotID != ""
}
