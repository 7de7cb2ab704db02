package model

import "time"

const (
	ReservationActive    = "ACTIVE"
	ReservationCancelled = "CANCELLED"
)

// Reservation is a booking of one spot for one calendar day. For any
// (spot_id, date) at most one row may hold status ACTIVE; cancelled rows are
// kept for history and never deleted.
type Reservation struct {
	ID          string     `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	SpotID      string     `json:"spot_id" bson:"spot_id" validate:"required,mongodb"`
	EmployeeID  string     `json:"employee_id" bson:"employee_id" validate:"required,mongodb"`
	Date        time.Time  `json:"date" bson:"date" validate:"required"`
	Status      string     `json:"status" bson:"status" validate:"required,oneof=ACTIVE CANCELLED"`
	CreatedAt   time.Time  `json:"created_at" bson:"created_at"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`
}

func (r *Reservation) Active() bool {
	return r.Status == ReservationActive
}

// ReservationDetail is a reservation joined with the display fields clients
// render: the spot number/zone and the booking employee's name.
type ReservationDetail struct {
	Reservation  `bson:",inline"`
	SpotNumber   int    `json:"spot_number" bson:"spot_number"`
	SpotZone     string `json:"spot_zone" bson:"spot_zone"`
	EmployeeName string `json:"employee_name" bson:"employee_name"`
}

// ReservationRequest is the payload for booking a released spot.
type ReservationRequest struct {
	SpotID string `json:"spot_id" validate:"required,mongodb"`
	Date   string `json:"date" validate:"required"`
}
