package model

import "time"

const (
	ZoneUnderground = "underground"
	ZoneOutdoor     = "outdoor"
)

// Spot is a parking spot in the catalog. Assignment fields are mutated only
// through the assignment service; everyone else reads them.
type Spot struct {
	ID                 string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	Number             int       `json:"number" bson:"number" validate:"required,min=1"`
	Zone               string    `json:"zone" bson:"zone" validate:"required,oneof=underground outdoor"`
	AssignedEmployeeID string    `json:"assigned_employee_id,omitempty" bson:"assigned_employee_id,omitempty"`
	AssignedName       string    `json:"assigned_name,omitempty" bson:"assigned_name,omitempty"`
	CreatedAt          time.Time `json:"created_at" bson:"created_at"`
}

func (s *Spot) Assigned() bool {
	return s.AssignedEmployeeID != ""
}
