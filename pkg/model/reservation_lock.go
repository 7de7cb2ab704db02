package model

import "time"

// ReservationLock is an advisory lock narrowing the race window while a
// reserve request runs its checks. The unique _id encodes the slot; a TTL
// index on expires_at clears locks abandoned by crashed requests.
type ReservationLock struct {
	ID        string    `bson:"_id" json:"id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
