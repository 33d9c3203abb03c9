package model

import "time"

// DoctorLock is an advisory lock held for the read-modify-write of a single
// doctor record. The _id is the doctor id, so a second holder fails on insert.
type DoctorLock struct {
	ID        string    `bson:"_id" json:"id"`
	Owner     string    `bson:"owner" json:"owner"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
