package models

import "time"

// SharedPackage is a signed bundle of memory items exported for transfer
// into another thread (possibly in another deployment).
type SharedPackage struct {
	ID        string    `json:"id" db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	Payload   JSONMap   `json:"payload" db:"payload"`
	Signature string    `json:"signature" db:"signature"`
	Meta      JSONMap   `json:"meta" db:"meta"`
}
