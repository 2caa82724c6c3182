package models

import "time"

// User is a back-office staff account.
type User struct {
	ID           int64     `json:"id" db:"id"`
	Email        string    `json:"email" db:"email" validate:"required,email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         string    `json:"role" db:"role"` // ADMIN or STAFF
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}
