// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data, similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import "time"

// User represents a registered gym member.
//
// Email, Phone and CPF are each unique across all users. The uniqueness is
// checked by the service before writing and backed by UNIQUE constraints in
// the database, so a racing duplicate still fails at write time.
//
// WHY PasswordHash HAS json:"-"?
// The "-" tag tells encoding/json to skip the field entirely. A bcrypt hash
// is not the password, but it is still an offline brute-force target and
// has no business leaving the server.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	CPF          string    `json:"cpf"`
	DateBirth    *Date     `json:"dateBirth,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}
