package models

import "time"

// StudentStatus reflects the account lifecycle after a PIN is claimed.
type StudentStatus string

const (
	StudentStatusPending StudentStatus = "pending"
	StudentStatusActive  StudentStatus = "active"
	StudentStatusBlocked StudentStatus = "blocked"
)

// Student is an account bound to exactly one claimed PIN.
type Student struct {
	ID                string        `db:"id" json:"id"`
	PINNumber         string        `db:"pin_number" json:"pin_number"`
	FullName          string        `db:"full_name" json:"full_name"`
	Email             string        `db:"email" json:"email"`
	Phone             string        `db:"phone" json:"phone"`
	WhatsApp          string        `db:"whatsapp" json:"whatsapp"`
	PasswordHash      string        `db:"password_hash" json:"-"`
	Status            StudentStatus `db:"status" json:"status"`
	VerificationToken *string       `db:"verification_token" json:"-"`
	CreatedAt         time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time     `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Status    *StudentStatus
	Branch    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// StudentDetail joins a student with the scope of the PIN it claimed.
type StudentDetail struct {
	Student
	JoiningYear int    `db:"joining_year" json:"joining_year"`
	Branch      string `db:"branch" json:"branch"`
	Year        int    `db:"year" json:"year"`
	Section     string `db:"section" json:"section"`
}
