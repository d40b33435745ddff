package models

import (
	"fmt"
	"time"
)

// PINStatus tracks the lifecycle of an enrollment identifier.
type PINStatus string

const (
	PINStatusAvailable  PINStatus = "available"
	PINStatusRegistered PINStatus = "registered"
	PINStatusBlocked    PINStatus = "blocked"
)

// InstitutionCode is the fixed code embedded in every PIN number.
const InstitutionCode = "030"

// BranchCodes lists the branch codes PINs can be scoped to.
var BranchCodes = []string{"CME", "CE", "M", "ECE", "EEE", "CIOT", "AIML"}

// IsValidBranch reports whether the code belongs to the fixed branch set.
func IsValidBranch(code string) bool {
	for _, b := range BranchCodes {
		if b == code {
			return true
		}
	}
	return false
}

// StudentPIN represents one claimable enrollment slot in the student_pins table.
// The pin_number is derived once at creation from the scope and sequence and is
// never recomputed; it is the external identifier students enter at registration.
type StudentPIN struct {
	PINNumber   string    `db:"pin_number" json:"pin_number"`
	JoiningYear int       `db:"joining_year" json:"joining_year"`
	Branch      string    `db:"branch" json:"branch"`
	Year        int       `db:"year" json:"year"`
	Section     string    `db:"section" json:"section"`
	PINSequence int       `db:"pin_sequence" json:"pin_sequence"`
	Status      PINStatus `db:"status" json:"status"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// PINScope identifies the (joining year, branch, year, section) bucket a PIN
// belongs to.
type PINScope struct {
	JoiningYear int    `json:"joining_year"`
	Branch      string `json:"branch"`
	Year        int    `json:"year"`
	Section     string `json:"section"`
}

// FormatPINNumber composes the durable identifier: YY + institution code,
// branch code, and a zero-padded 3-digit sequence.
func FormatPINNumber(joiningYear int, branch string, sequence int) string {
	return fmt.Sprintf("%02d%s-%s-%03d", joiningYear%100, InstitutionCode, branch, sequence)
}

// PINStats aggregates the allocator dataset for the admin dashboard.
type PINStats struct {
	Total        int `db:"total" json:"total"`
	Available    int `db:"available" json:"available"`
	Registered   int `db:"registered" json:"registered"`
	Blocked      int `db:"blocked" json:"blocked"`
	JoiningYears int `db:"joining_years" json:"joining_years"`
	Branches     int `db:"branches" json:"branches"`
	Sections     int `db:"sections" json:"sections"`
}

// RosterRow pairs an identifier with the account that claimed it, if any.
// Rows for unclaimed identifiers carry null student columns.
type RosterRow struct {
	PINNumber   string    `db:"pin_number" json:"pin_number"`
	PINSequence int       `db:"pin_sequence" json:"pin_sequence"`
	Status      PINStatus `db:"status" json:"status"`
	FullName    *string   `db:"full_name" json:"full_name,omitempty"`
	Email       *string   `db:"email" json:"email,omitempty"`
	Phone       *string   `db:"phone" json:"phone,omitempty"`
}

// PINDeleteResult reports the outcome of a cascading PIN delete.
type PINDeleteResult struct {
	PINNumber       string `json:"pin_number"`
	StudentDeleted  bool   `json:"student_deleted"`
	ProductsDeleted int    `json:"products_deleted"`
}

// PINDeleteFailure records one failed entry in a bulk delete batch.
type PINDeleteFailure struct {
	PINNumber string `json:"pin_number"`
	Message   string `json:"message"`
}

// BulkDeleteResult aggregates best-effort bulk delete processing.
type BulkDeleteResult struct {
	Deleted         int                `json:"deleted"`
	Failed          int                `json:"failed"`
	StudentsDeleted int                `json:"students_deleted"`
	ProductsDeleted int                `json:"products_deleted"`
	Failures        []PINDeleteFailure `json:"failures,omitempty"`
}
