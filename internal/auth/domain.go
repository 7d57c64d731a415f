// Package auth implements the authentication service: user accounts, password
// verification, JWT issuance and validation, and the auth activity log.
package auth

import (
	"regexp"
	"strings"
	"time"

	"github.com/intelligence-service/platform/internal/errors"
)

// Role is a user role.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleCommander Role = "commander"
	RoleField     Role = "field"
)

// ClearanceLevel is a security clearance level.
type ClearanceLevel string

const (
	ClearanceTopSecret    ClearanceLevel = "top_secret"
	ClearanceSecret       ClearanceLevel = "secret"
	ClearanceConfidential ClearanceLevel = "confidential"
)

// matriculePattern is the service number format: two letters, dash, four
// digits, one letter (e.g. AF-1234P).
var matriculePattern = regexp.MustCompile(`^[A-Z]{2}-\d{4}[A-Z]$`)

// User is a platform user account.
type User struct {
	ID             string         `json:"id"`
	Matricule      string         `json:"matricule"`
	FullName       string         `json:"full_name"`
	Email          string         `json:"email"`
	HashedPassword string         `json:"-"`
	Role           Role           `json:"role"`
	ClearanceLevel ClearanceLevel `json:"clearance_level"`
	IsActive       bool           `json:"is_active"`
	LastLogin      time.Time      `json:"last_login,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// ValidRole reports whether the role is one of the known roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleCommander, RoleField:
		return true
	}
	return false
}

// ValidClearance reports whether the clearance level is known.
func ValidClearance(c ClearanceLevel) bool {
	switch c {
	case ClearanceTopSecret, ClearanceSecret, ClearanceConfidential:
		return true
	}
	return false
}

// ValidMatricule reports whether the matricule has the XX-9999X format.
func ValidMatricule(m string) bool {
	return matriculePattern.MatchString(m)
}

// CreateUserInput carries the fields for creating a user.
type CreateUserInput struct {
	Matricule      string         `json:"matricule"`
	FullName       string         `json:"full_name"`
	Email          string         `json:"email"`
	Password       string         `json:"password"`
	Role           Role           `json:"role"`
	ClearanceLevel ClearanceLevel `json:"clearance_level"`
	IsActive       *bool          `json:"is_active,omitempty"`
}

// Validate checks the input fields.
func (in CreateUserInput) Validate() error {
	if !ValidMatricule(in.Matricule) {
		return errors.BadRequest("matricule must have format XX-9999X (e.g. AF-1234P)")
	}
	if strings.TrimSpace(in.FullName) == "" {
		return errors.BadRequest("full_name is required")
	}
	if !validEmail(in.Email) {
		return errors.BadRequest("email is invalid")
	}
	if len(in.Password) < 8 {
		return errors.BadRequest("password must be at least 8 characters")
	}
	if !ValidRole(in.Role) {
		return errors.BadRequest("role must be one of: admin, commander, field")
	}
	if !ValidClearance(in.ClearanceLevel) {
		return errors.BadRequest("clearance_level must be one of: top_secret, secret, confidential")
	}
	return nil
}

// UpdateUserInput carries the optional fields for updating a user. Nil
// pointers leave the corresponding field unchanged.
type UpdateUserInput struct {
	FullName       *string         `json:"full_name,omitempty"`
	Email          *string         `json:"email,omitempty"`
	Password       *string         `json:"password,omitempty"`
	Role           *Role           `json:"role,omitempty"`
	ClearanceLevel *ClearanceLevel `json:"clearance_level,omitempty"`
	IsActive       *bool           `json:"is_active,omitempty"`
}

// Validate checks the provided fields.
func (in UpdateUserInput) Validate() error {
	if in.Email != nil && !validEmail(*in.Email) {
		return errors.BadRequest("email is invalid")
	}
	if in.Password != nil && len(*in.Password) < 8 {
		return errors.BadRequest("password must be at least 8 characters")
	}
	if in.Role != nil && !ValidRole(*in.Role) {
		return errors.BadRequest("role must be one of: admin, commander, field")
	}
	if in.ClearanceLevel != nil && !ValidClearance(*in.ClearanceLevel) {
		return errors.BadRequest("clearance_level must be one of: top_secret, secret, confidential")
	}
	return nil
}

// ListFilter selects users in List operations.
type ListFilter struct {
	Role      Role
	Clearance ClearanceLevel
	IsActive  *bool
	Search    string
	Offset    int
	Limit     int
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

func validEmail(email string) bool {
	return emailPattern.MatchString(email)
}
