package models

import (
	"fmt"
	"net/mail"
	"strings"
)

// User is an account as listed by the backend's admin endpoints.
type User struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
	NSUID string `json:"nsu_id,omitempty"`
}

// UserList is the /auth/users response.
type UserList struct {
	Users []User `json:"users"`
}

// NewTeacher is the body posted to create a teacher account.
type NewTeacher struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks the fields the backend requires.
func (t *NewTeacher) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if _, err := mail.ParseAddress(t.Email); err != nil {
		return fmt.Errorf("invalid email %q", t.Email)
	}
	if t.Password == "" {
		return fmt.Errorf("password is required")
	}
	return nil
}

// CreatedUser is the response to a successful account creation.
type CreatedUser struct {
	Success bool `json:"success"`
	User    User `json:"user"`
}
