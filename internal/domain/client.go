package domain

import "time"

// ============================================================
// Clients
// ============================================================

// Person is the identity record of a client.
type Person struct {
	Name           string `json:"name"`
	Gender         string `json:"gender,omitempty"`
	Age            int    `json:"age,omitempty"`
	Identification string `json:"identification"`
	Address        string `json:"address,omitempty"`
	Phone          string `json:"phone,omitempty"`
}

// Client owns zero or more accounts. Deactivating a client cascades to its
// accounts through DEACTIVATE movements, never through the data itself.
type Client struct {
	ID           int64     `json:"id"`
	Person       Person    `json:"person"`
	PasswordHash string    `json:"-"`
	Active       bool      `json:"active"`
	Deleted      bool      `json:"deleted"`
	CreatedAt    time.Time `json:"created_at"`
}

// Name is a shorthand for the client's identity name.
func (c *Client) Name() string {
	return c.Person.Name
}

// ClientInput is used to create or update a client.
type ClientInput struct {
	Person   Person
	Password string
}

// Validate checks the field-level constraints of a client payload.
// requirePassword is false on updates, where an empty password keeps the
// current one.
func (in ClientInput) Validate(requirePassword bool) error {
	if in.Person.Name == "" {
		return &ErrValidation{Field: "name", Message: "is required"}
	}
	if in.Person.Identification == "" {
		return &ErrValidation{Field: "identification", Message: "is required"}
	}
	if len(in.Person.Identification) > 20 {
		return &ErrValidation{Field: "identification", Message: "must not exceed 20 characters"}
	}
	if in.Person.Age < 0 {
		return &ErrValidation{Field: "age", Message: "must not be negative"}
	}
	if requirePassword && in.Password == "" {
		return &ErrValidation{Field: "password", Message: "is required"}
	}
	return nil
}

// ActivationAccount describes one account a caller may choose to reactivate.
type ActivationAccount struct {
	ID      int64  `json:"id"`
	Number  string `json:"number"`
	Type    string `json:"type"`
	Active  bool   `json:"active"`
	Deleted bool   `json:"deleted"`
}

// ActivationStatus is returned when validating a client activation.
type ActivationStatus struct {
	ClientID     int64               `json:"client_id"`
	ClientActive bool                `json:"client_active"`
	Accounts     []ActivationAccount `json:"accounts"`
	Message      string              `json:"message"`
}
