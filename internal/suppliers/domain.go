// Package suppliers keeps the supplier directory: who to call and how to
// order from them. Item records reference suppliers by name.
package suppliers

import (
	"errors"
	"time"
)

// Supplier is one vendor the funeral home orders caskets or urns from.
type Supplier struct {
	ID                   int64     `json:"id"`
	Name                 string    `json:"name"`
	Contact              string    `json:"contact,omitempty"`
	Phone                string    `json:"phone,omitempty"`
	OrderingInstructions string    `json:"ordering_instructions,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

var (
	// ErrValidation indicates missing or malformed input.
	ErrValidation = errors.New("suppliers: invalid input")
	// ErrDuplicate indicates a supplier name already in use.
	ErrDuplicate = errors.New("suppliers: name already exists")
	// ErrNotFound indicates a missing supplier.
	ErrNotFound = errors.New("suppliers: not found")
)
