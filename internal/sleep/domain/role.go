package domain

import "time"

type Role struct {
	ID        string
	Name      string
	Scopes    []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Built-in role names seeded by the initial migration.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)
