package models

import (
	"time"
)

// User is an end user reaching the desk through the chat bot
type User struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	ExternalID string    `json:"external_id" gorm:"uniqueIndex;not null"`
	FirstName  *string   `json:"first_name"`
	LastName   *string   `json:"last_name"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName overrides the table name
func (User) TableName() string {
	return "users"
}

// RegisterUserRequest is the request structure for registering an end user
type RegisterUserRequest struct {
	ExternalID string  `json:"external_id" binding:"required"`
	FirstName  *string `json:"first_name"`
	LastName   *string `json:"last_name"`
}

// Manager is an operator working tickets from the console
type Manager struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	FirstName string    `json:"first_name" gorm:"not null"`
	LastName  string    `json:"last_name" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName overrides the table name
func (Manager) TableName() string {
	return "managers"
}

// FullName joins first and last name for display
func (m *Manager) FullName() string {
	if m.LastName == "" {
		return m.FirstName
	}
	return m.FirstName + " " + m.LastName
}

// CreateManagerRequest is the request structure for adding an operator
type CreateManagerRequest struct {
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
}
