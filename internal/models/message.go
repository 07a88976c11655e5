package models

import (
	"time"

	"gorm.io/gorm"
)

// SenderManager marks messages written by an operator.
const SenderManager = "manager"

// Message is one unit of conversation attached to a ticket
type Message struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	TaskID     uint      `json:"task_id" gorm:"not null;index"`
	Sender     string    `json:"sender" gorm:"not null"`
	Content    *string   `json:"content"`
	FileName   *string   `json:"file_name"`
	OperatorID *uint     `json:"operator_id"`
	Timestamp  time.Time `json:"timestamp" gorm:"not null;index"`

	Operator *Manager `json:"operator,omitempty" gorm:"foreignKey:OperatorID;constraint:OnDelete:SET NULL"`
}

// TableName overrides the table name
func (Message) TableName() string {
	return "messages"
}

// BeforeCreate stamps the message time when the caller did not
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	return nil
}

// FromManager reports whether an operator wrote the message
func (m *Message) FromManager() bool {
	return m.Sender == SenderManager
}
