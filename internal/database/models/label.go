package models

import (
	"time"
)

// DefaultLabelColor is used when a label is created without a color
const DefaultLabelColor = "#3B82F6"

// Label is a user-defined tag that can be attached to emails
type Label struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:100;not null" json:"name"`
	Color       string    `gorm:"size:7;not null;default:'#3B82F6'" json:"color"`
	Description *string   `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"createdAt"`

	// Relations
	EmailLabels []EmailLabel `gorm:"foreignKey:LabelID;constraint:OnDelete:CASCADE" json:"-"`
}

// EmailLabel links an email to a label
type EmailLabel struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	EmailID string `gorm:"size:36;not null;index" json:"emailId"`
	LabelID uint   `gorm:"not null;index" json:"labelId"`
}
