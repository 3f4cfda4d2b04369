package models

import (
	"time"
)

// Email status values
const (
	StatusPending   = "pending"
	StatusProcessed = "processed"
	StatusExported  = "exported"
)

// DefaultCategory is assigned to emails created without a category
const DefaultCategory = "Uncategorized"

// AllCategories is the filter sentinel meaning "no category filter"
const AllCategories = "All Categories"

// Email represents a synced or manually entered financial email
type Email struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Subject      string    `gorm:"type:text;not null" json:"subject"`
	Snippet      *string   `gorm:"type:text" json:"snippet"`
	SenderName   string    `gorm:"size:255;not null" json:"senderName"`
	SenderEmail  string    `gorm:"size:255;not null;index" json:"senderEmail"`
	Amount       *float64  `gorm:"type:decimal(10,2)" json:"amount"`
	Category     string    `gorm:"size:100;not null;default:'Uncategorized';index" json:"category"`
	Status       string    `gorm:"size:20;not null;default:'pending'" json:"status"`
	DriveFileID  *string   `gorm:"size:255" json:"driveFileId"`
	DriveFileURL *string   `gorm:"size:500" json:"driveFileUrl"`
	ReceivedAt   time.Time `gorm:"not null;index" json:"receivedAt"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`

	// Relations
	Attachments []Attachment `gorm:"foreignKey:EmailID;constraint:OnDelete:CASCADE" json:"-"`
	EmailLabels []EmailLabel `gorm:"foreignKey:EmailID;constraint:OnDelete:CASCADE" json:"-"`
}

// IsValidStatus reports whether s is a known email status
func IsValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusProcessed, StatusExported:
		return true
	}
	return false
}

// CanTransition reports whether an email may move from one status to another.
// Staying in the same status is always allowed; nothing leaves "exported".
func CanTransition(from, to string) bool {
	if from == to {
		return true
	}
	switch from {
	case StatusPending:
		return to == StatusProcessed || to == StatusExported
	case StatusProcessed:
		return to == StatusExported
	}
	return false
}

// EmailWithLabels is an email enriched with its labels and attachments
type EmailWithLabels struct {
	Email
	Labels      []Label      `json:"labels"`
	Attachments []Attachment `json:"attachments"`
}
