package models

import (
	"time"
)

// Attachment is a document owned by exactly one email
type Attachment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	EmailID   string    `gorm:"size:36;not null;index" json:"emailId"`
	Filename  string    `gorm:"size:255;not null" json:"filename"`
	MimeType  string    `gorm:"size:100;not null" json:"mimeType"`
	Size      int64     `gorm:"not null" json:"size"`
	Content   *string   `gorm:"type:text" json:"content,omitempty"` // base64 encoded
	CreatedAt time.Time `json:"createdAt"`
}
