// internal/models/admin.go
package models

import "time"

// Setting is a named configuration slot.
type Setting struct {
	ID          uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Key         string    `json:"key" gorm:"size:150;not null;uniqueIndex"`
	Value       string    `json:"-" gorm:"type:text;not null"`
	Description string    `json:"description" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type AuditLog struct {
	BaseModel
	Action       string   `json:"action" gorm:"size:150;not null;index"`
	ResourceType string   `json:"resource_type" gorm:"size:50;not null;index"`
	ResourceID   *uint    `json:"resource_id" gorm:"index"`
	Status       int      `json:"status"`
	NewValues    Metadata `json:"new_values" gorm:"type:text"`
	IPAddress    string   `json:"ip_address" gorm:"size:45"`
	UserAgent    string   `json:"user_agent" gorm:"type:text"`
}
