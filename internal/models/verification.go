// internal/models/verification.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// VerificationCheck stores the latest authenticity-scan result for an asset.
type VerificationCheck struct {
	BaseModel
	AssetID       uuid.UUID          `json:"asset_id" gorm:"type:uuid;not null;index"`
	ExternalID    string             `json:"external_id" gorm:"size:255;index"`
	Status        VerificationStatus `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	Infringements JSONB              `json:"infringements" gorm:"type:jsonb"`
	CheckedAt     *time.Time         `json:"checked_at"`

	// Relationships
	Asset Asset `json:"asset,omitempty" gorm:"foreignKey:AssetID"`
}

// AuditLog captures mutating API requests for traceability.
type AuditLog struct {
	BaseModel
	UserID       *uuid.UUID `json:"user_id" gorm:"type:uuid;index"`
	Action       string     `json:"action" gorm:"size:255;not null"`
	ResourceType string     `json:"resource_type" gorm:"size:100;index"`
	ResourceID   *uuid.UUID `json:"resource_id" gorm:"type:uuid;index"`
	IPAddress    string     `json:"ip_address" gorm:"size:45"`
	UserAgent    string     `json:"user_agent" gorm:"size:500"`
	NewValues    JSONB      `json:"new_values" gorm:"type:jsonb"`
}
