// internal/models/asset.go
package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Asset struct {
	BaseModel
	CreatorID          uuid.UUID          `json:"creator_id" gorm:"type:uuid;not null;index"`
	Title              string             `json:"title" gorm:"size:255;not null"`
	Description        string             `json:"description" gorm:"type:text"`
	Category           AssetCategory      `json:"category" gorm:"type:varchar(20);index"`
	ContentType        string             `json:"content_type" gorm:"size:100"`
	FileSize           int64              `json:"file_size"`
	FileURL            string             `json:"file_url" gorm:"size:500"`
	ThumbnailURL       string             `json:"thumbnail_url,omitempty" gorm:"size:500"`
	ContentCID         string             `json:"content_cid" gorm:"size:100;index"`
	MetadataCID        string             `json:"metadata_cid" gorm:"size:100"`
	Metadata           JSONB              `json:"metadata" gorm:"type:jsonb"`
	VerificationStatus VerificationStatus `json:"verification_status" gorm:"type:varchar(20);default:'pending';index"`
	IPRegistrationID   string             `json:"ip_registration_id,omitempty" gorm:"size:100;index"`
	RegistrationTxHash string             `json:"registration_tx_hash,omitempty" gorm:"size:66"`
	Tags               pq.StringArray     `json:"tags" gorm:"type:text[]"`
	ViewCount          int64              `json:"view_count" gorm:"default:0"`

	// Relationships
	Creator   User              `json:"creator,omitempty" gorm:"foreignKey:CreatorID"`
	Purchases []LicensePurchase `json:"purchases,omitempty" gorm:"foreignKey:AssetID"`
}
