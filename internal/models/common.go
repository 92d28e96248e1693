// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Enums
type UserType string

const (
	UserTypeCreator UserType = "creator"
	UserTypeBuyer   UserType = "buyer"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusBanned    UserStatus = "banned"
)

type AssetCategory string

const (
	AssetCategoryImage    AssetCategory = "image"
	AssetCategoryAudio    AssetCategory = "audio"
	AssetCategoryVideo    AssetCategory = "video"
	AssetCategoryDocument AssetCategory = "document"
	AssetCategoryModel3D  AssetCategory = "model_3d"
	AssetCategoryDataset  AssetCategory = "dataset"
	AssetCategoryCode     AssetCategory = "code"
	AssetCategoryOther    AssetCategory = "other"
)

type VerificationStatus string

const (
	VerificationStatusPending VerificationStatus = "pending"
	VerificationStatusClear   VerificationStatus = "clear"
	VerificationStatusFlagged VerificationStatus = "flagged"
	VerificationStatusFailed  VerificationStatus = "failed"
)

type LicenseTier string

const (
	LicenseTierBasic      LicenseTier = "BASIC"
	LicenseTierCommercial LicenseTier = "COMMERCIAL"
	LicenseTierExclusive  LicenseTier = "EXCLUSIVE"
)

func (t LicenseTier) Valid() bool {
	switch t {
	case LicenseTierBasic, LicenseTierCommercial, LicenseTierExclusive:
		return true
	}
	return false
}

type PurchaseStatus string

const (
	PurchaseStatusPending   PurchaseStatus = "pending"
	PurchaseStatusConfirmed PurchaseStatus = "confirmed"
	PurchaseStatusFailed    PurchaseStatus = "failed"
)

type TransactionType string

const (
	TransactionTypeLicenseFiat  TransactionType = "license_fiat"
	TransactionTypeLicenseChain TransactionType = "license_chain"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusRefunded  TransactionStatus = "refunded"
)
