// internal/models/purchase.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus tracks one cross-chain payment order from creation to settlement.
// Statuses only move forward; Claimed, Failed and Unconfirmed are terminal.
type OrderStatus string

const (
	OrderStatusCreated     OrderStatus = "Created"
	OrderStatusSent        OrderStatus = "Sent"
	OrderStatusConfirmed   OrderStatus = "Confirmed"
	OrderStatusClaimed     OrderStatus = "Claimed"
	OrderStatusFailed      OrderStatus = "Failed"
	OrderStatusUnconfirmed OrderStatus = "Unconfirmed"
)

var orderStatusRank = map[OrderStatus]int{
	OrderStatusCreated:   0,
	OrderStatusSent:      1,
	OrderStatusConfirmed: 2,
	OrderStatusClaimed:   3,
}

// Rank returns the forward-progress position of a status, or -1 for
// terminal failure states that sit outside the success path.
func (s OrderStatus) Rank() int {
	if r, ok := orderStatusRank[s]; ok {
		return r
	}
	return -1
}

func (s OrderStatus) Terminal() bool {
	return s == OrderStatusClaimed || s == OrderStatusFailed || s == OrderStatusUnconfirmed
}

// CanTransition reports whether moving from s to next respects the
// monotone order Created < Sent < Confirmed < Claimed, with Failed and
// Unconfirmed reachable from any non-terminal state.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	if s.Terminal() {
		return false
	}
	if next == OrderStatusFailed || next == OrderStatusUnconfirmed {
		return true
	}
	return next.Rank() > s.Rank()
}

// LicensePurchase is the durably stored record of one license sale.
// The order ID is a client-generated correlation key, unique per
// purchase attempt; it is the idempotency key for record writes.
type LicensePurchase struct {
	BaseModel
	LicenseID       string         `json:"license_id" gorm:"size:100;index"`
	AssetID         uuid.UUID      `json:"asset_id" gorm:"type:uuid;not null;index"`
	BuyerID         *uuid.UUID     `json:"buyer_id,omitempty" gorm:"type:uuid;index"`
	LicenseTier     LicenseTier    `json:"license_tier" gorm:"type:varchar(20);not null"`
	BuyerAddress    string         `json:"buyer_address" gorm:"size:42;not null;index"`
	CreatorAddress  string         `json:"creator_address" gorm:"size:42;not null"`
	OrderID         string         `json:"order_id" gorm:"size:100;not null;uniqueIndex"`
	PaymentAmount   string         `json:"payment_amount" gorm:"type:decimal(30,18)"`
	PaymentToken    string         `json:"payment_token" gorm:"size:20"`
	SourceChainID   int64          `json:"source_chain_id"`
	DestChainID     int64          `json:"dest_chain_id"`
	TransactionHash string         `json:"transaction_hash,omitempty" gorm:"size:66"`
	Status          PurchaseStatus `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	PurchasedAt     time.Time      `json:"purchased_at"`

	// Relationships
	Asset Asset `json:"asset,omitempty" gorm:"foreignKey:AssetID"`
	Buyer *User `json:"buyer,omitempty" gorm:"foreignKey:BuyerID"`
}

// Transaction records a fiat checkout processed through the card gateway.
type Transaction struct {
	BaseModel
	TransactionType  TransactionType   `json:"transaction_type" gorm:"type:varchar(20);not null;index"`
	BuyerID          uuid.UUID         `json:"buyer_id" gorm:"type:uuid;not null;index"`
	AssetID          uuid.UUID         `json:"asset_id" gorm:"type:uuid;not null;index"`
	LicenseTier      LicenseTier       `json:"license_tier" gorm:"type:varchar(20)"`
	Amount           float64           `json:"amount" gorm:"type:decimal(10,2);not null"`
	PlatformFee      float64           `json:"platform_fee" gorm:"type:decimal(10,2);not null"`
	PaymentReference string            `json:"payment_reference" gorm:"size:255"`
	Status           TransactionStatus `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	ProcessedAt      *time.Time        `json:"processed_at"`
	RefundedAt       *time.Time        `json:"refunded_at"`
	RefundReason     string            `json:"refund_reason,omitempty" gorm:"type:text"`

	// Relationships
	Buyer User  `json:"buyer,omitempty" gorm:"foreignKey:BuyerID"`
	Asset Asset `json:"asset,omitempty" gorm:"foreignKey:AssetID"`
}
