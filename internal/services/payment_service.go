// internal/services/payment_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
	"gorm.io/gorm"

	"github.com/provenly/ipvault-backend/internal/config"
	"github.com/provenly/ipvault-backend/internal/database"
	"github.com/provenly/ipvault-backend/internal/models"
	"github.com/provenly/ipvault-backend/internal/utils"
)

// PaymentService handles the fiat checkout path: licenses bought in
// USD through Stripe rather than with a cross-chain transaction. A
// confirmed fiat payment lands in the same license_purchases table the
// on-chain path writes to, with paymentToken "USD".
type PaymentService struct {
	db     *gorm.DB
	config *config.Config
	events EventPublisher
}

type CreatePaymentIntentRequest struct {
	AssetID     uuid.UUID `json:"asset_id" validate:"required"`
	LicenseTier string    `json:"license_tier" validate:"required,license_tier"`
}

type PaymentIntentResponse struct {
	ClientSecret  string    `json:"client_secret"`
	PaymentID     string    `json:"payment_id"`
	TransactionID uuid.UUID `json:"transaction_id"`
	AmountUSD     float64   `json:"amount_usd"`
	Status        string    `json:"status"`
}

type ConfirmPaymentRequest struct {
	PaymentIntentID string    `json:"payment_intent_id" validate:"required"`
	TransactionID   uuid.UUID `json:"transaction_id" validate:"required"`
}

func NewPaymentService(db *gorm.DB, cfg *config.Config, events EventPublisher) *PaymentService {
	stripe.Key = cfg.Payment.StripeSecretKey

	return &PaymentService{
		db:     db,
		config: cfg,
		events: events,
	}
}

// CreatePaymentIntent prices the license from the fixed tier table and
// opens a Stripe PaymentIntent plus a pending transaction row.
func (s *PaymentService) CreatePaymentIntent(buyerID uuid.UUID, req *CreatePaymentIntentRequest) (*PaymentIntentResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	tier := models.LicenseTier(strings.ToUpper(req.LicenseTier))
	amount, err := s.tierPriceUSD(tier)
	if err != nil {
		return nil, err
	}

	var asset models.Asset
	if err := s.db.First(&asset, req.AssetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssetNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	platformFee := amount * s.config.Payment.PlatformFeePercent / 100

	transaction := &models.Transaction{
		TransactionType: models.TransactionTypeLicenseFiat,
		BuyerID:         buyerID,
		AssetID:         asset.ID,
		LicenseTier:     tier,
		Amount:          amount,
		PlatformFee:     platformFee,
		Status:          models.TransactionStatusPending,
	}
	if err := s.db.Create(transaction).Error; err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(int64(amount * 100)),
		Currency: stripe.String("usd"),
	}
	params.AddMetadata("transaction_id", transaction.ID.String())
	params.AddMetadata("asset_id", asset.ID.String())
	params.AddMetadata("license_tier", string(tier))

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	s.db.Model(transaction).Update("payment_reference", pi.ID)

	return &PaymentIntentResponse{
		ClientSecret:  pi.ClientSecret,
		PaymentID:     pi.ID,
		TransactionID: transaction.ID,
		AmountUSD:     amount,
		Status:        string(pi.Status),
	}, nil
}

// ConfirmPayment checks the PaymentIntent with Stripe and, on success,
// settles the transaction and issues the license record.
func (s *PaymentService) ConfirmPayment(req *ConfirmPaymentRequest) (*models.Transaction, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	pi, err := paymentintent.Get(req.PaymentIntentID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment intent: %w", err)
	}

	var transaction models.Transaction
	if err := s.db.First(&transaction, req.TransactionID).Error; err != nil {
		return nil, fmt.Errorf("transaction not found: %w", err)
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		now := time.Now()
		transaction.Status = models.TransactionStatusCompleted
		transaction.ProcessedAt = &now
		transaction.PaymentReference = pi.ID

		// Settling the row and issuing the license stand or fall together.
		var purchase *models.LicensePurchase
		err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
			if err := tx.Save(&transaction).Error; err != nil {
				return fmt.Errorf("failed to update transaction: %w", err)
			}
			issued, err := s.issueLicense(tx, &transaction)
			if err != nil {
				return err
			}
			purchase = issued
			return nil
		})
		if err != nil {
			return nil, err
		}
		s.publishConfirmed(purchase)

	case stripe.PaymentIntentStatusRequiresAction, stripe.PaymentIntentStatusRequiresConfirmation:
		transaction.Status = models.TransactionStatusPending
		s.db.Save(&transaction)

	default:
		transaction.Status = models.TransactionStatusFailed
		s.db.Save(&transaction)
	}

	return &transaction, nil
}

func (s *PaymentService) issueLicense(tx *gorm.DB, transaction *models.Transaction) (*models.LicensePurchase, error) {
	purchase := &models.LicensePurchase{
		LicenseID:     "lic_" + uuid.New().String(),
		AssetID:       transaction.AssetID,
		BuyerID:       &transaction.BuyerID,
		LicenseTier:   transaction.LicenseTier,
		OrderID:       "stripe-" + transaction.PaymentReference,
		PaymentAmount: decimal.NewFromFloat(transaction.Amount).String(),
		PaymentToken:  "USD",
		Status:        models.PurchaseStatusConfirmed,
		PurchasedAt:   time.Now(),
	}

	if err := tx.Create(purchase).Error; err != nil {
		return nil, fmt.Errorf("failed to create license record: %w", err)
	}
	return purchase, nil
}

// publishConfirmed fires after the settle commit so a broker outage
// never rolls back an issued license.
func (s *PaymentService) publishConfirmed(purchase *models.LicensePurchase) {
	if err := s.events.Publish(context.Background(), EventPurchaseConfirmed, purchase.OrderID, map[string]interface{}{
		"order_id":     purchase.OrderID,
		"asset_id":     purchase.AssetID,
		"license_tier": purchase.LicenseTier,
		"payment":      "fiat",
	}); err != nil {
		logrus.WithError(err).Warn("Failed to publish purchase confirmation event")
	}
}

func (s *PaymentService) tierPriceUSD(tier models.LicenseTier) (float64, error) {
	switch tier {
	case models.LicenseTierBasic:
		return s.config.Licensing.PriceBasicUSD, nil
	case models.LicenseTierCommercial:
		return s.config.Licensing.PriceCommercialUSD, nil
	case models.LicenseTierExclusive:
		return s.config.Licensing.PriceExclusiveUSD, nil
	default:
		return 0, ErrUnknownLicenseTier
	}
}
