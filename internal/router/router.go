// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/provenly/ipvault-backend/internal/chains"
	"github.com/provenly/ipvault-backend/internal/config"
	"github.com/provenly/ipvault-backend/internal/handlers"
	"github.com/provenly/ipvault-backend/internal/middleware"
	"github.com/provenly/ipvault-backend/internal/services"
	"github.com/provenly/ipvault-backend/internal/utils"
)

// Initialize wires every service with its dependencies and returns the
// configured engine. All construction happens here; nothing holds
// package-level state.
func Initialize(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *gin.Engine {
	// Event publisher: kafka when brokers are configured, no-op
	// otherwise.
	var events services.EventPublisher
	if kafkaPublisher, err := services.NewKafkaEventPublisher(cfg.Kafka); err == nil {
		events = kafkaPublisher
	} else {
		logrus.WithError(err).Warn("Kafka unavailable, events disabled")
		events = services.NoopEventPublisher{}
	}

	// Purchase lock: redis-backed when available so the in-flight
	// guard holds across instances.
	var locks services.PurchaseLocker
	if redisClient != nil {
		locks = services.NewRedisPurchaseLock(redisClient)
	} else {
		locks = services.NewMemoryPurchaseLock()
	}

	// Order status: the real oracle unless simulation is switched on.
	var statusSource services.OrderStatusSource
	if cfg.Bridge.SimulateStatus {
		statusSource = services.NewSimulatedStatusSource()
	} else {
		statusSource = services.NewBridgeStatusClient(cfg)
	}

	storageService, err := services.NewStorageService(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize storage")
	}
	pinningService := services.NewPinningService(cfg)
	registrationService := services.NewRegistrationService(cfg)
	verificationService := services.NewVerificationService(db, redisClient, cfg)

	authService := services.NewAuthService(db, cfg)
	assetService := services.NewAssetService(db, storageService, pinningService,
		registrationService, verificationService, events)
	bridgeService := services.NewBridgeService(cfg, statusSource)
	wallet := services.NewJSONRPCWallet(cfg.Bridge.WalletRPCURL)
	purchaseService := services.NewPurchaseService(db, bridgeService, wallet, locks, events, cfg)
	paymentService := services.NewPaymentService(db, cfg, events)

	authHandler := handlers.NewAuthHandler(authService)
	assetHandler := handlers.NewAssetHandler(assetService, verificationService)
	licenseHandler := handlers.NewLicenseHandler(bridgeService, purchaseService)
	paymentHandler := handlers.NewPaymentHandler(paymentService)

	utils.SetJWTSecret(cfg.JWT.SecretKey)

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.Frontend.BaseURL))
	r.Use(middleware.GeneralRateLimit())
	r.Use(middleware.AuditLogMiddleware(db))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	v1 := r.Group("/v1")
	{
		auth := v1.Group("/auth")
		auth.Use(middleware.AuthRateLimit())
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.RefreshToken)
		}

		assets := v1.Group("/assets")
		{
			assets.GET("", middleware.OptionalAuth(), assetHandler.ListAssets)
			assets.GET("/:id", middleware.OptionalAuth(), assetHandler.GetAsset)
			assets.GET("/:id/verification", assetHandler.GetVerification)

			protected := assets.Group("")
			protected.Use(middleware.AuthRequired())
			{
				protected.POST("", middleware.CreatorRequired(), middleware.UploadRateLimit(), assetHandler.CreateAsset)
				protected.GET("/:id/download", assetHandler.GetDownloadURL)
			}
		}

		search := v1.Group("/search")
		{
			search.GET("/assets", assetHandler.SearchAssets)
		}

		// Supported chains are static configuration; exposing them
		// lets clients build the network picker without hardcoding.
		v1.GET("/chains", func(c *gin.Context) {
			utils.SuccessResponse(c, gin.H{"chains": chains.All()})
		})

		licenses := v1.Group("/licenses")
		{
			licenses.POST("/estimate", licenseHandler.EstimatePayment)
			licenses.GET("/orders/:submissionId/status", licenseHandler.GetOrderStatus)

			protected := licenses.Group("")
			protected.Use(middleware.AuthRequired())
			{
				protected.POST("/orders", middleware.PurchaseRateLimit(), licenseHandler.CreateOrder)
				protected.POST("/checkout", middleware.PurchaseRateLimit(), licenseHandler.Purchase)
				protected.POST("/purchase", licenseHandler.CreatePurchaseRecord)
				protected.PUT("/:orderId/status", licenseHandler.UpdatePurchaseStatus)
				protected.GET("/mine", licenseHandler.GetMyLicenses)
			}
		}

		payments := v1.Group("/payments")
		payments.Use(middleware.AuthRequired())
		{
			payments.POST("/intent", paymentHandler.CreatePaymentIntent)
			payments.POST("/confirm", paymentHandler.ConfirmPayment)
		}
	}

	return r
}
