package routes

import (
	"os"
	"strconv"

	"catalogue-order/cache"
	authController "catalogue-order/controllers/auth"
	catalogueController "catalogue-order/controllers/catalogue"
	orderflowController "catalogue-order/controllers/orderflow"
	"catalogue-order/httpServices/backend"
	"catalogue-order/logger"
	"catalogue-order/middleware"
	catalogueService "catalogue-order/services/catalogue"
	flow "catalogue-order/services/orderflow"
	sessionService "catalogue-order/services/session"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func SetupRoutes(app *fiber.App, db *gorm.DB, sessions *sessionService.Service) {
	backendClient := backend.NewClient(os.Getenv("BACKEND_BASE_URL"))
	asyncLogger := logger.NewAsyncLogger(db)

	catalogueCache := cache.New(cache.DefaultTTL, cacheQuotaFromEnv())
	loader := catalogueService.NewLoader(backendClient, catalogueCache)
	flowStore := flow.NewStore(db)

	authCtrl := authController.NewAuthController(backendClient, sessions, asyncLogger)
	catalogueCtrl := catalogueController.NewCatalogueController(loader)
	flowCtrl := orderflowController.NewFlowController(backendClient, loader, flowStore, flowConfigFromEnv(), asyncLogger)

	// Start the async logger processing goroutine
	go asyncLogger.ProcessLog()

	// Index route
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"service": "catalogue-order", "status": "ok"})
	})

	/*=============================================================================
	| Public Routes
	===============================================================================*/
	api := app.Group("/api")
	api.Post("/auth/check-email", authCtrl.CheckEmail)
	api.Post("/auth/request-otp", authCtrl.RequestOTP)
	api.Post("/auth/verify-otp", authCtrl.VerifyOTP)

	// Edit-token resume is public: the token is the credential.
	api.Post("/flow/resume", flowCtrl.Resume)

	/*=============================================================================
	| Protected Routes
	===============================================================================*/
	protected := api.Group("/", middleware.RequireSession(sessions))
	protected.Post("/auth/logout", authCtrl.Logout)

	/*=============================================================================
	| Catalogue Routes
	===============================================================================*/
	protected.Get("/catalogue/categories", catalogueCtrl.ListCategories)
	protected.Get("/catalogue/categories/:id/products", catalogueCtrl.ListProducts)

	/*=============================================================================
	| Order Flow Routes
	===============================================================================*/
	flowGroup := protected.Group("/flow")
	flowGroup.Get("/state", flowCtrl.GetState)
	flowGroup.Put("/info", flowCtrl.SaveInfoDraft)
	flowGroup.Post("/info/submit", flowCtrl.SubmitInfo)
	flowGroup.Put("/phase1", flowCtrl.SavePhase1Draft)
	flowGroup.Post("/phase1/submit", flowCtrl.SubmitPhase1)
	flowGroup.Post("/quantity", flowCtrl.SetQuantity)
	flowGroup.Post("/submit", flowCtrl.SubmitOrder)
	flowGroup.Get("/order", flowCtrl.GetOrder)
	flowGroup.Post("/edit", flowCtrl.EditPhase)
	flowGroup.Post("/reset", flowCtrl.Reset)
}

// flowConfigFromEnv selects the totals shape for this deployment. Exactly
// one shape is active; flat is the default.
func flowConfigFromEnv() flow.Config {
	cfg := flow.Config{TotalsMode: flow.TotalsModeFlat}

	if mode := os.Getenv("TOTALS_MODE"); mode == flow.TotalsModeTax {
		cfg.TotalsMode = flow.TotalsModeTax
		cfg.TaxRate = 0.18
		if raw := os.Getenv("TAX_RATE"); raw != "" {
			rate, err := strconv.ParseFloat(raw, 64)
			if err != nil || rate < 0 {
				logger.Warning("Invalid TAX_RATE, using default 0.18")
			} else {
				cfg.TaxRate = rate
			}
		}
	}
	return cfg
}

func cacheQuotaFromEnv() int {
	raw := os.Getenv("CACHE_MAX_ENTRIES")
	if raw == "" {
		return 0
	}
	quota, err := strconv.Atoi(raw)
	if err != nil || quota < 0 {
		logger.Warning("Invalid CACHE_MAX_ENTRIES, cache is unbounded")
		return 0
	}
	return quota
}
