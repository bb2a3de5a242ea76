package main

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/joho/godotenv"

	"mealmate_backend/internal/controller"
	"mealmate_backend/internal/middleware"
	"mealmate_backend/internal/model"
	appconfig "mealmate_backend/pkg/config"
	"mealmate_backend/pkg/cron"
	"mealmate_backend/pkg/database"
	"mealmate_backend/pkg/email"
	"mealmate_backend/pkg/payment"
	"mealmate_backend/pkg/paypal"
	"mealmate_backend/pkg/subscription"
)

func setupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Public recipe pages
	publicRecipes := api.Group("/r")
	publicRecipes.Get("/:username/:recipe_slug", controller.GetRecipeBySlug)

	// Protected routes
	protected := api.Group("/", middleware.AuthMiddleware())

	// Recipe routes with plan gating
	recipes := protected.Group("/recipes")
	recipes.Get("/my", controller.ListMyRecipes)
	recipes.Post("/", middleware.CheckRecipeLimit(), controller.CreateRecipe)
	recipes.Put("/:id", middleware.CheckRecipeOwnership(), controller.UpdateRecipe)
	recipes.Delete("/:id", middleware.CheckRecipeOwnership(), controller.DeleteRecipe)

	// Meal-planner feature gate example route group
	planner := protected.Group("/planner", middleware.CheckFeatureAccess(subscription.MealPlanner))
	planner.Get("/recipes", controller.ListMyRecipes)

	// Payment routes
	paymentGroup := api.Group("/payment")
	paymentGroup.Post("/create-order", controller.CreateOrder)
	paymentGroup.Post("/capture-payment", middleware.AuthMiddleware(), controller.CapturePayment)

	// Subscription routes
	subscriptions := api.Group("/subscriptions")
	subscriptions.Get("/plans", controller.ListPlans)

	subProtected := subscriptions.Group("/", middleware.AuthMiddleware())
	subProtected.Get("/my", controller.GetMySubscription)
	subProtected.Post("/cancel", controller.CancelSubscription)

	// Provider webhook (server-to-server, signature-authenticated)
	subscriptions.Post("/paypal/webhook", controller.HandlePayPalWebhook)
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using process environment")
	}

	cfg := appconfig.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration: ", err)
	}

	if apiKey := os.Getenv("RESEND_API_KEY"); apiKey != "" {
		if err := email.InitEmailService(apiKey); err != nil {
			log.Fatal("Could not initialize email service:", err)
		}
	}

	database.InitDB(cfg.Database.URL)
	err := database.MigrateDatabase(
		&model.User{},
		&model.Recipe{},
		&model.Subscription{},
		&model.Transaction{},
		&model.WebhookEvent{},
	)
	if err != nil {
		log.Printf("Migration warning: %v", err)
	}

	paypalClient := paypal.NewClient(paypal.Config{
		ClientID:     cfg.PayPal.ClientID,
		ClientSecret: cfg.PayPal.ClientSecret,
		WebhookID:    cfg.PayPal.WebhookID,
		APIBaseURL:   cfg.PayPal.APIBaseURL,
		AppBaseURL:   cfg.Server.BaseURL,
	})

	paymentService := payment.NewService(payment.NewRepository(database.DB), paypalClient)
	controller.InitPaymentController(paymentService)
	controller.InitSubscriptionController(paypalClient)

	cron.InitSubscriptionExpiryCron()
	cron.InitReconciliationCron(paypalClient)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New())

	setupRoutes(app)

	log.Printf("Server is running on port %s", cfg.Server.Port)
	log.Fatal(app.Listen(":" + cfg.Server.Port))
}
