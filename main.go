package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"recycly-backend/handlers"
	"recycly-backend/middleware"
	"recycly-backend/models"
	"recycly-backend/services"
	"recycly-backend/utils"
	"recycly-backend/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, reading environment variables directly")
	}

	if err := utils.InitLogger(); err != nil {
		log.Fatal("failed to initialize logger:", err)
	}
	defer utils.Logger.Sync()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		utils.Sugar.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitStorage(); err != nil {
		utils.Sugar.Fatalw("failed to initialize object storage", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := utils.InitFirebase(ctx); err != nil {
		// Push delivery is optional; email and in-app still work.
		utils.Sugar.Warnw("firebase not initialized, push notifications disabled", "err", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		utils.Sugar.Fatalw("failed to connect to database", "err", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.WasteCategory{},
		&models.WasteDisposal{},
		&models.Achievement{},
		&models.UserAchievement{},
		&models.Reward{},
		&models.UserReward{},
		&models.PointTransaction{},
		&models.Notification{},
	); err != nil {
		utils.Sugar.Fatalw("failed to migrate database", "err", err)
	}

	if err := seedData(db); err != nil {
		utils.Sugar.Fatalw("failed to seed data", "err", err)
	}

	authService := services.NewAuthService(db)
	pointsService := services.NewPointsService(db)
	disposalService := services.NewDisposalService(db)
	achievementService := services.NewAchievementService(db)
	rewardService := services.NewRewardService(db)
	notificationService := services.NewNotificationService(db)

	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024, // photos only
	})

	app.Use(recover.New())

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000"
	}
	origins := strings.Split(allowedOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(origins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With",
		AllowCredentials: true,
		MaxAge:           86400,
	}))
	app.Use(middleware.RateLimit(20, 40))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	handlers.SetupAuthRoutes(app, authService)
	handlers.SetupDisposalRoutes(app, disposalService)
	handlers.SetupRewardRoutes(app, rewardService)
	handlers.SetupProgressRoutes(app, pointsService, achievementService)
	handlers.SetupNotificationRoutes(app, notificationService)
	handlers.SetupAdminRoutes(app, disposalService, pointsService)

	scheduler := services.NewScheduler(db)
	if err := scheduler.Start(); err != nil {
		utils.Sugar.Fatalw("failed to start scheduler", "err", err)
	}
	defer scheduler.Stop()

	notificationWorker := workers.NewNotificationWorker(db)
	notificationWorker.Start(ctx)

	port := os.Getenv("PORT")
	if port == "" {
		port = "5200"
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			utils.Sugar.Errorw("server error", "err", err)
			stop()
		}
	}()
	utils.Sugar.Infow("server running", "port", port, "origins", origins)

	<-ctx.Done()
	utils.Sugar.Info("shutting down server")
	if err := app.Shutdown(); err != nil {
		utils.Sugar.Errorw("shutdown error", "err", err)
	}
}

func seedData(db *gorm.DB) error {
	for _, c := range models.DefaultWasteCategories {
		cat := c
		if err := db.Where("name = ?", cat.Name).FirstOrCreate(&cat).Error; err != nil {
			return err
		}
	}
	if err := services.NewAchievementService(db).SeedAchievements(); err != nil {
		return err
	}

	// Bootstrap super admin from env on first boot.
	email := os.Getenv("SUPER_ADMIN_EMAIL")
	password := os.Getenv("SUPER_ADMIN_PASSWORD")
	if email == "" || password == "" {
		return nil
	}
	var count int64
	if err := db.Model(&models.User{}).Where("role = ?", models.RoleSuperAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	admin := models.User{
		Username:     "superadmin",
		Email:        strings.ToLower(email),
		PasswordHash: hash,
		Role:         models.RoleSuperAdmin,
		Level:        1,
	}
	return db.Create(&admin).Error
}
