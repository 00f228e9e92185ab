package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mentorika/Mentorika-server/cmd/api"
	"github.com/mentorika/Mentorika-server/cmd/config"
	"github.com/mentorika/Mentorika-server/cmd/models"
	"github.com/mentorika/Mentorika-server/cmd/utils"
	"github.com/mentorika/Mentorika-server/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "migrate":
			runMigrations()
			return
		case "clear-db":
			runDatabaseClear()
			return
		default:
			log.Fatalf("Unknown command: %s", os.Args[1])
		}
	}

	startServer()
}

func mustLoad() (config.Config, *gorm.DB, *zap.Logger) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	logger, err := utils.InitLogger(cfg.LogPath, cfg.Debug)
	if err != nil {
		log.Fatalf("Logger initialization error: %v", err)
	}

	DB, err := db.NewPSQLStorage(cfg.DBUrl)
	if err != nil {
		logger.Fatal("database initialization error", zap.Error(err))
	}

	return cfg, DB, logger
}

func runMigrations() {
	_, DB, logger := mustLoad()
	defer closeDB(DB, logger)

	logger.Info("connected to the database for migrations")
	if err := performMigrations(DB, logger); err != nil {
		logger.Fatal("migration error", zap.Error(err))
	}
	logger.Info("migrations completed successfully")
}

func performMigrations(DB *gorm.DB, logger *zap.Logger) error {
	migrations := []struct {
		model interface{}
		name  string
	}{
		{&models.User{}, "User"},
		{&models.MentorProfile{}, "MentorProfile"},
		{&models.Rating{}, "Rating"},
		{&models.PasswordResetToken{}, "PasswordResetToken"},
		{&models.Listing{}, "Listing"},
		{&models.Booking{}, "Booking"},
		{&models.Auction{}, "Auction"},
		{&models.Bid{}, "Bid"},
		{&models.Transaction{}, "Transaction"},
		{&models.Device{}, "Device"},
		{&models.NotificationHistory{}, "NotificationHistory"},
	}

	logger.Info("starting database migrations")
	for _, m := range migrations {
		if err := DB.AutoMigrate(m.model); err != nil {
			return fmt.Errorf("error migrating %s table: %w", m.name, err)
		}
		logger.Info("migration successful", zap.String("table", m.name))
	}

	return nil
}

func startServer() {
	cfg, DB, logger := mustLoad()
	defer closeDB(DB, logger)
	defer logger.Sync()

	logger.Info("connected to the database")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	server := api.NewApiServer(":"+cfg.ServerPort, DB, cfg, logger)

	go func() {
		<-quit
		logger.Info("shutting down server")
		cancel()
	}()

	// Run drains in-flight requests after the context is cancelled and
	// only then returns.
	if err := server.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("server stopped")
}

func closeDB(DB *gorm.DB, logger *zap.Logger) {
	sqlDB, _ := DB.DB()
	sqlDB.Close()
	logger.Info("database connection closed")
}

func clearDatabase(DB *gorm.DB, logger *zap.Logger, tables []interface{}) error {
	if len(tables) == 0 {
		tables = []interface{}{
			&models.Bid{},
			&models.Auction{},
			&models.Transaction{},
			&models.Booking{},
			&models.Listing{},
			&models.Rating{},
			&models.PasswordResetToken{},
			&models.NotificationHistory{},
			&models.Device{},
			&models.MentorProfile{},
			&models.User{},
		}
	}

	logger.Info("dropping tables")
	for _, table := range tables {
		if err := DB.Migrator().DropTable(table); err != nil {
			logger.Warn("dropping table failed", zap.String("table", fmt.Sprintf("%T", table)), zap.Error(err))
		} else {
			logger.Info("table dropped", zap.String("table", fmt.Sprintf("%T", table)))
		}
	}

	return nil
}

func runDatabaseClear() {
	_, DB, logger := mustLoad()
	defer closeDB(DB, logger)

	logger.Info("preparing to clear database")

	var confirmation string
	fmt.Print("Are you sure you want to clear the database? (yes/no): ")
	fmt.Scanln(&confirmation)

	if confirmation != "yes" {
		logger.Info("database clearing cancelled")
		return
	}

	var tableNames string
	fmt.Print("Enter table names to clear (comma separated) or leave blank to clear all: ")
	fmt.Scanln(&tableNames)

	var tables []interface{}
	if tableNames != "" {
		for _, table := range strings.Split(tableNames, ",") {
			switch strings.TrimSpace(table) {
			case "User":
				tables = append(tables, &models.User{})
			case "MentorProfile":
				tables = append(tables, &models.MentorProfile{})
			case "Rating":
				tables = append(tables, &models.Rating{})
			case "PasswordResetToken":
				tables = append(tables, &models.PasswordResetToken{})
			case "Listing":
				tables = append(tables, &models.Listing{})
			case "Booking":
				tables = append(tables, &models.Booking{})
			case "Auction":
				tables = append(tables, &models.Auction{})
			case "Bid":
				tables = append(tables, &models.Bid{})
			case "Transaction":
				tables = append(tables, &models.Transaction{})
			case "Device":
				tables = append(tables, &models.Device{})
			case "NotificationHistory":
				tables = append(tables, &models.NotificationHistory{})
			default:
				logger.Warn("unknown table", zap.String("table", table))
			}
		}
	}

	if err := clearDatabase(DB, logger, tables); err != nil {
		logger.Fatal("error clearing database", zap.Error(err))
	}

	logger.Info("database cleared successfully")
}
