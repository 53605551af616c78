package main

import (
	"flag"
	"fmt"

	"marketplace/internal/config"
	"marketplace/internal/database"
	"marketplace/internal/logger"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	log := logger.NewWithDefaults()
	defer log.Sync()

	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file loaded, using process environment", zap.Error(err))
	}

	cfg := config.Load()

	var migrationsDir string
	flag.StringVar(&migrationsDir, "dir", cfg.Database.MigrationsDir, "directory with migration files")
	flag.Parse()

	arguments := flag.Args()
	if len(arguments) == 0 {
		arguments = []string{"up"}
	}
	command, args := arguments[0], arguments[1:]

	dbService, err := database.New(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := dbService.Close(); err != nil {
			log.Error("Failed to close database", zap.Error(err))
		}
	}()

	if err := database.RunCommand(dbService.DB(), migrationsDir, command, args, log); err != nil {
		log.Fatal("Migration command failed", zap.String("command", command), zap.Error(err))
	}

	fmt.Printf("goose %s success\n", command)
}
