package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"syscall"

	"golang.org/x/term"

	"github.com/hypercore-one/bridge-monitor/internal/app"
	"github.com/hypercore-one/bridge-monitor/internal/config"
	"github.com/hypercore-one/bridge-monitor/internal/db"
	"github.com/hypercore-one/bridge-monitor/internal/repository"
	"github.com/hypercore-one/bridge-monitor/internal/services"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	username := flag.String("username", "", "admin username")
	email := flag.String("email", "", "admin email")
	flag.Parse()

	if *username == "" || *email == "" {
		log.Fatal("both -username and -email are required")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	fmt.Print("Password: ")
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		log.Fatalf("failed to read password: %v", err)
	}
	if len(password) < 8 {
		log.Fatal("password must be at least 8 characters")
	}

	gormDB, err := db.Connect(cfg.Database.DSN, db.APIPool(&cfg.Database))
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	if err := db.Migrate(gormDB); err != nil {
		log.Fatalf("❌ %v", err)
	}

	logger := app.NewLogger()
	authService := services.NewAuthService(
		repository.NewUserRepository(gormDB), nil, &cfg.Auth, 0, logger)

	user, err := authService.CreateUser(context.Background(), services.CreateUserParams{
		Username:           *username,
		Email:              *email,
		Password:           string(password),
		IsAdmin:            true,
		RateLimitPerSecond: cfg.RateLimit.AdminPerSecond,
		RateLimitBurst:     cfg.RateLimit.AdminBurst,
	})
	if err != nil {
		log.Fatalf("❌ Failed to create admin: %v", err)
	}

	fmt.Printf("✅ Admin user %s created (id %s)\n", user.Username, user.ID)
	os.Exit(0)
}
