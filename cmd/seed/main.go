package main

import (
	"context"
	"flag"
	"log"
	"time"

	"ai-chatstream-be/internal/config"
	"ai-chatstream-be/internal/entity"
	"ai-chatstream-be/internal/model"
	"ai-chatstream-be/internal/repository/specification"
	"ai-chatstream-be/internal/repository/unitofwork"
	"ai-chatstream-be/internal/service"
	"ai-chatstream-be/pkg/database"

	"github.com/fatih/color"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	email := flag.String("email", "demo@example.com", "email of the demo user")
	password := flag.String("password", "password123", "password of the demo user")
	fullName := flag.String("name", "Demo User", "display name of the demo user")
	ttl := flag.Duration("ttl", 24*time.Hour, "lifetime of the printed bearer token")
	flag.Parse()

	cfg := config.Load()

	db, err := database.Open(cfg.Database.Driver, cfg.Database.Connection)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}
	if err := model.Migrate(db); err != nil {
		log.Fatalf("Error: AutoMigrate failed: %v", err)
	}

	color.Cyan("Seeding demo user %s\n", *email)

	ctx := context.Background()
	uowFactory := unitofwork.NewRepositoryFactory(db)
	users := uowFactory.NewUnitOfWork(ctx).UserRepository()

	user, err := users.FindOne(ctx, specification.ByEmail{Email: *email})
	if err != nil {
		color.Red("Failed to look up user: %v", err)
		return
	}

	if user != nil {
		color.Yellow("User already exists, skipping create")
	} else {
		hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
		if err != nil {
			color.Red("Failed to hash password: %v", err)
			return
		}
		hashStr := string(hash)
		user = &entity.User{
			Email:        *email,
			PasswordHash: &hashStr,
			FullName:     *fullName,
			Status:       entity.UserStatusActive,
		}
		if err := users.Create(ctx, user); err != nil {
			color.Red("Failed to create user: %v", err)
			return
		}
		color.Green("Created user %s", user.Id)
	}

	identity := service.NewIdentityService(cfg.App.JWTSecret, uowFactory)
	token, err := identity.IssueToken(user.Id, *ttl)
	if err != nil {
		color.Red("Failed to issue token: %v", err)
		return
	}

	color.Green("\nBearer token (valid %s):", *ttl)
	color.White(token)
}
