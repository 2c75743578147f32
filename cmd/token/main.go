// Command token mints a bearer token for local testing against the API.
//
//	go run ./cmd/token -user 550e8400-e29b-41d4-a716-446655440000 -role admin
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/Liwei1020T/appointmentSystem-sub002/internal/config"
	"github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/model"
	"github.com/Liwei1020T/appointmentSystem-sub002/internal/middleware/auth"
)

func main() {
	userFlag := flag.String("user", "", "user id (uuid)")
	roleFlag := flag.String("role", string(model.RoleCustomer), "customer or admin")
	ttlFlag := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	userID, err := uuid.Parse(*userFlag)
	if err != nil {
		log.Fatalf("Invalid -user: %v", err)
	}

	token, err := auth.IssueToken(cfg.JWT.Secret, userID, model.UserRole(*roleFlag), *ttlFlag, time.Now())
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}
	fmt.Println(token)
}
