package main

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// token prints a signed credential for local testing:
//
//	SECRET_KEY=... go run ./cmd/token -user 7
func main() {
	user := flag.String("user", "", "user id owning the token")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()

	userID, ok := domain.ParseUserID(*user)
	if !ok {
		fmt.Fprintln(os.Stderr, "-user must be a positive integer")
		os.Exit(2)
	}
	secret := os.Getenv("SECRET_KEY")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "SECRET_KEY is not set")
		os.Exit(2)
	}

	token, err := auth.GenerateToken([]byte(secret), userID, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "token generation failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
