package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AdminJWTClaims mirrors the claims the admin middleware expects.
type AdminJWTClaims struct {
	KeyID string `json:"key_id"`
	jwt.RegisteredClaims
}

func main() {
	keyID := flag.String("key-id", "key-local", "key identifier embedded in the token")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	secret := os.Getenv("ADMIN_JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "ADMIN_JWT_SECRET must be set")
		os.Exit(1)
	}

	now := time.Now()
	claims := AdminJWTClaims{
		KeyID: *keyID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(*ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "relayer-backend",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("============================================================")
	fmt.Println("Admin JWT Token")
	fmt.Println("============================================================")
	fmt.Println()
	fmt.Println(signed)
	fmt.Println()
	fmt.Printf("  Key ID:  %s\n", *keyID)
	fmt.Printf("  Expires: %s\n", claims.ExpiresAt.Format(time.RFC3339))
}
