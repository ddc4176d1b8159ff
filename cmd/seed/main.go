package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"github.com/oksasatya/healthcare-storefront/config"
	"github.com/oksasatya/healthcare-storefront/internal/domain/credential"
	"github.com/oksasatya/healthcare-storefront/internal/domain/entity"
	"github.com/oksasatya/healthcare-storefront/internal/domain/repository"
	pginfra "github.com/oksasatya/healthcare-storefront/internal/infrastructure/postgres"
)

// seeds one account per stored scheme so migration on login can be tried
// locally. All share the same password.
const seedPassword = "password123"

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx := context.Background()

	pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), 2, 1, cfg.DBMaxConnLife)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	repo := pginfra.NewUserRepository(pool)

	bcryptHash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}
	saltedHash, salt, err := credential.HashCanonical(seedPassword)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	users := []*entity.User{
		{
			Email:          "bcrypt.patient@example.com",
			PasswordHash:   string(bcryptHash),
			PasswordScheme: credential.StrongAdaptive.String(),
			FirstName:      "Bea",
			LastName:       "Crypt",
		},
		{
			Email:          "salted.patient@example.com",
			PasswordHash:   saltedHash,
			PasswordSalt:   salt,
			PasswordScheme: credential.SaltedDigest.String(),
			FirstName:      "Sal",
			LastName:       "Ted",
		},
		{
			Email:          "legacy.patient@example.com",
			PasswordHash:   credential.LegacyHash(seedPassword),
			PasswordScheme: credential.LegacyDigest.String(),
			FirstName:      "Lee",
			LastName:       "Gacy",
		},
	}

	for _, u := range users {
		err := repo.Create(ctx, u)
		switch {
		case errors.Is(err, repository.ErrEmailTaken):
			fmt.Printf("exists: email=%s\n", u.Email)
		case err != nil:
			log.Fatalf("failed to seed %s: %v", u.Email, err)
		default:
			fmt.Printf("seeded user: id=%s email=%s scheme=%s\n", u.ID, u.Email, u.PasswordScheme)
		}
	}
	fmt.Printf("password for all seeded users: %s\n", seedPassword)
}
