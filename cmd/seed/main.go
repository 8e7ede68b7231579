package main

import (
	"context"
	"log"
	"time"

	"absensi/internal/auth"
	"absensi/internal/config"
	"absensi/internal/store"
)

// Seed creates or resets the default staff accounts.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := store.NewDB(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("migrate failed: %v", err)
	}

	users := store.NewUsers(db)
	accounts := []struct {
		username, password, role string
	}{
		{"admin", cfg.AdminPassword, auth.RoleAdmin},
		{"guru", cfg.GuruPassword, auth.RoleGuru},
	}
	for _, acc := range accounts {
		u, err := auth.NewUser(acc.username, acc.password, acc.role)
		if err != nil {
			log.Fatalf("build user %s: %v", acc.username, err)
		}
		if _, err := users.SaveUser(ctx, u); err != nil {
			log.Fatalf("save user %s: %v", acc.username, err)
		}
		log.Printf("seeded %s (%s)", u.Username, u.Role)
	}
}
