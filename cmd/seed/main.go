// Command seed loads a YAML directory fixture into a bizlink store and can
// print a token per seeded user for local testing.
package main

import (
	"bizlink/auth"
	"bizlink/cache"
	"bizlink/domain"
	"bizlink/internal"
	"bizlink/repositories"
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/spf13/pflag"
)

func main() {
	_ = godotenv.Load()

	file := pflag.StringP("file", "f", "seed.yaml", "YAML directory fixture")
	dbPath := pflag.String("db", os.Getenv("BADGER_FILEPATH"), "Path to badger DB")
	tokens := pflag.Bool("tokens", false, "Print a token for every seeded user (needs JWT_SECRET)")
	var tokenConfig internal.TokenConfig
	if _, err := env.UnmarshalFromEnviron(&tokenConfig); err != nil {
		fmt.Fprintln(os.Stderr, color.FgRed.Render("seed: "+err.Error()))
		os.Exit(1)
	}
	ttl := pflag.Duration("ttl", tokenConfig.AuthTokenDuration, "Lifetime of printed tokens (default AUTH_TOKEN_DURATION)")
	pflag.Parse()

	if err := run(*file, *dbPath, *tokens, *ttl); err != nil {
		fmt.Fprintln(os.Stderr, color.FgRed.Render("seed: "+err.Error()))
		os.Exit(1)
	}
}

func run(file, dbPath string, tokens bool, ttl time.Duration) error {
	if dbPath == "" {
		return fmt.Errorf("no database path, set --db or BADGER_FILEPATH")
	}
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()
	seed, err := internal.LoadSeed(f)
	if err != nil {
		return err
	}

	db, err := badger.Open(badger.DefaultOptions(dbPath).WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("open %s: %w", dbPath, err)
	}
	defer db.Close()

	directory := repositories.NewDirectoryRepository(db)
	if err = seed.Apply(context.Background(), directory, time.Now().UTC()); err != nil {
		return err
	}
	color.Green.Printf("Seeded %d users and %d businesses\n", len(seed.Users), len(seed.Businesses))
	if err = invalidateCache(seed, directory); err != nil {
		return err
	}

	if !tokens {
		return nil
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return fmt.Errorf("JWT_SECRET is required to print tokens")
	}
	gate := auth.NewGate(secret, directory, time.Now)
	for _, u := range seed.Users {
		token, err := gate.IssueToken(u.ID, domain.Role(u.Role), ttl)
		if err != nil {
			return fmt.Errorf("token for %q: %w", u.ID, err)
		}
		fmt.Printf("%s\t%s\n", color.FgCyan.Render(u.ID), token)
	}
	return nil
}

// invalidateCache drops the seeded entries from the directory cache of a
// running server, when REDIS_URL points at one.
func invalidateCache(seed internal.Seed, directory repositories.DirectoryRepository) error {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		return nil
	}
	ctx := context.Background()
	redisCache, err := cache.NewRedisCache(ctx, url)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer redisCache.Close()

	cached := cache.NewCachedDirectory(directory, redisCache, 0, slog.Default())
	userIDs := lo.Map(seed.Users, func(u internal.SeedUser, _ int) string { return u.ID })
	businessIDs := lo.Map(seed.Businesses, func(b internal.SeedBusiness, _ int) string { return b.ID })
	if err = cached.Invalidate(ctx, userIDs, businessIDs); err != nil {
		return fmt.Errorf("invalidate directory cache: %w", err)
	}
	color.Green.Println("Directory cache invalidated")
	return nil
}
