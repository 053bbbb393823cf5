package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"imageproxy/internal/infra"
	"imageproxy/internal/infra/credentials"
)

func main() {
	_ = godotenv.Load()

	var keyFlag string
	flag.StringVar(&keyFlag, "key", "", "EverArt API key (fallbacks to EVERART_API_KEY)")
	flag.Parse()

	key := strings.TrimSpace(keyFlag)
	if key == "" {
		key = strings.TrimSpace(os.Getenv("EVERART_API_KEY"))
	}
	if key == "" {
		fmt.Fprintln(os.Stderr, "EVERART API key is required via -key or environment")
		os.Exit(1)
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := infra.NewDBPool(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect database: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "everartkey").Logger()
	// Empty configured key so the store writes through to the database.
	store := credentials.NewStore("", infra.NewSQLRunner(pool, logger))

	ctxExec, cancelExec := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelExec()
	if err := store.SetEverArtAPIKey(ctxExec, key); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist everart api key: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("EVERART API key stored successfully")
}
