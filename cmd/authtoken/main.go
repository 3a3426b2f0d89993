package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"jimpitan/internal/infra"
	"jimpitan/internal/infra/credentials"
)

func main() {
	var (
		tokenFlag string
		ttlFlag   time.Duration
		dbFlag    string
		showFlag  bool
	)
	flag.StringVar(&tokenFlag, "token", "", "API session token (falls back to API_TOKEN)")
	flag.DurationVar(&ttlFlag, "ttl", 12*time.Hour, "token lifetime; 0 keeps it until replaced")
	flag.StringVar(&dbFlag, "db", "", "queue database path (defaults to QUEUE_DB_PATH)")
	flag.BoolVar(&showFlag, "show", false, "report whether a usable token is stored instead of writing one")
	flag.Parse()

	_ = godotenv.Load()

	dbPath := strings.TrimSpace(dbFlag)
	if dbPath == "" {
		dbPath = strings.TrimSpace(os.Getenv("QUEUE_DB_PATH"))
	}
	if dbPath == "" {
		dbPath = "./data/jimpitan.db"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger := infra.NewLogger("cli").With().Str("cmd", "authtoken").Logger()
	db, err := infra.OpenSQLite(ctx, dbPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()
	store := credentials.NewStore(infra.NewSQLRunner(db, logger))

	if showFlag {
		token, err := store.APIToken(ctx)
		switch {
		case err != nil:
			fmt.Fprintf(os.Stderr, "token unusable: %v\n", err)
			os.Exit(1)
		case token == "":
			fmt.Println("no token stored")
		default:
			fmt.Printf("token stored (%d chars)\n", len(token))
		}
		return
	}

	token := strings.TrimSpace(tokenFlag)
	if token == "" {
		token = strings.TrimSpace(os.Getenv("API_TOKEN"))
	}
	if token == "" {
		fmt.Fprintln(os.Stderr, "API token is required via -token or API_TOKEN")
		os.Exit(1)
	}
	if ttlFlag < 0 {
		fmt.Fprintln(os.Stderr, "-ttl must not be negative")
		os.Exit(1)
	}

	if err := store.SetAPIToken(ctx, token, ttlFlag); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist token: %v\n", err)
		os.Exit(1)
	}
	if ttlFlag > 0 {
		fmt.Printf("API token stored in %s, expires in %s\n", dbPath, ttlFlag)
		return
	}
	fmt.Printf("API token stored in %s\n", dbPath)
}
