// Command migrate runs schema operations for the ban ledger.
package main

import (
	"flag"
	"fmt"
	"log"
	"strings"

	"banledger/internal/config"
	"banledger/internal/database"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func usage() error {
	return fmt.Errorf("usage: go run ./cmd/migrate/main.go <up|status|drop>")
}

func run() error {
	flag.Parse()
	if flag.NArg() < 1 {
		return usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := database.Open(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	cmd := strings.ToLower(strings.TrimSpace(flag.Arg(0)))
	switch cmd {
	case "up":
		if err := database.Migrate(db); err != nil {
			return err
		}
		log.Println("automigrations applied")
	case "status":
		status, err := database.SchemaStatus(db)
		if err != nil {
			return fmt.Errorf("schema status failed: %w", err)
		}
		for _, st := range status {
			log.Printf("table=%s exists=%t", st.Table, st.Exists)
		}
	case "drop":
		if cfg.IsProduction() {
			return fmt.Errorf("refusing to drop tables in %s", cfg.Env)
		}
		if err := database.DropAll(db); err != nil {
			return err
		}
		log.Println("ban ledger tables dropped")
	default:
		return usage()
	}

	return nil
}
