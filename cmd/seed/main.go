// Command seed populates a guild with fake players and bans.
package main

import (
	"context"
	"flag"
	"log"

	"banledger/internal/bootstrap"
	"banledger/internal/config"
	"banledger/internal/seed"
)

func main() {
	scenarioPath := flag.String("scenario", "", "YAML scenario file (overrides the other flags)")
	guildID := flag.Uint64("guild", 0, "Guild ID to populate")
	guildName := flag.String("guild-name", "", "Guild display name")
	players := flag.Int("players", seed.DefaultOptions().Players, "Number of players to register")
	bans := flag.Int("bans", seed.DefaultOptions().Bans, "Number of bans to create")
	activeRatio := flag.Float64("active", seed.DefaultOptions().ActiveRatio, "Share of bans still running")
	manualRatio := flag.Float64("unbanned", seed.DefaultOptions().ManualRatio, "Share of running bans to reverse")
	shouldClean := flag.Bool("clean", true, "Clear the guild before seeding")
	rngSeed := flag.Int64("seed", 0, "Random seed (0 = time based)")
	flag.Parse()

	var sc seed.Scenario
	if *scenarioPath != "" {
		loaded, err := seed.LoadScenario(*scenarioPath)
		if err != nil {
			log.Fatalf("Failed to load scenario: %v", err)
		}
		sc = *loaded
	} else {
		opts := seed.DefaultOptions()
		opts.Players = *players
		opts.Bans = *bans
		opts.ActiveRatio = *activeRatio
		opts.ManualRatio = *manualRatio
		opts.Clean = *shouldClean
		opts.Seed = *rngSeed
		sc = seed.Scenario{GuildID: *guildID, GuildName: *guildName, Options: opts}
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	rt, err := bootstrap.InitRuntime(cfg, bootstrap.Options{SkipRedis: true})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	ctx := context.Background()
	defer func() { _ = rt.Close(ctx) }()

	res, err := seed.NewSeeder(rt.DB, sc.Seed).Run(ctx, sc)
	if err != nil {
		log.Printf("Seeding failed: %v", err)
		return
	}

	log.Printf("Seeded guild %d: %d players, %d bans (%d active, %d unbanned)",
		sc.GuildID, res.Players, res.Bans, res.Active, res.Unbanned)
}
