package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sort"

	"github.com/Quantum1000/the-factory-must-grow/internal/app"
	"github.com/Quantum1000/the-factory-must-grow/internal/config"
	"github.com/Quantum1000/the-factory-must-grow/internal/display"
	"github.com/Quantum1000/the-factory-must-grow/internal/logging"
	"github.com/Quantum1000/the-factory-must-grow/internal/storage"
	"github.com/Quantum1000/the-factory-must-grow/internal/world"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML config path")
		seed       = flag.Int64("seed", 0, "World seed (0 = time based)")
		size       = flag.Int("size", 0, "Grid side, overrides world.size")
		spacing    = flag.Int("spacing", 0, "Ore cell side, overrides world.ore_spacing")
		mode       = flag.String("mode", "", "Ore mode: uniform or perlin")
		radius     = flag.Int("radius", 12, "ASCII map radius around the center, -1 to skip")
		save       = flag.Bool("save", false, "Save the generated world to the configured storage")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}
	if *seed != 0 {
		cfg.World.Seed = *seed
	}
	if *size > 0 {
		cfg.World.Size = *size
	}
	if *spacing > 0 {
		cfg.World.OreSpacing = *spacing
	}
	if *mode != "" {
		cfg.World.OreMode = *mode
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Invalid world parameters: %v", err)
	}
	logging.Configure("", logging.WARN)

	ctx := context.Background()
	opts := app.Options{World: cfg.World, WorldID: cfg.Storage.WorldID}
	if *save {
		repo, err := storage.Open(ctx, cfg.Storage)
		if err != nil {
			log.Fatalf("❌ Failed to open storage: %v", err)
		}
		defer repo.Close()
		opts.Repo = repo
	}

	game := app.New(opts)
	report, err := game.Generate(ctx)
	if err != nil {
		log.Fatalf("❌ Generation failed: %v", err)
	}

	info := game.Info()
	fmt.Printf("🌍 World %s: size=%d seed=%d ore_spacing=%d ore_mode=%s\n",
		info.ID, info.Size, info.Seed, info.OreSpacing, info.OreMode)
	fmt.Printf("Placed: %d, rejected: %d, occupied tiles: %d, display objects: %d\n",
		report.Placed, report.Rejected, info.Occupied, info.DisplayObjects)
	printVeins(report)

	if *radius >= 0 {
		fmt.Println()
		game.WithGrid(func(g *world.Grid) {
			fmt.Print(display.RenderASCII(g, g.Center(), *radius))
		})
	}

	if *save {
		id, err := game.Save(ctx)
		if err != nil {
			log.Fatalf("❌ Save failed: %v", err)
		}
		fmt.Printf("\n💾 Saved as %s (%s)\n", id, cfg.Storage.Backend)
	}
}

func printVeins(report *world.GenerationReport) {
	type oreStats struct {
		veins, placed, escaped, longest int
	}
	byOre := make(map[string]*oreStats)
	for _, v := range report.Veins {
		name := v.Ore.String()
		s, ok := byOre[name]
		if !ok {
			s = &oreStats{}
			byOre[name] = s
		}
		s.veins++
		s.placed += v.Placed
		if v.Escaped {
			s.escaped++
		}
		s.longest = max(s.longest, len(v.Path))
	}

	names := make([]string, 0, len(byOre))
	for name := range byOre {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Printf("Veins: %d\n", len(report.Veins))
	for _, name := range names {
		s := byOre[name]
		fmt.Printf("  %-8s veins=%d tiles=%d escaped=%d longest=%d\n", name, s.veins, s.placed, s.escaped, s.longest)
	}
}
