package main

import (
	"context"
	_ "embed"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/example/plant-store/internal/config"
	"github.com/example/plant-store/internal/domain/plant"
	"github.com/example/plant-store/internal/infrastructure/catalog"
	"github.com/example/plant-store/internal/infrastructure/store"
	"github.com/example/plant-store/internal/logger"
)

//go:embed plants.yaml
var defaultPlants []byte

type seedPlant struct {
	Name           string   `yaml:"name"`
	Price          string   `yaml:"price"`
	Categories     []string `yaml:"categories"`
	Available      bool     `yaml:"available"`
	Description    string   `yaml:"description"`
	ScientificName string   `yaml:"scientific_name"`
	Light          string   `yaml:"light"`
	Watering       string   `yaml:"watering"`
	PotSize        string   `yaml:"pot_size"`
	Care           string   `yaml:"care"`
	Image          string   `yaml:"image"`
	Popularity     int      `yaml:"popularity"`
}

func main() {
	file := flag.String("file", "", "YAML file with plants to seed (defaults to the built-in sample set)")
	keep := flag.Bool("keep", false, "keep existing plants instead of dropping the collection")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	raw := defaultPlants
	if *file != "" {
		if raw, err = os.ReadFile(*file); err != nil {
			log.Fatal("read seed file", "file", *file, "error", err)
		}
	}
	plants, err := parsePlants(raw)
	if err != nil {
		log.Fatal("parse seed plants", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client, err := store.ConnectMongo(ctx, cfg.Mongo, cfg.StoreTimeout, log)
	if err != nil {
		log.Fatal("connect mongodb", "error", err)
	}
	defer client.Disconnect(context.Background())
	db := client.Database(cfg.Mongo.Database)

	plantCatalog := catalog.NewMongoCatalog(db, cfg.StoreTimeout)
	if !*keep {
		if err := plantCatalog.Reset(ctx); err != nil {
			log.Fatal("drop plants", "error", err)
		}
		log.Info("cleared existing plants")
	}

	inserted, err := plantCatalog.InsertMany(ctx, plants)
	if err != nil {
		log.Fatal("insert plants", "error", err)
	}

	if err := plantCatalog.EnsureIndexes(ctx); err != nil {
		log.Fatal("create plant indexes", "error", err)
	}
	if err := store.EnsureIndexes(ctx, db); err != nil {
		log.Fatal("create aggregate indexes", "error", err)
	}

	available := 0
	for _, p := range plants {
		if p.IsAvailable {
			available++
		}
	}
	log.Info("seeding completed", "inserted", inserted, "available", available, "database", cfg.Mongo.Database)
}

// parsePlants decodes and validates a YAML list of plants.
func parsePlants(raw []byte) ([]*plant.Plant, error) {
	var seeds []seedPlant
	if err := yaml.Unmarshal(raw, &seeds); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}

	plants := make([]*plant.Plant, 0, len(seeds))
	for i, s := range seeds {
		price, err := decimal.NewFromString(s.Price)
		if err != nil {
			return nil, fmt.Errorf("plant %d (%s): invalid price %q", i, s.Name, s.Price)
		}
		categories := make([]plant.Category, 0, len(s.Categories))
		for _, c := range s.Categories {
			categories = append(categories, plant.Category(c))
		}
		p := &plant.Plant{
			Name:              s.Name,
			Price:             price,
			Categories:        categories,
			IsAvailable:       s.Available,
			Description:       s.Description,
			ScientificName:    s.ScientificName,
			Image:             s.Image,
			LightRequirement:  plant.LightRequirement(s.Light),
			WateringFrequency: s.Watering,
			PotSize:           s.PotSize,
			CareInstructions:  s.Care,
			Popularity:        s.Popularity,
		}
		p.Normalize()
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("plant %d (%s): %w", i, s.Name, err)
		}
		plants = append(plants, p)
	}
	return plants, nil
}
