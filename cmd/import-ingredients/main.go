// Command import-ingredients loads the ingredient catalogue from a JSON
// file into the database:
//
//	[{"name": "Flour", "measurement_unit": "g"}, ...]
//
// Names that already exist are skipped, so the command can be re-run after
// the file grows.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/sakif/foodgram/internal/config"
	"github.com/sakif/foodgram/internal/model"
	sqliteRepo "github.com/sakif/foodgram/internal/repository/sqlite"
	"github.com/sakif/foodgram/internal/service"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := run(context.Background(), os.Args[1:], os.Stdout, logger); err != nil {
		logger.Error("import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer, logger *slog.Logger) error {
	fs := flag.NewFlagSet("import-ingredients", flag.ContinueOnError)
	configPath := fs.String("config", "config.yaml", "path to the YAML config file (optional)")
	file := fs.String("file", "data/ingredients.json", "JSON array of {name, measurement_unit}")
	dbPath := fs.String("db", "", "database path, overrides the configured one")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	items, err := readIngredients(*file)
	if err != nil {
		return err
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	svc := service.NewIngredientService(service.Stores{Ingredients: db}, logger)
	added, err := svc.Import(ctx, items)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "imported %d of %d ingredients from %s\n", added, len(items), *file)
	return nil
}

func readIngredients(path string) ([]model.Ingredient, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var items []model.Ingredient
	if err := json.NewDecoder(f).Decode(&items); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return items, nil
}
