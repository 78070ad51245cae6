package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/model"
)

// IngredientService serves the read-only ingredient catalogue and the
// bulk import used by cmd/import-ingredients.
type IngredientService struct {
	stores Stores
	logger *slog.Logger
}

func NewIngredientService(stores Stores, logger *slog.Logger) *IngredientService {
	return &IngredientService{stores: stores, logger: logger}
}

// Search returns ingredients whose name starts with prefix, ignoring case.
// An empty prefix lists the whole catalogue.
func (s *IngredientService) Search(ctx context.Context, prefix string) ([]model.Ingredient, error) {
	items, err := s.stores.Ingredients.SearchIngredients(ctx, strings.TrimSpace(prefix))
	if err != nil {
		s.logger.Error("failed to search ingredients",
			slog.String("prefix", prefix),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("searching ingredients: %w", err)
	}
	if items == nil {
		items = []model.Ingredient{}
	}
	return items, nil
}

func (s *IngredientService) Get(ctx context.Context, id int64) (*model.Ingredient, error) {
	return s.stores.Ingredients.GetIngredientByID(ctx, id)
}

// Import adds catalogue entries whose names are not known yet and returns
// how many were added. Entries with a blank name or unit are rejected
// before anything is written.
func (s *IngredientService) Import(ctx context.Context, items []model.Ingredient) (int, error) {
	for i := range items {
		items[i].Name = strings.TrimSpace(items[i].Name)
		items[i].MeasurementUnit = strings.TrimSpace(items[i].MeasurementUnit)
		if items[i].Name == "" || items[i].MeasurementUnit == "" {
			return 0, apperror.ValidationFailed("ingredients",
				fmt.Sprintf("entry %d: name and measurement_unit are required", i+1))
		}
	}

	added, err := s.stores.Ingredients.ImportIngredients(ctx, items)
	if err != nil {
		return 0, fmt.Errorf("importing ingredients: %w", err)
	}

	s.logger.Info("ingredients imported",
		slog.Int("added", added),
		slog.Int("skipped", len(items)-added),
	)
	return added, nil
}
