package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository"
)

var _ repository.IngredientRepository = (*DB)(nil)

// likeEscaper escapes LIKE wildcards so a user typing "50%" searches for
// the literal text.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchIngredients returns ingredients whose name starts with prefix,
// ignoring case. An empty prefix returns the whole catalogue.
//
// SQLite's LIKE only folds ASCII, so matching runs against search_name,
// which holds the name lower-cased by Go at insert time.
func (db *DB) SearchIngredients(ctx context.Context, prefix string) ([]model.Ingredient, error) {
	pattern := likeEscaper.Replace(strings.ToLower(prefix)) + "%"

	items := []model.Ingredient{}
	err := db.conn.SelectContext(ctx, &items,
		`SELECT id, name, measurement_unit FROM ingredients
		 WHERE search_name LIKE ? ESCAPE '\'
		 ORDER BY name`,
		pattern,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: searching ingredients %q: %w", prefix, err)
	}
	return items, nil
}

func (db *DB) GetIngredientByID(ctx context.Context, id int64) (*model.Ingredient, error) {
	var ing model.Ingredient
	err := db.conn.GetContext(ctx, &ing,
		`SELECT id, name, measurement_unit FROM ingredients WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("ingredient", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting ingredient %d: %w", id, err)
	}
	return &ing, nil
}

// MissingIngredientIDs returns, in input order, every id with no matching
// ingredient row.
func (db *DB) MissingIngredientIDs(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`SELECT id FROM ingredients WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("sqlite: building ingredient lookup: %w", err)
	}

	var found []int64
	if err := db.conn.SelectContext(ctx, &found, db.conn.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("sqlite: looking up ingredients: %w", err)
	}

	known := make(map[int64]struct{}, len(found))
	for _, id := range found {
		known[id] = struct{}{}
	}

	var missing []int64
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// ImportIngredients bulk-loads catalogue entries in one transaction.
// Names already present are skipped; the return value counts new rows.
func (db *DB) ImportIngredients(ctx context.Context, items []model.Ingredient) (int, error) {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: starting import: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx,
		`INSERT INTO ingredients (name, search_name, measurement_unit)
		 VALUES (?, ?, ?)
		 ON CONFLICT (name) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("sqlite: preparing import: %w", err)
	}
	defer stmt.Close()

	added := 0
	for _, it := range items {
		res, err := stmt.ExecContext(ctx, it.Name, strings.ToLower(it.Name), it.MeasurementUnit)
		if err != nil {
			return 0, fmt.Errorf("sqlite: importing ingredient %q: %w", it.Name, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("sqlite: reading rows affected: %w", err)
		}
		added += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: committing import: %w", err)
	}
	return added, nil
}
