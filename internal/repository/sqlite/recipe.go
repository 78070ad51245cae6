package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository"
)

var _ repository.RecipeRepository = (*DB)(nil)

const recipeColumns = `r.id, r.author_id, r.name, r.text, r.image, r.cooking_time, r.created_at`

// CreateRecipe inserts the recipe and its ingredient edges in one
// transaction and fills in ID and CreatedAt. If any edge fails to insert
// nothing is stored.
func (db *DB) CreateRecipe(ctx context.Context, recipe *model.Recipe, items []model.RecipeIngredient) error {
	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		recipe.CreatedAt = time.Now().UTC()

		res, err := tx.ExecContext(ctx,
			`INSERT INTO recipes (author_id, name, text, image, cooking_time, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			recipe.AuthorID,
			recipe.Name,
			recipe.Text,
			recipe.Image,
			recipe.CookingTime,
			recipe.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("sqlite: inserting recipe %q: %w", recipe.Name, err)
		}

		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("sqlite: reading new recipe id: %w", err)
		}
		recipe.ID = id

		return insertEdges(ctx, tx, recipe.ID, items)
	})
}

// UpdateRecipe overwrites the mutable recipe fields and replaces the full
// ingredient edge set. Author and creation time are never touched.
func (db *DB) UpdateRecipe(ctx context.Context, recipe *model.Recipe, items []model.RecipeIngredient) error {
	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE recipes SET name = ?, text = ?, image = ?, cooking_time = ?
			 WHERE id = ?`,
			recipe.Name,
			recipe.Text,
			recipe.Image,
			recipe.CookingTime,
			recipe.ID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating recipe %d: %w", recipe.ID, err)
		}
		if err := expectOneRow(res, "recipe", recipe.ID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM recipe_ingredients WHERE recipe_id = ?`, recipe.ID); err != nil {
			return fmt.Errorf("sqlite: clearing ingredients of recipe %d: %w", recipe.ID, err)
		}

		return insertEdges(ctx, tx, recipe.ID, items)
	})
}

func insertEdges(ctx context.Context, tx *sqlx.Tx, recipeID int64, items []model.RecipeIngredient) error {
	if len(items) == 0 {
		return nil
	}
	rows := make([]model.RecipeIngredient, len(items))
	for i, it := range items {
		it.RecipeID = recipeID
		rows[i] = it
	}

	_, err := tx.NamedExecContext(ctx,
		`INSERT INTO recipe_ingredients (recipe_id, ingredient_id, amount)
		 VALUES (:recipe_id, :ingredient_id, :amount)`,
		rows,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting ingredients of recipe %d: %w", recipeID, err)
	}
	return nil
}

func (db *DB) GetRecipeByID(ctx context.Context, id int64) (*model.Recipe, error) {
	var r model.Recipe
	err := db.conn.GetContext(ctx, &r, `SELECT `+recipeColumns+` FROM recipes r WHERE r.id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("recipe", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting recipe %d: %w", id, err)
	}
	return &r, nil
}

// ListRecipes returns one page of recipes, newest first, and the number of
// recipes matching the filter before paging.
func (db *DB) ListRecipes(ctx context.Context, filter repository.RecipeFilter) ([]model.Recipe, int, error) {
	limit, offset := clampList(filter.ListOptions)

	var (
		conds []string
		args  []any
	)
	if filter.AuthorID != 0 {
		conds = append(conds, "r.author_id = ?")
		args = append(args, filter.AuthorID)
	}
	if filter.ViewerID != 0 {
		if filter.FavoritedOnly {
			conds = append(conds, relationExists)
			args = append(args, filter.ViewerID, string(model.RelationFavorite))
		}
		if filter.InCartOnly {
			conds = append(conds, relationExists)
			args = append(args, filter.ViewerID, string(model.RelationCart))
		}
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := db.conn.GetContext(ctx, &total, `SELECT COUNT(*) FROM recipes r`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting recipes: %w", err)
	}

	recipes := []model.Recipe{}
	err := db.conn.SelectContext(ctx, &recipes,
		`SELECT `+recipeColumns+` FROM recipes r`+where+` ORDER BY r.id DESC LIMIT ? OFFSET ?`,
		append(args, limit, offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: listing recipes: %w", err)
	}
	return recipes, total, nil
}

const relationExists = `EXISTS (SELECT 1 FROM user_recipes ur
	WHERE ur.recipe_id = r.id AND ur.user_id = ? AND ur.kind = ?)`

// DeleteRecipe removes the recipe. Ingredient edges, favorites and cart
// entries go with it through ON DELETE CASCADE.
func (db *DB) DeleteRecipe(ctx context.Context, id int64) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM recipes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting recipe %d: %w", id, err)
	}
	return expectOneRow(res, "recipe", id)
}

// RecipeIngredients lists a recipe's ingredients with amounts, in the order
// they were submitted.
func (db *DB) RecipeIngredients(ctx context.Context, recipeID int64) ([]model.IngredientAmount, error) {
	items := []model.IngredientAmount{}
	err := db.conn.SelectContext(ctx, &items,
		`SELECT i.id, i.name, i.measurement_unit, ri.amount
		 FROM recipe_ingredients ri
		 JOIN ingredients i ON i.id = ri.ingredient_id
		 WHERE ri.recipe_id = ?
		 ORDER BY ri.id`,
		recipeID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing ingredients of recipe %d: %w", recipeID, err)
	}
	return items, nil
}

// ShortRecipesByAuthor returns up to limit of the author's newest recipes
// and the author's total recipe count. A negative limit means no limit.
func (db *DB) ShortRecipesByAuthor(ctx context.Context, authorID int64, limit int) ([]model.ShortRecipe, int, error) {
	var total int
	if err := db.conn.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM recipes WHERE author_id = ?`, authorID); err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting recipes of user %d: %w", authorID, err)
	}

	if limit < 0 {
		limit = -1 // SQLite: no upper bound
	}

	recipes := []model.ShortRecipe{}
	err := db.conn.SelectContext(ctx, &recipes,
		`SELECT id, name, image, cooking_time FROM recipes
		 WHERE author_id = ? ORDER BY id DESC LIMIT ?`,
		authorID, limit,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: listing recipes of user %d: %w", authorID, err)
	}
	return recipes, total, nil
}

// withTx runs fn inside a transaction, committing on nil and rolling back
// otherwise.
func (db *DB) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: starting transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}
