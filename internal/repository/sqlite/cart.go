package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository"
)

var _ repository.CartRepository = (*DB)(nil)

func (db *DB) CountCartEntries(ctx context.Context, userID int64) (int, error) {
	var n int
	err := db.conn.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM user_recipes WHERE user_id = ? AND kind = ?`,
		userID, string(model.RelationCart),
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting cart of user %d: %w", userID, err)
	}
	return n, nil
}

// CartIngredients aggregates every ingredient across the recipes in the
// user's cart. Rows with the same name and unit are merged and their
// amounts summed. Two entries that share a name but differ in unit stay
// separate lines.
func (db *DB) CartIngredients(ctx context.Context, userID int64) ([]model.CartLine, error) {
	lines := []model.CartLine{}
	err := db.conn.SelectContext(ctx, &lines,
		`SELECT i.name, i.measurement_unit, SUM(ri.amount) AS total
		 FROM user_recipes ur
		 JOIN recipe_ingredients ri ON ri.recipe_id = ur.recipe_id
		 JOIN ingredients i ON i.id = ri.ingredient_id
		 WHERE ur.user_id = ? AND ur.kind = ?
		 GROUP BY i.name, i.measurement_unit
		 ORDER BY i.name, i.measurement_unit`,
		userID, string(model.RelationCart),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: aggregating cart of user %d: %w", userID, err)
	}
	return lines, nil
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: reading rows affected: %w", err)
	}
	return n > 0, nil
}
