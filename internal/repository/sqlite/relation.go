package sqlite

import (
	"context"
	"fmt"

	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository"
)

var (
	_ repository.RelationRepository     = (*DB)(nil)
	_ repository.SubscriptionRepository = (*DB)(nil)
)

// InsertRelation adds a favorite or cart edge. It reports false, with no
// error, when the edge already exists. Check and insert are one statement,
// so two concurrent requests cannot both create the edge.
func (db *DB) InsertRelation(ctx context.Context, rel model.RecipeRelation) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO user_recipes (user_id, recipe_id, kind) VALUES (?, ?, ?)
		 ON CONFLICT (user_id, recipe_id, kind) DO NOTHING`,
		rel.UserID, rel.RecipeID, string(rel.Kind),
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: inserting %s of recipe %d for user %d: %w", rel.Kind, rel.RecipeID, rel.UserID, err)
	}
	return affected(res)
}

// DeleteRelation removes a favorite or cart edge and reports whether one
// existed.
func (db *DB) DeleteRelation(ctx context.Context, rel model.RecipeRelation) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM user_recipes WHERE user_id = ? AND recipe_id = ? AND kind = ?`,
		rel.UserID, rel.RecipeID, string(rel.Kind),
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: deleting %s of recipe %d for user %d: %w", rel.Kind, rel.RecipeID, rel.UserID, err)
	}
	return affected(res)
}

func (db *DB) HasRelation(ctx context.Context, rel model.RecipeRelation) (bool, error) {
	var exists bool
	err := db.conn.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM user_recipes WHERE user_id = ? AND recipe_id = ? AND kind = ?)`,
		rel.UserID, rel.RecipeID, string(rel.Kind),
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking %s of recipe %d for user %d: %w", rel.Kind, rel.RecipeID, rel.UserID, err)
	}
	return exists, nil
}

func (db *DB) InsertSubscription(ctx context.Context, sub model.Subscription) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO subscriptions (subscriber_id, author_id) VALUES (?, ?)
		 ON CONFLICT (subscriber_id, author_id) DO NOTHING`,
		sub.SubscriberID, sub.AuthorID,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: subscribing user %d to %d: %w", sub.SubscriberID, sub.AuthorID, err)
	}
	return affected(res)
}

func (db *DB) DeleteSubscription(ctx context.Context, sub model.Subscription) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM subscriptions WHERE subscriber_id = ? AND author_id = ?`,
		sub.SubscriberID, sub.AuthorID,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: unsubscribing user %d from %d: %w", sub.SubscriberID, sub.AuthorID, err)
	}
	return affected(res)
}

func (db *DB) IsSubscribed(ctx context.Context, sub model.Subscription) (bool, error) {
	var exists bool
	err := db.conn.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM subscriptions WHERE subscriber_id = ? AND author_id = ?)`,
		sub.SubscriberID, sub.AuthorID,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking subscription %d -> %d: %w", sub.SubscriberID, sub.AuthorID, err)
	}
	return exists, nil
}

// ListSubscriptions returns one page of the authors subscriberID follows,
// ordered by author id, and the total number followed.
func (db *DB) ListSubscriptions(ctx context.Context, subscriberID int64, opts repository.ListOptions) ([]model.User, int, error) {
	limit, offset := clampList(opts)

	var total int
	if err := db.conn.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM subscriptions WHERE subscriber_id = ?`, subscriberID); err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting subscriptions of user %d: %w", subscriberID, err)
	}

	users := []model.User{}
	err := db.conn.SelectContext(ctx, &users,
		`SELECT u.id, u.email, u.username, u.first_name, u.last_name, u.password_hash,
		        u.avatar, u.github_id, u.created_at
		 FROM subscriptions s
		 JOIN users u ON u.id = s.author_id
		 WHERE s.subscriber_id = ?
		 ORDER BY u.id
		 LIMIT ? OFFSET ?`,
		subscriberID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: listing subscriptions of user %d: %w", subscriberID, err)
	}
	return users, total, nil
}
