package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository"
)

// EdgeStore creates and removes one kind of relationship row identified by
// key K. Insert reports created=false when the edge already existed and
// Delete reports deleted=false when there was nothing to remove; neither
// case is an error at this level.
type EdgeStore[K any] interface {
	Insert(ctx context.Context, key K) (created bool, err error)
	Delete(ctx context.Context, key K) (deleted bool, err error)
}

// Toggle is the add/remove pair behind the favorite, shopping cart and
// subscribe actions. Adding an edge that exists, or removing one that does
// not, fails with a Conflict carrying the relation's own message; repeating
// an action is an error, not a no-op.
type Toggle[K, V any] struct {
	Edges EdgeStore[K]
	// View builds the response for a successful Add.
	View          func(ctx context.Context, key K) (V, error)
	AlreadyExists string
	NotExists     string
}

func (t Toggle[K, V]) Add(ctx context.Context, key K) (V, error) {
	var zero V
	created, err := t.Edges.Insert(ctx, key)
	if err != nil {
		return zero, fmt.Errorf("adding relation: %w", err)
	}
	if !created {
		return zero, apperror.Rejected(t.AlreadyExists)
	}

	// A failed View leaves no edge behind.
	view, err := t.View(ctx, key)
	if err != nil {
		if _, undoErr := t.Edges.Delete(ctx, key); undoErr != nil {
			return zero, errors.Join(err, fmt.Errorf("undoing relation: %w", undoErr))
		}
		return zero, err
	}
	return view, nil
}

func (t Toggle[K, V]) Remove(ctx context.Context, key K) error {
	deleted, err := t.Edges.Delete(ctx, key)
	if err != nil {
		return fmt.Errorf("removing relation: %w", err)
	}
	if !deleted {
		return apperror.Rejected(t.NotExists)
	}
	return nil
}

// recipeEdges adapts the favorite/cart table to EdgeStore.
type recipeEdges struct {
	repo repository.RelationRepository
}

func (e recipeEdges) Insert(ctx context.Context, key model.RecipeRelation) (bool, error) {
	return e.repo.InsertRelation(ctx, key)
}

func (e recipeEdges) Delete(ctx context.Context, key model.RecipeRelation) (bool, error) {
	return e.repo.DeleteRelation(ctx, key)
}

// subscriptionEdges adapts the subscriptions table to EdgeStore.
type subscriptionEdges struct {
	repo repository.SubscriptionRepository
}

func (e subscriptionEdges) Insert(ctx context.Context, key model.Subscription) (bool, error) {
	return e.repo.InsertSubscription(ctx, key)
}

func (e subscriptionEdges) Delete(ctx context.Context, key model.Subscription) (bool, error) {
	return e.repo.DeleteSubscription(ctx, key)
}
