// Package service contains the business rules of the recipe backend.
//
// THE LAYERS:
//
//	Handler (HTTP)    → decodes requests, writes JSON, maps errors to status codes
//	Service (rules)   → validates payloads, checks ownership, builds views
//	Repository (data) → SQL against SQLite
//
// Services depend on the repository interfaces only, so tests run them
// against in-memory fakes (see fakes_test.go). Errors that a client should
// see are *apperror.AppError values; anything else is wrapped with the
// operation that failed and becomes a 500 at the HTTP layer.
package service

import (
	"context"
	"fmt"

	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository"
)

// Stores groups the repositories the services read and write. In
// production every field is the same *sqlite.DB.
type Stores struct {
	Users         repository.UserRepository
	Ingredients   repository.IngredientRepository
	Recipes       repository.RecipeRepository
	Relations     repository.RelationRepository
	Subscriptions repository.SubscriptionRepository
	Cart          repository.CartRepository
}

// userView renders u as seen by viewerID (0 for anonymous callers).
func (st Stores) userView(ctx context.Context, viewerID int64, u *model.User) (model.UserView, error) {
	subscribed := false
	if viewerID != 0 && viewerID != u.ID {
		var err error
		subscribed, err = st.Subscriptions.IsSubscribed(ctx, model.Subscription{
			SubscriberID: viewerID,
			AuthorID:     u.ID,
		})
		if err != nil {
			return model.UserView{}, fmt.Errorf("checking subscription to user %d: %w", u.ID, err)
		}
	}
	return model.NewUserView(u, subscribed), nil
}

// userWithRecipes renders an author together with up to recipesLimit of
// their recipes. A negative limit means no limit.
func (st Stores) userWithRecipes(ctx context.Context, viewerID int64, u *model.User, recipesLimit int) (model.UserWithRecipes, error) {
	view, err := st.userView(ctx, viewerID, u)
	if err != nil {
		return model.UserWithRecipes{}, err
	}

	recipes, count, err := st.Recipes.ShortRecipesByAuthor(ctx, u.ID, recipesLimit)
	if err != nil {
		return model.UserWithRecipes{}, fmt.Errorf("listing recipes of user %d: %w", u.ID, err)
	}
	if recipes == nil {
		recipes = []model.ShortRecipe{}
	}

	return model.UserWithRecipes{
		UserView:     view,
		Recipes:      recipes,
		RecipesCount: count,
	}, nil
}

// Page is one page of a listing together with the unpaginated total.
type Page[T any] struct {
	Items []T
	Count int
}
