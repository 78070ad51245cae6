// Package repository declares the storage interfaces the service layer
// depends on. The sqlite subpackage is the only implementation; services
// and their tests see these interfaces and nothing else.
package repository

import (
	"context"

	"github.com/sakif/foodgram/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// RecipeFilter narrows a recipe listing. ViewerID is 0 for anonymous
// callers, in which case FavoritedOnly and InCartOnly are ignored.
type RecipeFilter struct {
	AuthorID      int64
	ViewerID      int64
	FavoritedOnly bool
	InCartOnly    bool
	ListOptions
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context, opts ListOptions) ([]model.User, int, error)
	UpdatePassword(ctx context.Context, id int64, hash string) error
	SetAvatar(ctx context.Context, id int64, avatar *string) error
	UpsertGitHubUser(ctx context.Context, user *model.User) error
}

type IngredientRepository interface {
	SearchIngredients(ctx context.Context, prefix string) ([]model.Ingredient, error)
	GetIngredientByID(ctx context.Context, id int64) (*model.Ingredient, error)
	// MissingIngredientIDs returns the ids from the input that have no row.
	MissingIngredientIDs(ctx context.Context, ids []int64) ([]int64, error)
	// ImportIngredients inserts ingredients whose names are not yet known and
	// reports how many rows were added.
	ImportIngredients(ctx context.Context, items []model.Ingredient) (int, error)
}

type RecipeRepository interface {
	// CreateRecipe stores the recipe row and its ingredient edges atomically.
	CreateRecipe(ctx context.Context, recipe *model.Recipe, items []model.RecipeIngredient) error
	// UpdateRecipe replaces the recipe fields and its whole ingredient edge
	// set atomically.
	UpdateRecipe(ctx context.Context, recipe *model.Recipe, items []model.RecipeIngredient) error
	GetRecipeByID(ctx context.Context, id int64) (*model.Recipe, error)
	ListRecipes(ctx context.Context, filter RecipeFilter) ([]model.Recipe, int, error)
	DeleteRecipe(ctx context.Context, id int64) error
	RecipeIngredients(ctx context.Context, recipeID int64) ([]model.IngredientAmount, error)
	ShortRecipesByAuthor(ctx context.Context, authorID int64, limit int) ([]model.ShortRecipe, int, error)
}

// RelationRepository stores favorite and shopping cart edges.
type RelationRepository interface {
	InsertRelation(ctx context.Context, rel model.RecipeRelation) (bool, error)
	DeleteRelation(ctx context.Context, rel model.RecipeRelation) (bool, error)
	HasRelation(ctx context.Context, rel model.RecipeRelation) (bool, error)
}

type SubscriptionRepository interface {
	InsertSubscription(ctx context.Context, sub model.Subscription) (bool, error)
	DeleteSubscription(ctx context.Context, sub model.Subscription) (bool, error)
	IsSubscribed(ctx context.Context, sub model.Subscription) (bool, error)
	ListSubscriptions(ctx context.Context, subscriberID int64, opts ListOptions) ([]model.User, int, error)
}

type CartRepository interface {
	CountCartEntries(ctx context.Context, userID int64) (int, error)
	CartIngredients(ctx context.Context, userID int64) ([]model.CartLine, error)
}
