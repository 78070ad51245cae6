package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/media"
	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository"
)

const (
	msgNotAuthor    = "You do not have permission to perform this action."
	msgBadImage     = "Upload a valid image. The file you uploaded was either not an image or a corrupted image."
	msgEmptyCart    = "Shopping list empty"
	msgFavExists    = "Recipe already is favorited."
	msgFavMissing   = "Recipe is not favorited."
	msgCartExists   = "Recipe already in shopping cart."
	msgCartMissing  = "Recipe is not in shopping cart."
	shortLinkFormat = "/s/%d/"
)

// RecipeQuery is a recipe listing request. ViewerID is 0 for anonymous
// callers; the favorited and cart filters only apply to signed-in viewers.
type RecipeQuery struct {
	ViewerID      int64
	AuthorID      int64
	FavoritedOnly bool
	InCartOnly    bool
	Limit         int
	Offset        int
}

// RecipeService owns recipes, their favorite and shopping cart relations,
// and the shopping list built from the cart.
type RecipeService struct {
	stores Stores
	images *media.Uploader
	logger *slog.Logger

	favorites Toggle[model.RecipeRelation, model.ShortRecipe]
	cart      Toggle[model.RecipeRelation, model.ShortRecipe]
}

func NewRecipeService(stores Stores, images *media.Uploader, logger *slog.Logger) *RecipeService {
	s := &RecipeService{
		stores: stores,
		images: images,
		logger: logger,
	}

	edges := recipeEdges{repo: stores.Relations}
	s.favorites = Toggle[model.RecipeRelation, model.ShortRecipe]{
		Edges:         edges,
		View:          s.shortRecipe,
		AlreadyExists: msgFavExists,
		NotExists:     msgFavMissing,
	}
	s.cart = Toggle[model.RecipeRelation, model.ShortRecipe]{
		Edges:         edges,
		View:          s.shortRecipe,
		AlreadyExists: msgCartExists,
		NotExists:     msgCartMissing,
	}
	return s
}

// Create validates the payload, stores the image and writes the recipe
// with its ingredient edges in one transaction.
func (s *RecipeService) Create(ctx context.Context, authorID int64, in RecipeInput) (*model.RecipeView, error) {
	if err := ValidateRecipe(in, ModeCreate); err != nil {
		return nil, err
	}
	if err := s.checkIngredientsExist(ctx, in.Ingredients); err != nil {
		return nil, err
	}

	image, err := s.saveImage(ctx, *in.Image)
	if err != nil {
		return nil, err
	}

	recipe := &model.Recipe{
		AuthorID:    authorID,
		Name:        strings.TrimSpace(*in.Name),
		Text:        strings.TrimSpace(*in.Text),
		Image:       image,
		CookingTime: *in.CookingTime,
	}
	if err := s.stores.Recipes.CreateRecipe(ctx, recipe, edgesFrom(in.Ingredients)); err != nil {
		s.discardImage(ctx, image)
		s.logger.Error("failed to create recipe",
			slog.Int64("authorID", authorID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating recipe: %w", err)
	}

	s.logger.Info("recipe created",
		slog.Int64("id", recipe.ID),
		slog.Int64("authorID", authorID),
		slog.Int("ingredients", len(in.Ingredients)),
	)
	return s.view(ctx, authorID, recipe)
}

// Update replaces every field of a recipe and its whole ingredient set.
// Partial payloads are rejected even though the route also accepts PATCH.
// Only the author may update; the image is optional and kept when absent.
func (s *RecipeService) Update(ctx context.Context, userID, recipeID int64, in RecipeInput) (*model.RecipeView, error) {
	recipe, err := s.ownedRecipe(ctx, userID, recipeID)
	if err != nil {
		return nil, err
	}
	if err := ValidateRecipe(in, ModeUpdate); err != nil {
		return nil, err
	}
	if err := s.checkIngredientsExist(ctx, in.Ingredients); err != nil {
		return nil, err
	}

	oldImage := recipe.Image
	if in.Image != nil {
		image, err := s.saveImage(ctx, *in.Image)
		if err != nil {
			return nil, err
		}
		recipe.Image = image
	}
	recipe.Name = strings.TrimSpace(*in.Name)
	recipe.Text = strings.TrimSpace(*in.Text)
	recipe.CookingTime = *in.CookingTime

	if err := s.stores.Recipes.UpdateRecipe(ctx, recipe, edgesFrom(in.Ingredients)); err != nil {
		if recipe.Image != oldImage {
			s.discardImage(ctx, recipe.Image)
		}
		s.logger.Error("failed to update recipe",
			slog.Int64("id", recipeID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating recipe %d: %w", recipeID, err)
	}
	if recipe.Image != oldImage {
		s.discardImage(ctx, oldImage)
	}

	s.logger.Info("recipe updated", slog.Int64("id", recipeID))
	return s.view(ctx, userID, recipe)
}

func (s *RecipeService) Get(ctx context.Context, viewerID, recipeID int64) (*model.RecipeView, error) {
	recipe, err := s.stores.Recipes.GetRecipeByID(ctx, recipeID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, viewerID, recipe)
}

// List returns one page of recipes, newest first.
func (s *RecipeService) List(ctx context.Context, q RecipeQuery) (Page[model.RecipeView], error) {
	recipes, count, err := s.stores.Recipes.ListRecipes(ctx, repository.RecipeFilter{
		AuthorID:      q.AuthorID,
		ViewerID:      q.ViewerID,
		FavoritedOnly: q.FavoritedOnly,
		InCartOnly:    q.InCartOnly,
		ListOptions:   repository.ListOptions{Limit: q.Limit, Offset: q.Offset},
	})
	if err != nil {
		s.logger.Error("failed to list recipes", slog.String("error", err.Error()))
		return Page[model.RecipeView]{}, fmt.Errorf("listing recipes: %w", err)
	}

	views := make([]model.RecipeView, 0, len(recipes))
	for i := range recipes {
		v, err := s.view(ctx, q.ViewerID, &recipes[i])
		if err != nil {
			return Page[model.RecipeView]{}, err
		}
		views = append(views, *v)
	}
	return Page[model.RecipeView]{Items: views, Count: count}, nil
}

// Delete removes a recipe owned by userID. Ingredient edges, favorites and
// cart entries go with it through ON DELETE CASCADE.
func (s *RecipeService) Delete(ctx context.Context, userID, recipeID int64) error {
	recipe, err := s.ownedRecipe(ctx, userID, recipeID)
	if err != nil {
		return err
	}
	if err := s.stores.Recipes.DeleteRecipe(ctx, recipeID); err != nil {
		return fmt.Errorf("deleting recipe %d: %w", recipeID, err)
	}
	s.discardImage(ctx, recipe.Image)

	s.logger.Info("recipe deleted", slog.Int64("id", recipeID))
	return nil
}

func (s *RecipeService) AddFavorite(ctx context.Context, userID, recipeID int64) (model.ShortRecipe, error) {
	return s.addRelation(ctx, s.favorites, userID, recipeID, model.RelationFavorite)
}

func (s *RecipeService) RemoveFavorite(ctx context.Context, userID, recipeID int64) error {
	return s.removeRelation(ctx, s.favorites, userID, recipeID, model.RelationFavorite)
}

func (s *RecipeService) AddToCart(ctx context.Context, userID, recipeID int64) (model.ShortRecipe, error) {
	return s.addRelation(ctx, s.cart, userID, recipeID, model.RelationCart)
}

func (s *RecipeService) RemoveFromCart(ctx context.Context, userID, recipeID int64) error {
	return s.removeRelation(ctx, s.cart, userID, recipeID, model.RelationCart)
}

// ShortLink returns the site-relative short link of an existing recipe.
func (s *RecipeService) ShortLink(ctx context.Context, recipeID int64) (string, error) {
	if _, err := s.stores.Recipes.GetRecipeByID(ctx, recipeID); err != nil {
		return "", err
	}
	return fmt.Sprintf(shortLinkFormat, recipeID), nil
}

// ShoppingList aggregates the ingredients of every recipe in the user's
// cart: one line per (name, unit) with the amounts summed.
func (s *RecipeService) ShoppingList(ctx context.Context, userID int64) ([]model.CartLine, error) {
	n, err := s.stores.Cart.CountCartEntries(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("counting cart of user %d: %w", userID, err)
	}
	if n == 0 {
		return nil, apperror.ValidationFailed("shopping_cart", msgEmptyCart)
	}

	lines, err := s.stores.Cart.CartIngredients(ctx, userID)
	if err != nil {
		s.logger.Error("failed to aggregate shopping cart",
			slog.Int64("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("aggregating cart of user %d: %w", userID, err)
	}
	return lines, nil
}

func (s *RecipeService) addRelation(ctx context.Context, t Toggle[model.RecipeRelation, model.ShortRecipe], userID, recipeID int64, kind model.RelationKind) (model.ShortRecipe, error) {
	if _, err := s.stores.Recipes.GetRecipeByID(ctx, recipeID); err != nil {
		return model.ShortRecipe{}, err
	}
	short, err := t.Add(ctx, model.RecipeRelation{UserID: userID, RecipeID: recipeID, Kind: kind})
	if err != nil {
		return model.ShortRecipe{}, err
	}
	s.logger.Info("relation added",
		slog.String("kind", string(kind)),
		slog.Int64("userID", userID),
		slog.Int64("recipeID", recipeID),
	)
	return short, nil
}

func (s *RecipeService) removeRelation(ctx context.Context, t Toggle[model.RecipeRelation, model.ShortRecipe], userID, recipeID int64, kind model.RelationKind) error {
	if _, err := s.stores.Recipes.GetRecipeByID(ctx, recipeID); err != nil {
		return err
	}
	if err := t.Remove(ctx, model.RecipeRelation{UserID: userID, RecipeID: recipeID, Kind: kind}); err != nil {
		return err
	}
	s.logger.Info("relation removed",
		slog.String("kind", string(kind)),
		slog.Int64("userID", userID),
		slog.Int64("recipeID", recipeID),
	)
	return nil
}

func (s *RecipeService) shortRecipe(ctx context.Context, rel model.RecipeRelation) (model.ShortRecipe, error) {
	recipe, err := s.stores.Recipes.GetRecipeByID(ctx, rel.RecipeID)
	if err != nil {
		return model.ShortRecipe{}, err
	}
	return model.NewShortRecipe(recipe), nil
}

// ownedRecipe loads a recipe and checks that userID wrote it.
func (s *RecipeService) ownedRecipe(ctx context.Context, userID, recipeID int64) (*model.Recipe, error) {
	recipe, err := s.stores.Recipes.GetRecipeByID(ctx, recipeID)
	if err != nil {
		return nil, err
	}
	if recipe.AuthorID != userID {
		return nil, apperror.Forbidden(msgNotAuthor)
	}
	return recipe, nil
}

func (s *RecipeService) checkIngredientsExist(ctx context.Context, items []IngredientInput) error {
	ids := make([]int64, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	missing, err := s.stores.Ingredients.MissingIngredientIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("checking ingredients: %w", err)
	}
	if len(missing) > 0 {
		return apperror.ValidationFailed("ingredients",
			fmt.Sprintf("Invalid ingredient id %d - object does not exist.", missing[0]))
	}
	return nil
}

func (s *RecipeService) saveImage(ctx context.Context, dataURI string) (string, error) {
	url, err := s.images.SaveDataURI(ctx, media.RecipeFolder, dataURI)
	if errors.Is(err, media.ErrInvalidImage) {
		return "", apperror.ValidationFailed("image", msgBadImage)
	}
	if err != nil {
		return "", fmt.Errorf("saving recipe image: %w", err)
	}
	return url, nil
}

// discardImage removes an image that is no longer referenced. Failures are
// logged, not returned: the database is already consistent.
func (s *RecipeService) discardImage(ctx context.Context, url string) {
	if err := s.images.Delete(ctx, url); err != nil {
		s.logger.Warn("failed to remove image",
			slog.String("url", url),
			slog.String("error", err.Error()),
		)
	}
}

func (s *RecipeService) view(ctx context.Context, viewerID int64, r *model.Recipe) (*model.RecipeView, error) {
	author, err := s.stores.Users.GetUserByID(ctx, r.AuthorID)
	if err != nil {
		return nil, fmt.Errorf("loading author of recipe %d: %w", r.ID, err)
	}
	authorView, err := s.stores.userView(ctx, viewerID, author)
	if err != nil {
		return nil, err
	}

	items, err := s.stores.Recipes.RecipeIngredients(ctx, r.ID)
	if err != nil {
		return nil, fmt.Errorf("loading ingredients of recipe %d: %w", r.ID, err)
	}
	if items == nil {
		items = []model.IngredientAmount{}
	}

	var favorited, inCart bool
	if viewerID != 0 {
		rel := model.RecipeRelation{UserID: viewerID, RecipeID: r.ID, Kind: model.RelationFavorite}
		if favorited, err = s.stores.Relations.HasRelation(ctx, rel); err != nil {
			return nil, fmt.Errorf("checking favorite: %w", err)
		}
		rel.Kind = model.RelationCart
		if inCart, err = s.stores.Relations.HasRelation(ctx, rel); err != nil {
			return nil, fmt.Errorf("checking cart: %w", err)
		}
	}

	return &model.RecipeView{
		ID:               r.ID,
		Author:           authorView,
		Ingredients:      items,
		IsFavorited:      favorited,
		IsInShoppingCart: inCart,
		Name:             r.Name,
		Image:            r.Image,
		Text:             r.Text,
		CookingTime:      r.CookingTime,
	}, nil
}

func edgesFrom(items []IngredientInput) []model.RecipeIngredient {
	edges := make([]model.RecipeIngredient, len(items))
	for i, item := range items {
		edges[i] = model.RecipeIngredient{IngredientID: item.ID, Amount: item.Amount}
	}
	return edges
}
