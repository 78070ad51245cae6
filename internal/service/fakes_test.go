package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/media"
	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository"
)

// =========================================================================
// IN-MEMORY STORE
// =========================================================================
//
// fakeStore implements every repository interface the services use, with
// the same observable rules as the SQLite implementation: unique users,
// one edge per key, cascading deletes, sorted cart aggregation.

type fakeStore struct {
	users       map[int64]*model.User
	ingredients map[int64]model.Ingredient
	recipes     map[int64]*model.Recipe
	edges       map[int64][]model.RecipeIngredient
	relations   map[model.RecipeRelation]bool
	subs        map[model.Subscription]bool
	nextID      int64

	// set to simulate a storage failure inside the recipe transaction
	createRecipeErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:       map[int64]*model.User{},
		ingredients: map[int64]model.Ingredient{},
		recipes:     map[int64]*model.Recipe{},
		edges:       map[int64][]model.RecipeIngredient{},
		relations:   map[model.RecipeRelation]bool{},
		subs:        map[model.Subscription]bool{},
	}
}

func (f *fakeStore) stores() Stores {
	return Stores{
		Users:         f,
		Ingredients:   f,
		Recipes:       f,
		Relations:     f,
		Subscriptions: f,
		Cart:          f,
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func notFound(resource string, id int64) error {
	return apperror.NotFound(resource, strconv.FormatInt(id, 10))
}

// --- users ---

func (f *fakeStore) CreateUser(_ context.Context, u *model.User) error {
	for _, other := range f.users {
		if other.Email == u.Email {
			return apperror.ValidationFailed("email", "A user with that email already exists.")
		}
		if other.Username == u.Username {
			return apperror.ValidationFailed("username", "A user with that username already exists.")
		}
	}
	u.ID = f.id()
	stored := *u
	f.users[u.ID] = &stored
	return nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, notFound("user", id)
	}
	copied := *u
	return &copied, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeStore) ListUsers(_ context.Context, opts repository.ListOptions) ([]model.User, int, error) {
	var all []model.User
	for _, id := range sortedKeys(f.users) {
		all = append(all, *f.users[id])
	}
	return window(all, opts), len(all), nil
}

func (f *fakeStore) UpdatePassword(_ context.Context, id int64, hash string) error {
	u, ok := f.users[id]
	if !ok {
		return notFound("user", id)
	}
	u.PasswordHash = hash
	return nil
}

func (f *fakeStore) SetAvatar(_ context.Context, id int64, avatar *string) error {
	u, ok := f.users[id]
	if !ok {
		return notFound("user", id)
	}
	u.Avatar = avatar
	return nil
}

func (f *fakeStore) UpsertGitHubUser(ctx context.Context, u *model.User) error {
	for _, other := range f.users {
		if other.GitHubID != nil && *other.GitHubID == *u.GitHubID {
			*u = *other
			return nil
		}
	}
	for _, other := range f.users {
		if u.Email != "" && other.Email == u.Email {
			other.GitHubID = u.GitHubID
			*u = *other
			return nil
		}
	}
	return f.CreateUser(ctx, u)
}

// --- ingredients ---

func (f *fakeStore) addIngredient(name, unit string) int64 {
	id := f.id()
	f.ingredients[id] = model.Ingredient{ID: id, Name: name, MeasurementUnit: unit}
	return id
}

func (f *fakeStore) SearchIngredients(_ context.Context, prefix string) ([]model.Ingredient, error) {
	var out []model.Ingredient
	for _, ing := range f.ingredients {
		if strings.HasPrefix(strings.ToLower(ing.Name), strings.ToLower(prefix)) {
			out = append(out, ing)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeStore) GetIngredientByID(_ context.Context, id int64) (*model.Ingredient, error) {
	ing, ok := f.ingredients[id]
	if !ok {
		return nil, notFound("ingredient", id)
	}
	return &ing, nil
}

func (f *fakeStore) MissingIngredientIDs(_ context.Context, ids []int64) ([]int64, error) {
	var missing []int64
	for _, id := range ids {
		if _, ok := f.ingredients[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (f *fakeStore) ImportIngredients(_ context.Context, items []model.Ingredient) (int, error) {
	added := 0
next:
	for _, item := range items {
		for _, ing := range f.ingredients {
			if ing.Name == item.Name {
				continue next
			}
		}
		f.addIngredient(item.Name, item.MeasurementUnit)
		added++
	}
	return added, nil
}

// --- recipes ---

func (f *fakeStore) CreateRecipe(_ context.Context, r *model.Recipe, items []model.RecipeIngredient) error {
	if f.createRecipeErr != nil {
		return f.createRecipeErr
	}
	r.ID = f.id()
	stored := *r
	f.recipes[r.ID] = &stored
	f.edges[r.ID] = withRecipeID(r.ID, items)
	return nil
}

func (f *fakeStore) UpdateRecipe(_ context.Context, r *model.Recipe, items []model.RecipeIngredient) error {
	if _, ok := f.recipes[r.ID]; !ok {
		return notFound("recipe", r.ID)
	}
	stored := *r
	f.recipes[r.ID] = &stored
	f.edges[r.ID] = withRecipeID(r.ID, items)
	return nil
}

func (f *fakeStore) GetRecipeByID(_ context.Context, id int64) (*model.Recipe, error) {
	r, ok := f.recipes[id]
	if !ok {
		return nil, notFound("recipe", id)
	}
	copied := *r
	return &copied, nil
}

func (f *fakeStore) ListRecipes(_ context.Context, filter repository.RecipeFilter) ([]model.Recipe, int, error) {
	ids := sortedKeys(f.recipes)
	var all []model.Recipe
	for i := len(ids) - 1; i >= 0; i-- {
		r := f.recipes[ids[i]]
		if filter.AuthorID != 0 && r.AuthorID != filter.AuthorID {
			continue
		}
		if filter.ViewerID != 0 {
			if filter.FavoritedOnly && !f.relations[model.RecipeRelation{UserID: filter.ViewerID, RecipeID: r.ID, Kind: model.RelationFavorite}] {
				continue
			}
			if filter.InCartOnly && !f.relations[model.RecipeRelation{UserID: filter.ViewerID, RecipeID: r.ID, Kind: model.RelationCart}] {
				continue
			}
		}
		all = append(all, *r)
	}
	return window(all, filter.ListOptions), len(all), nil
}

func (f *fakeStore) DeleteRecipe(_ context.Context, id int64) error {
	if _, ok := f.recipes[id]; !ok {
		return notFound("recipe", id)
	}
	delete(f.recipes, id)
	delete(f.edges, id)
	for rel := range f.relations {
		if rel.RecipeID == id {
			delete(f.relations, rel)
		}
	}
	return nil
}

func (f *fakeStore) RecipeIngredients(_ context.Context, recipeID int64) ([]model.IngredientAmount, error) {
	var out []model.IngredientAmount
	for _, e := range f.edges[recipeID] {
		ing := f.ingredients[e.IngredientID]
		out = append(out, model.IngredientAmount{
			ID:              ing.ID,
			Name:            ing.Name,
			MeasurementUnit: ing.MeasurementUnit,
			Amount:          e.Amount,
		})
	}
	return out, nil
}

func (f *fakeStore) ShortRecipesByAuthor(_ context.Context, authorID int64, limit int) ([]model.ShortRecipe, int, error) {
	var all []model.ShortRecipe
	ids := sortedKeys(f.recipes)
	for i := len(ids) - 1; i >= 0; i-- {
		if r := f.recipes[ids[i]]; r.AuthorID == authorID {
			all = append(all, model.NewShortRecipe(r))
		}
	}
	count := len(all)
	if limit >= 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, count, nil
}

// --- relations ---

func (f *fakeStore) InsertRelation(_ context.Context, rel model.RecipeRelation) (bool, error) {
	if f.relations[rel] {
		return false, nil
	}
	f.relations[rel] = true
	return true, nil
}

func (f *fakeStore) DeleteRelation(_ context.Context, rel model.RecipeRelation) (bool, error) {
	if !f.relations[rel] {
		return false, nil
	}
	delete(f.relations, rel)
	return true, nil
}

func (f *fakeStore) HasRelation(_ context.Context, rel model.RecipeRelation) (bool, error) {
	return f.relations[rel], nil
}

func (f *fakeStore) InsertSubscription(_ context.Context, sub model.Subscription) (bool, error) {
	if f.subs[sub] {
		return false, nil
	}
	f.subs[sub] = true
	return true, nil
}

func (f *fakeStore) DeleteSubscription(_ context.Context, sub model.Subscription) (bool, error) {
	if !f.subs[sub] {
		return false, nil
	}
	delete(f.subs, sub)
	return true, nil
}

func (f *fakeStore) IsSubscribed(_ context.Context, sub model.Subscription) (bool, error) {
	return f.subs[sub], nil
}

func (f *fakeStore) ListSubscriptions(_ context.Context, subscriberID int64, opts repository.ListOptions) ([]model.User, int, error) {
	var all []model.User
	for _, id := range sortedKeys(f.users) {
		if f.subs[model.Subscription{SubscriberID: subscriberID, AuthorID: id}] {
			all = append(all, *f.users[id])
		}
	}
	return window(all, opts), len(all), nil
}

// --- cart ---

func (f *fakeStore) CountCartEntries(_ context.Context, userID int64) (int, error) {
	n := 0
	for rel := range f.relations {
		if rel.UserID == userID && rel.Kind == model.RelationCart {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) CartIngredients(_ context.Context, userID int64) ([]model.CartLine, error) {
	type group struct{ name, unit string }
	totals := map[group]int{}
	for rel := range f.relations {
		if rel.UserID != userID || rel.Kind != model.RelationCart {
			continue
		}
		for _, e := range f.edges[rel.RecipeID] {
			ing := f.ingredients[e.IngredientID]
			totals[group{ing.Name, ing.MeasurementUnit}] += e.Amount
		}
	}

	lines := make([]model.CartLine, 0, len(totals))
	for g, total := range totals {
		lines = append(lines, model.CartLine{Name: g.name, MeasurementUnit: g.unit, Total: total})
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].Name != lines[j].Name {
			return lines[i].Name < lines[j].Name
		}
		return lines[i].MeasurementUnit < lines[j].MeasurementUnit
	})
	return lines, nil
}

// --- helpers ---

func withRecipeID(recipeID int64, items []model.RecipeIngredient) []model.RecipeIngredient {
	out := make([]model.RecipeIngredient, len(items))
	for i, item := range items {
		item.RecipeID = recipeID
		out[i] = item
	}
	return out
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func window[T any](all []T, opts repository.ListOptions) []T {
	if opts.Offset >= len(all) {
		return nil
	}
	all = all[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(all) {
		all = all[:opts.Limit]
	}
	return all
}

// =========================================================================
// SHARED FIXTURES
// =========================================================================

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestUploader(t *testing.T) *media.Uploader {
	t.Helper()
	store, err := media.NewLocalStore(t.TempDir(), "/media/")
	require.NoError(t, err)
	return media.NewUploader(store)
}

// pngDataURI returns a tiny valid PNG as a base64 data URI.
func pngDataURI(t *testing.T) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.NRGBA{G: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func (f *fakeStore) addUser(t *testing.T, username string) int64 {
	t.Helper()
	u := &model.User{
		Email:     username + "@example.com",
		Username:  username,
		FirstName: strings.ToUpper(username[:1]) + username[1:],
		LastName:  "Tester",
	}
	require.NoError(t, f.CreateUser(context.Background(), u))
	return u.ID
}

func ptr[T any](v T) *T { return &v }

// requireKind fails the test unless err is an AppError of the given kind.
func requireKind(t *testing.T, err error, kind error) *apperror.AppError {
	t.Helper()
	require.ErrorIs(t, err, kind)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	return appErr
}
