package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository"
)

// =========================================================================
// INGREDIENT TESTS
// =========================================================================

func TestSearchIngredients_CaseInsensitivePrefix(t *testing.T) {
	db := newTestDB(t)
	seedIngredients(t, db,
		[2]string{"Flour", "g"},
		[2]string{"flaxseed", "g"},
		[2]string{"Milk", "ml"},
		[2]string{"Яйцо", "шт"},
	)

	tests := []struct {
		prefix string
		want   []string
	}{
		{"fl", []string{"Flour", "flaxseed"}},
		{"FLO", []string{"Flour"}},
		{"я", []string{"Яйцо"}},
		{"%", nil},
		{"", []string{"Flour", "Milk", "flaxseed", "Яйцо"}},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			got, err := db.SearchIngredients(context.Background(), tt.prefix)
			if err != nil {
				t.Fatalf("SearchIngredients() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d (%+v)", len(got), len(tt.want), got)
			}
			for i, name := range tt.want {
				if got[i].Name != name {
					t.Errorf("[%d] = %q, want %q", i, got[i].Name, name)
				}
			}
		})
	}
}

func TestImportIngredients_SkipsExistingNames(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	n, err := db.ImportIngredients(ctx, []model.Ingredient{
		{Name: "salt", MeasurementUnit: "g"},
		{Name: "sugar", MeasurementUnit: "g"},
	})
	if err != nil || n != 2 {
		t.Fatalf("ImportIngredients() = %d, %v; want 2, nil", n, err)
	}

	n, err = db.ImportIngredients(ctx, []model.Ingredient{
		{Name: "salt", MeasurementUnit: "kg"},
		{Name: "pepper", MeasurementUnit: "g"},
	})
	if err != nil || n != 1 {
		t.Fatalf("ImportIngredients() second run = %d, %v; want 1, nil", n, err)
	}
}

func TestGetIngredientByID(t *testing.T) {
	db := newTestDB(t)
	ings := seedIngredients(t, db, [2]string{"butter", "g"})

	got, err := db.GetIngredientByID(context.Background(), ings["butter"].ID)
	if err != nil {
		t.Fatalf("GetIngredientByID() error = %v", err)
	}
	if got.MeasurementUnit != "g" {
		t.Errorf("MeasurementUnit = %q, want g", got.MeasurementUnit)
	}

	_, err = db.GetIngredientByID(context.Background(), 9999)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetIngredientByID(missing) error = %v, want ErrNotFound", err)
	}
}

func TestMissingIngredientIDs(t *testing.T) {
	db := newTestDB(t)
	ings := seedIngredients(t, db, [2]string{"a", "g"}, [2]string{"b", "g"})

	missing, err := db.MissingIngredientIDs(context.Background(), []int64{ings["a"].ID, 777, ings["b"].ID, 555})
	if err != nil {
		t.Fatalf("MissingIngredientIDs() error = %v", err)
	}
	if len(missing) != 2 || missing[0] != 777 || missing[1] != 555 {
		t.Errorf("missing = %v, want [777 555]", missing)
	}
}

// =========================================================================
// RECIPE TESTS
// =========================================================================

func TestCreateRecipe_StoresIngredients(t *testing.T) {
	db := newTestDB(t)
	author := createTestUser(t, db, "chef")
	ings := seedIngredients(t, db, [2]string{"flour", "g"}, [2]string{"egg", "pcs"})

	recipe := createTestRecipe(t, db, author, "Pancakes",
		model.RecipeIngredient{IngredientID: ings["flour"].ID, Amount: 200},
		model.RecipeIngredient{IngredientID: ings["egg"].ID, Amount: 2},
	)
	if recipe.ID == 0 {
		t.Fatal("CreateRecipe() did not set ID")
	}

	items, err := db.RecipeIngredients(context.Background(), recipe.ID)
	if err != nil {
		t.Fatalf("RecipeIngredients() error = %v", err)
	}
	want := []model.IngredientAmount{
		{ID: ings["flour"].ID, Name: "flour", MeasurementUnit: "g", Amount: 200},
		{ID: ings["egg"].ID, Name: "egg", MeasurementUnit: "pcs", Amount: 2},
	}
	if len(items) != len(want) {
		t.Fatalf("len = %d, want %d", len(items), len(want))
	}
	for i := range want {
		if items[i] != want[i] {
			t.Errorf("[%d] = %+v, want %+v", i, items[i], want[i])
		}
	}
}

func TestCreateRecipe_RollsBackOnBadEdge(t *testing.T) {
	db := newTestDB(t)
	author := createTestUser(t, db, "chef")
	ctx := context.Background()

	recipe := &model.Recipe{AuthorID: author.ID, Name: "Broken", Text: "t", CookingTime: 5}
	// 12345 does not exist, so the foreign key fails after the recipe row
	// was written.
	err := db.CreateRecipe(ctx, recipe, []model.RecipeIngredient{{IngredientID: 12345, Amount: 1}})
	if err == nil {
		t.Fatal("CreateRecipe() error = nil, want foreign key failure")
	}

	_, total, err := db.ListRecipes(ctx, repository.RecipeFilter{})
	if err != nil {
		t.Fatalf("ListRecipes() error = %v", err)
	}
	if total != 0 {
		t.Errorf("total = %d, want 0 after rollback", total)
	}
}

func TestUpdateRecipe_ReplacesIngredientSet(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	author := createTestUser(t, db, "chef")
	ings := seedIngredients(t, db, [2]string{"flour", "g"}, [2]string{"egg", "pcs"}, [2]string{"milk", "ml"})

	recipe := createTestRecipe(t, db, author, "Pancakes",
		model.RecipeIngredient{IngredientID: ings["flour"].ID, Amount: 200},
		model.RecipeIngredient{IngredientID: ings["egg"].ID, Amount: 2},
	)

	recipe.Name = "Crepes"
	recipe.CookingTime = 25
	err := db.UpdateRecipe(ctx, recipe, []model.RecipeIngredient{
		{IngredientID: ings["milk"].ID, Amount: 300},
	})
	if err != nil {
		t.Fatalf("UpdateRecipe() error = %v", err)
	}

	got, _ := db.GetRecipeByID(ctx, recipe.ID)
	if got.Name != "Crepes" || got.CookingTime != 25 || got.AuthorID != author.ID {
		t.Errorf("GetRecipeByID() = %+v", got)
	}

	items, _ := db.RecipeIngredients(ctx, recipe.ID)
	if len(items) != 1 || items[0].Name != "milk" || items[0].Amount != 300 {
		t.Errorf("ingredients = %+v, want only milk x300", items)
	}
}

func TestUpdateRecipe_NotFound(t *testing.T) {
	db := newTestDB(t)
	err := db.UpdateRecipe(context.Background(), &model.Recipe{ID: 99, Name: "x", Text: "y", CookingTime: 1}, nil)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateRecipe() error = %v, want ErrNotFound", err)
	}
}

func TestDeleteRecipe_CascadesEdges(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	author := createTestUser(t, db, "chef")
	fan := createTestUser(t, db, "fan")
	ings := seedIngredients(t, db, [2]string{"flour", "g"})
	recipe := createTestRecipe(t, db, author, "Bread",
		model.RecipeIngredient{IngredientID: ings["flour"].ID, Amount: 500})

	for _, kind := range []model.RelationKind{model.RelationFavorite, model.RelationCart} {
		if _, err := db.InsertRelation(ctx, model.RecipeRelation{UserID: fan.ID, RecipeID: recipe.ID, Kind: kind}); err != nil {
			t.Fatalf("InsertRelation(%s) error = %v", kind, err)
		}
	}

	if err := db.DeleteRecipe(ctx, recipe.ID); err != nil {
		t.Fatalf("DeleteRecipe() error = %v", err)
	}

	n, _ := db.CountCartEntries(ctx, fan.ID)
	if n != 0 {
		t.Errorf("cart entries = %d, want 0 after cascade", n)
	}
	fav, _ := db.HasRelation(ctx, model.RecipeRelation{UserID: fan.ID, RecipeID: recipe.ID, Kind: model.RelationFavorite})
	if fav {
		t.Error("favorite survived recipe deletion")
	}
	items, _ := db.RecipeIngredients(ctx, recipe.ID)
	if len(items) != 0 {
		t.Errorf("ingredient edges = %d, want 0", len(items))
	}

	if err := db.DeleteRecipe(ctx, recipe.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second DeleteRecipe() error = %v, want ErrNotFound", err)
	}
}

func TestListRecipes_Filters(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	a1 := createTestRecipe(t, db, alice, "a1")
	a2 := createTestRecipe(t, db, alice, "a2")
	b1 := createTestRecipe(t, db, bob, "b1")

	mustRelate(t, db, bob.ID, a1.ID, model.RelationFavorite)
	mustRelate(t, db, bob.ID, b1.ID, model.RelationCart)

	tests := []struct {
		name      string
		filter    repository.RecipeFilter
		wantIDs   []int64
		wantTotal int
	}{
		{
			name:      "all newest first",
			filter:    repository.RecipeFilter{},
			wantIDs:   []int64{b1.ID, a2.ID, a1.ID},
			wantTotal: 3,
		},
		{
			name:      "by author",
			filter:    repository.RecipeFilter{AuthorID: alice.ID},
			wantIDs:   []int64{a2.ID, a1.ID},
			wantTotal: 2,
		},
		{
			name:      "favorited by viewer",
			filter:    repository.RecipeFilter{ViewerID: bob.ID, FavoritedOnly: true},
			wantIDs:   []int64{a1.ID},
			wantTotal: 1,
		},
		{
			name:      "in viewer cart",
			filter:    repository.RecipeFilter{ViewerID: bob.ID, InCartOnly: true},
			wantIDs:   []int64{b1.ID},
			wantTotal: 1,
		},
		{
			name:      "favorited and in cart",
			filter:    repository.RecipeFilter{ViewerID: bob.ID, FavoritedOnly: true, InCartOnly: true},
			wantIDs:   nil,
			wantTotal: 0,
		},
		{
			name:      "flags ignored without viewer",
			filter:    repository.RecipeFilter{FavoritedOnly: true},
			wantIDs:   []int64{b1.ID, a2.ID, a1.ID},
			wantTotal: 3,
		},
		{
			name:      "paged",
			filter:    repository.RecipeFilter{ListOptions: repository.ListOptions{Limit: 1, Offset: 1}},
			wantIDs:   []int64{a2.ID},
			wantTotal: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, total, err := db.ListRecipes(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListRecipes() error = %v", err)
			}
			if total != tt.wantTotal {
				t.Errorf("total = %d, want %d", total, tt.wantTotal)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if got[i].ID != id {
					t.Errorf("[%d].ID = %d, want %d", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestShortRecipesByAuthor(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	author := createTestUser(t, db, "prolific")
	for _, name := range []string{"r1", "r2", "r3", "r4"} {
		createTestRecipe(t, db, author, name)
	}

	got, total, err := db.ShortRecipesByAuthor(ctx, author.ID, 2)
	if err != nil {
		t.Fatalf("ShortRecipesByAuthor() error = %v", err)
	}
	if total != 4 {
		t.Errorf("total = %d, want 4", total)
	}
	if len(got) != 2 || got[0].Name != "r4" || got[1].Name != "r3" {
		t.Errorf("recipes = %+v, want r4, r3", got)
	}

	all, _, _ := db.ShortRecipesByAuthor(ctx, author.ID, -1)
	if len(all) != 4 {
		t.Errorf("unlimited len = %d, want 4", len(all))
	}
}

func TestDeleteUser_CascadesRecipes(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	author := createTestUser(t, db, "leaving")
	recipe := createTestRecipe(t, db, author, "gone soon")

	if _, err := db.conn.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, author.ID); err != nil {
		t.Fatalf("deleting user: %v", err)
	}

	_, err := db.GetRecipeByID(ctx, recipe.ID)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetRecipeByID() error = %v, want ErrNotFound after cascade", err)
	}
}

func mustRelate(t *testing.T, db *DB, userID, recipeID int64, kind model.RelationKind) {
	t.Helper()
	created, err := db.InsertRelation(context.Background(), model.RecipeRelation{UserID: userID, RecipeID: recipeID, Kind: kind})
	if err != nil || !created {
		t.Fatalf("InsertRelation() = %v, %v", created, err)
	}
}
