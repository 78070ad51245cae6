package model

import "time"

// Ingredient is a catalogue entry. Names are unique.
type Ingredient struct {
	ID              int64  `json:"id"               db:"id"`
	Name            string `json:"name"             db:"name"`
	MeasurementUnit string `json:"measurement_unit" db:"measurement_unit"`
}

// Recipe is the stored recipe row. AuthorID never changes after creation.
type Recipe struct {
	ID          int64     `db:"id"`
	AuthorID    int64     `db:"author_id"`
	Name        string    `db:"name"`
	Text        string    `db:"text"`
	Image       string    `db:"image"`
	CookingTime int       `db:"cooking_time"`
	CreatedAt   time.Time `db:"created_at"`
}

// RecipeIngredient is the edge between a recipe and an ingredient,
// carrying the amount. At most one edge exists per (recipe, ingredient).
type RecipeIngredient struct {
	RecipeID     int64 `db:"recipe_id"`
	IngredientID int64 `db:"ingredient_id"`
	Amount       int   `db:"amount"`
}

// IngredientAmount is an ingredient as it appears inside a recipe view.
type IngredientAmount struct {
	ID              int64  `json:"id"               db:"id"`
	Name            string `json:"name"             db:"name"`
	MeasurementUnit string `json:"measurement_unit" db:"measurement_unit"`
	Amount          int    `json:"amount"           db:"amount"`
}

// RecipeView is the full recipe representation.
type RecipeView struct {
	ID               int64              `json:"id"`
	Author           UserView           `json:"author"`
	Ingredients      []IngredientAmount `json:"ingredients"`
	IsFavorited      bool               `json:"is_favorited"`
	IsInShoppingCart bool               `json:"is_in_shopping_cart"`
	Name             string             `json:"name"`
	Image            string             `json:"image"`
	Text             string             `json:"text"`
	CookingTime      int                `json:"cooking_time"`
}

// ShortRecipe is the compact view returned by the favorite and shopping
// cart toggles and embedded in subscription listings.
type ShortRecipe struct {
	ID          int64  `json:"id"           db:"id"`
	Name        string `json:"name"         db:"name"`
	Image       string `json:"image"        db:"image"`
	CookingTime int    `json:"cooking_time" db:"cooking_time"`
}

// NewShortRecipe trims a recipe to its short view.
func NewShortRecipe(r *Recipe) ShortRecipe {
	return ShortRecipe{
		ID:          r.ID,
		Name:        r.Name,
		Image:       r.Image,
		CookingTime: r.CookingTime,
	}
}

// RelationKind distinguishes the user-to-recipe edges stored in one table.
type RelationKind string

const (
	RelationFavorite RelationKind = "favorite"
	RelationCart     RelationKind = "cart"
)

// RecipeRelation identifies a single user-to-recipe edge.
type RecipeRelation struct {
	UserID   int64
	RecipeID int64
	Kind     RelationKind
}

// Subscription identifies a subscriber-to-author edge.
type Subscription struct {
	SubscriberID int64
	AuthorID     int64
}

// CartLine is one aggregated row of a shopping list: an ingredient and the
// total amount needed across every recipe in the cart.
type CartLine struct {
	Name            string `db:"name"`
	MeasurementUnit string `db:"measurement_unit"`
	Total           int    `db:"total"`
}
