package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/service"
	"github.com/sakif/foodgram/internal/shoppinglist"
)

// RecipeHandler serves recipes, their favorite and shopping cart toggles,
// short links and the shopping list download.
//
// HANDLER RESPONSIBILITIES:
//   - decode the JSON body into service.RecipeInput
//   - read the viewer from the context (0 when anonymous)
//   - call RecipeService, map the result to a status code
//
// Ownership, validation and relation rules all live in the service.
type RecipeHandler struct {
	recipes *service.RecipeService
	pager   Paginator
	baseURL string
	logger  *slog.Logger
}

func NewRecipeHandler(recipes *service.RecipeService, pager Paginator, baseURL string, logger *slog.Logger) *RecipeHandler {
	return &RecipeHandler{
		recipes: recipes,
		pager:   pager,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

// HandleList returns one page of recipes, newest first.
//
// HTTP: GET /api/recipes/?page=&limit=&author=&is_favorited=&is_in_shopping_cart=
//
// The favorited and cart filters are ignored for anonymous callers.
func (h *RecipeHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	req, err := h.pager.parse(r)
	if err != nil {
		writeError(w, err)
		return
	}

	q := r.URL.Query()
	query := service.RecipeQuery{
		ViewerID:      viewerID(r),
		FavoritedOnly: queryBool(q.Get("is_favorited")),
		InCartOnly:    queryBool(q.Get("is_in_shopping_cart")),
		Limit:         req.limit,
		Offset:        req.offset(),
	}
	if raw := q.Get("author"); raw != "" {
		author, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || author < 1 {
			writeError(w, apperror.ValidationFailed("author", "Select a valid choice. That choice is not one of the available choices."))
			return
		}
		query.AuthorID = author
	}

	page, err := h.recipes.List(r.Context(), query)
	if err != nil {
		writeError(w, err)
		return
	}

	resp, err := buildPage(h.pager, r, req, page.Items, page.Count)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleCreate creates a recipe authored by the caller.
//
// HTTP: POST /api/recipes/
// Auth: Required
// Body: {"ingredients":[{"id":1,"amount":10}],"image":"data:image/png;base64,...",
//
//	"name":"...","text":"...","cooking_time":5}
func (h *RecipeHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var in service.RecipeInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	view, err := h.recipes.Create(r.Context(), userID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// HTTP: GET /api/recipes/{id}/
func (h *RecipeHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	view, err := h.recipes.Get(r.Context(), viewerID(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleUpdate replaces a recipe's fields and its whole ingredient list.
// PATCH and PUT behave the same: ingredients are always required, the
// image is optional and kept when omitted.
//
// HTTP: PATCH|PUT /api/recipes/{id}/
// Auth: Required (author only)
func (h *RecipeHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var in service.RecipeInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	view, err := h.recipes.Update(r.Context(), userID, id, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HTTP: DELETE /api/recipes/{id}/
// Auth: Required (author only)
func (h *RecipeHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.recipes.Delete(r.Context(), userID, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// relationAdd and relationRemove adapt the service toggles to toggle.
type relationAdd func(r *http.Request, userID, recipeID int64) (model.ShortRecipe, error)
type relationRemove func(r *http.Request, userID, recipeID int64) error

// toggle serves POST (add, 201 with the short recipe) and DELETE
// (remove, 204) for one relation kind.
func (h *RecipeHandler) toggle(add relationAdd, remove relationRemove) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUser(r)
		if err != nil {
			writeError(w, err)
			return
		}
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, err)
			return
		}

		if r.Method == http.MethodDelete {
			if err := remove(r, userID, id); err != nil {
				writeError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}

		short, err := add(r, userID, id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, short)
	}
}

// HandleFavorite adds or removes a recipe from the caller's favorites.
//
// HTTP: POST|DELETE /api/recipes/{id}/favorite/
func (h *RecipeHandler) HandleFavorite() http.HandlerFunc {
	return h.toggle(
		func(r *http.Request, userID, recipeID int64) (model.ShortRecipe, error) {
			return h.recipes.AddFavorite(r.Context(), userID, recipeID)
		},
		func(r *http.Request, userID, recipeID int64) error {
			return h.recipes.RemoveFavorite(r.Context(), userID, recipeID)
		},
	)
}

// HandleShoppingCart adds or removes a recipe from the caller's cart.
//
// HTTP: POST|DELETE /api/recipes/{id}/shopping_cart/
func (h *RecipeHandler) HandleShoppingCart() http.HandlerFunc {
	return h.toggle(
		func(r *http.Request, userID, recipeID int64) (model.ShortRecipe, error) {
			return h.recipes.AddToCart(r.Context(), userID, recipeID)
		},
		func(r *http.Request, userID, recipeID int64) error {
			return h.recipes.RemoveFromCart(r.Context(), userID, recipeID)
		},
	)
}

// HandleGetLink returns the absolute short link of a recipe.
//
// HTTP: GET /api/recipes/{id}/get-link/
func (h *RecipeHandler) HandleGetLink(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	path, err := h.recipes.ShortLink(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"short-link": h.baseURL + path})
}

// HandleDownloadShoppingCart renders the caller's aggregated shopping list
// as a PDF attachment, or as plain text with ?format=txt.
//
// HTTP: GET /api/recipes/download_shopping_cart/
// Auth: Required
func (h *RecipeHandler) HandleDownloadShoppingCart(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	lines, err := h.recipes.ShoppingList(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	var (
		body        []byte
		contentType = "application/pdf"
		filename    = "shopping_cart.pdf"
	)
	if r.URL.Query().Get("format") == "txt" {
		body = shoppinglist.RenderText(lines)
		contentType, filename = "text/plain; charset=utf-8", "shopping_cart.txt"
	} else {
		body, err = shoppinglist.Render(lines)
		if err != nil {
			h.logger.Error("failed to render shopping list",
				slog.Int64("userID", userID),
				slog.String("error", err.Error()),
			)
			writeError(w, err)
			return
		}
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// HandleShortLink redirects a short link to the recipe page of the
// frontend. The recipe is not looked up; a stale link lands on the
// frontend's own not-found page.
//
// HTTP: GET /s/{id}/
func (h *RecipeHandler) HandleShortLink(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/recipes/"+chi.URLParam(r, "id")+"/", http.StatusFound)
}

// queryBool accepts the truthy spellings clients send for filter flags.
func queryBool(raw string) bool {
	switch strings.ToLower(raw) {
	case "1", "true":
		return true
	}
	return false
}
