package handler

import (
	"net/http"

	"github.com/sakif/foodgram/internal/service"
)

// IngredientHandler serves the read-only ingredient catalogue.
type IngredientHandler struct {
	ingredients *service.IngredientService
}

func NewIngredientHandler(ingredients *service.IngredientService) *IngredientHandler {
	return &IngredientHandler{ingredients: ingredients}
}

// HandleList searches ingredients by name prefix. The catalogue is meant
// for autocomplete, so the result is a plain array, not a page.
//
// HTTP: GET /api/ingredients/?name=<prefix>
func (h *IngredientHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	items, err := h.ingredients.Search(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// HTTP: GET /api/ingredients/{id}/
func (h *IngredientHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	item, err := h.ingredients.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}
