package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/media"
	"github.com/sakif/foodgram/internal/service"
)

// UserHandler serves registration, profiles, avatars and subscriptions.
type UserHandler struct {
	users        *service.UserService
	pager        Paginator
	recipesLimit int // default for ?recipes_limit=
	logger       *slog.Logger
}

func NewUserHandler(users *service.UserService, pager Paginator, recipesLimit int, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		users:        users,
		pager:        pager,
		recipesLimit: recipesLimit,
		logger:       logger,
	}
}

// registeredUser is the body returned by registration. It carries no
// is_subscribed or avatar; a new account has neither.
type registeredUser struct {
	Email     string `json:"email"`
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// HTTP: GET /api/users/?page=&limit=
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	req, err := h.pager.parse(r)
	if err != nil {
		writeError(w, err)
		return
	}

	page, err := h.users.List(r.Context(), viewerID(r), req.limit, req.offset())
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

// HandleRegister creates an account.
//
// HTTP: POST /api/users/
// Body: {"email","username","first_name","last_name","password"}
func (h *UserHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.Register(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, registeredUser{
		Email:     user.Email,
		ID:        user.ID,
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	})
}

// HTTP: GET /api/users/{id}/
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	view, err := h.users.Get(r.Context(), viewerID(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleMe returns the caller's own profile.
//
// HTTP: GET /api/users/me/
// Auth: Required
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	view, err := h.users.Get(r.Context(), userID, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HTTP: POST /api/users/set_password/
// Auth: Required
// Body: {"new_password","current_password"}
func (h *UserHandler) HandleSetPassword(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var in service.SetPasswordInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	if err := h.users.SetPassword(r.Context(), userID, in); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSetAvatar replaces the caller's avatar.
//
// HTTP: PUT /api/users/me/avatar/
// Auth: Required
// Body: {"avatar":"data:image/png;base64,..."} or multipart/form-data with
// an "avatar" file field.
func (h *UserHandler) HandleSetAvatar(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var url string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		url, err = h.avatarFromForm(w, r, userID)
	} else {
		var body struct {
			Avatar string `json:"avatar"`
		}
		if err = decodeJSON(w, r, &body); err == nil {
			url, err = h.users.SetAvatarDataURI(r.Context(), userID, body.Avatar)
		}
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"avatar": url})
}

func (h *UserHandler) avatarFromForm(w http.ResponseWriter, r *http.Request, userID int64) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, media.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(media.MaxUploadBytes); err != nil {
		return "", apperror.ValidationFailed("avatar", "Upload a valid image. "+err.Error())
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("avatar")
	if err != nil {
		return "", apperror.ValidationFailed("avatar", "This field is required.")
	}
	defer file.Close()

	return h.users.SetAvatarFile(r.Context(), userID, file)
}

// HTTP: DELETE /api/users/me/avatar/
// Auth: Required
func (h *UserHandler) HandleDeleteAvatar(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.users.DeleteAvatar(r.Context(), userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleMySubscriptions lists the authors the caller follows.
//
// HTTP: GET /api/users/subscriptions/?page=&limit=&recipes_limit=
// Auth: Required
func (h *UserHandler) HandleMySubscriptions(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}
	h.subscriptions(w, r, userID, userID)
}

// HandleUserSubscriptions lists the authors another user follows, as seen
// by the caller.
//
// HTTP: GET /api/users/{id}/subscriptions/
// Auth: Required
func (h *UserHandler) HandleUserSubscriptions(w http.ResponseWriter, r *http.Request) {
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
	h.subscriptions(w, r, userID, id)
}

func (h *UserHandler) subscriptions(w http.ResponseWriter, r *http.Request, viewer, subscriber int64) {
	req, err := h.pager.parse(r)
	if err != nil {
		writeError(w, err)
		return
	}

	page, err := h.users.Subscriptions(r.Context(), viewer, subscriber,
		h.parseRecipesLimit(r), req.limit, req.offset())
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

// HandleSubscribe follows (POST, 201) or unfollows (DELETE, 204) an author.
//
// HTTP: POST|DELETE /api/users/{id}/subscribe/?recipes_limit=
// Auth: Required
func (h *UserHandler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}
	authorID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	if r.Method == http.MethodDelete {
		if err := h.users.Unsubscribe(r.Context(), userID, authorID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	view, err := h.users.Subscribe(r.Context(), userID, authorID, h.parseRecipesLimit(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// parseRecipesLimit reads ?recipes_limit=. Anything that is not a
// non-negative integer falls back to the configured default.
func (h *UserHandler) parseRecipesLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("recipes_limit"))
	if err != nil || n < 0 {
		return h.recipesLimit
	}
	return n
}
