package handler_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/foodgram/internal/auth"
	"github.com/sakif/foodgram/internal/handler"
	"github.com/sakif/foodgram/internal/media"
	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository/sqlite"
	"github.com/sakif/foodgram/internal/service"
)

const testBaseURL = "http://testserver"

// testEnv wires the real services over an in-memory database, the same
// way cmd/server does, and mounts the handlers on a chi router.
type testEnv struct {
	db     *sqlite.DB
	tokens *auth.TokenService
	users  *service.UserService
	github *fakeGitHub
	router chi.Router
}

type fakeGitHub struct {
	user *auth.GitHubUser
	err  error
}

func (f *fakeGitHub) AuthURL(state string) string {
	return "https://github.com/login/oauth/authorize?state=" + state
}

func (f *fakeGitHub) Exchange(_ context.Context, _ string) (*auth.GitHubUser, error) {
	return f.user, f.err
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithPager(t, handler.Paginator{BaseURL: testBaseURL, PageSize: 6, MaxPageSize: 100})
}

func newTestEnvWithPager(t *testing.T, pager handler.Paginator) *testEnv {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := media.NewLocalStore(t.TempDir(), "/media/")
	require.NoError(t, err)
	uploader := media.NewUploader(store)

	tokens, err := auth.NewTokenService("handler-test-secret-0123456789", time.Hour)
	require.NoError(t, err)
	passwords := auth.NewPasswordServiceForTest(bcrypt.MinCost)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	stores := service.Stores{
		Users:         db,
		Ingredients:   db,
		Recipes:       db,
		Relations:     db,
		Subscriptions: db,
		Cart:          db,
	}

	users := service.NewUserService(stores, passwords, uploader, logger)
	recipes := handler.NewRecipeHandler(service.NewRecipeService(stores, uploader, logger), pager, testBaseURL, logger)
	userH := handler.NewUserHandler(users, pager, 3, logger)
	ingredients := handler.NewIngredientHandler(service.NewIngredientService(stores, logger))
	gh := &fakeGitHub{}
	authH := handler.NewAuthHandler(service.NewAuthService(stores, tokens, passwords, logger), gh, time.Hour, logger)

	r := chi.NewRouter()
	r.Use(auth.OptionalAuth(tokens))

	r.Get("/api/ingredients/", ingredients.HandleList)
	r.Get("/api/ingredients/{id:[0-9]+}/", ingredients.HandleGet)

	r.Get("/api/recipes/", recipes.HandleList)
	r.Post("/api/recipes/", recipes.HandleCreate)
	r.Get("/api/recipes/download_shopping_cart/", recipes.HandleDownloadShoppingCart)
	r.Get("/api/recipes/{id:[0-9]+}/", recipes.HandleGet)
	r.Patch("/api/recipes/{id:[0-9]+}/", recipes.HandleUpdate)
	r.Put("/api/recipes/{id:[0-9]+}/", recipes.HandleUpdate)
	r.Delete("/api/recipes/{id:[0-9]+}/", recipes.HandleDelete)
	r.Method(http.MethodPost, "/api/recipes/{id:[0-9]+}/favorite/", recipes.HandleFavorite())
	r.Method(http.MethodDelete, "/api/recipes/{id:[0-9]+}/favorite/", recipes.HandleFavorite())
	r.Method(http.MethodPost, "/api/recipes/{id:[0-9]+}/shopping_cart/", recipes.HandleShoppingCart())
	r.Method(http.MethodDelete, "/api/recipes/{id:[0-9]+}/shopping_cart/", recipes.HandleShoppingCart())
	r.Get("/api/recipes/{id:[0-9]+}/get-link/", recipes.HandleGetLink)
	r.Get("/s/{id:[0-9]+}/", recipes.HandleShortLink)

	r.Get("/api/users/", userH.HandleList)
	r.Post("/api/users/", userH.HandleRegister)
	r.Get("/api/users/me/", userH.HandleMe)
	r.Post("/api/users/set_password/", userH.HandleSetPassword)
	r.Put("/api/users/me/avatar/", userH.HandleSetAvatar)
	r.Delete("/api/users/me/avatar/", userH.HandleDeleteAvatar)
	r.Get("/api/users/subscriptions/", userH.HandleMySubscriptions)
	r.Get("/api/users/{id:[0-9]+}/", userH.HandleGet)
	r.Get("/api/users/{id:[0-9]+}/subscriptions/", userH.HandleUserSubscriptions)
	r.Post("/api/users/{id:[0-9]+}/subscribe/", userH.HandleSubscribe)
	r.Delete("/api/users/{id:[0-9]+}/subscribe/", userH.HandleSubscribe)

	r.Post("/api/auth/token/login/", authH.HandleTokenLogin)
	r.Post("/api/auth/token/logout/", authH.HandleTokenLogout)
	r.Get("/auth/github/login", authH.HandleGitHubLogin)
	r.Get("/auth/github/callback", authH.HandleGitHubCallback)

	return &testEnv{db: db, tokens: tokens, users: users, github: gh, router: r}
}

// do sends a request through the router. token may be empty for anonymous
// requests; body is JSON-encoded unless it is already an io.Reader.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case io.Reader:
		reader = b
	case string:
		reader = bytes.NewBufferString(b)
	default:
		buf, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// register creates an account through the service and returns its id and
// a token for it.
func (e *testEnv) register(t *testing.T, username string) (int64, string) {
	t.Helper()
	user, err := e.users.Register(context.Background(), service.RegisterInput{
		Email:     username + "@example.com",
		Username:  username,
		FirstName: "First",
		LastName:  "Last",
		Password:  "correct-horse-battery",
	})
	require.NoError(t, err)

	token, err := e.tokens.Generate(user.ID)
	require.NoError(t, err)
	return user.ID, token
}

// seedIngredients returns the catalogue ids keyed by name.
func (e *testEnv) seedIngredients(t *testing.T) map[string]int64 {
	t.Helper()
	ctx := context.Background()
	_, err := e.db.ImportIngredients(ctx, []model.Ingredient{
		{Name: "Flour", MeasurementUnit: "g"},
		{Name: "Egg", MeasurementUnit: "pcs"},
		{Name: "Milk", MeasurementUnit: "ml"},
	})
	require.NoError(t, err)

	all, err := e.db.SearchIngredients(ctx, "")
	require.NoError(t, err)
	ids := make(map[string]int64, len(all))
	for _, ing := range all {
		ids[ing.Name] = ing.ID
	}
	return ids
}

func pngDataURI(t *testing.T) string {
	t.Helper()
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes(t))
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(1, 1, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}
