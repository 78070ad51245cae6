package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/auth"
	"github.com/sakif/foodgram/internal/model"
)

const msgBadCredentials = "Unable to log in with provided credentials."

// AuthService issues and revokes API tokens.
//
//	AuthHandler (HTTP) → AuthService → UserRepository (DB)
//	                               ↘ TokenService (JWT), PasswordService (bcrypt)
//
// Two ways in: email + password (token login) and GitHub OAuth. Both end
// with a JWT carrying the local user id.
type AuthService struct {
	stores    Stores
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewAuthService(stores Stores, tokens *auth.TokenService, passwords *auth.PasswordService, logger *slog.Logger) *AuthService {
	return &AuthService{
		stores:    stores,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the user and the issued token so the handler can
// respond (or set the cookie) in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// Login checks email and password and issues a token. Unknown emails and
// wrong passwords produce the same error.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	if err := ValidateStruct(in); err != nil {
		return nil, err
	}

	user, err := s.stores.Users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(in.Email)))
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.Unauthorized(msgBadCredentials)
	}
	if err != nil {
		return nil, fmt.Errorf("service/auth: looking up user: %w", err)
	}

	switch err := s.passwords.Verify(user.PasswordHash, in.Password); {
	case errors.Is(err, auth.ErrInvalidPassword):
		s.logger.Warn("failed login", slog.Int64("userID", user.ID))
		return nil, apperror.Unauthorized(msgBadCredentials)
	case err != nil:
		return nil, fmt.Errorf("service/auth: verifying password: %w", err)
	}

	return s.issue(user)
}

// Logout revokes the token the request was authenticated with.
func (s *AuthService) Logout(_ context.Context, token string) error {
	if err := s.tokens.Revoke(token); err != nil {
		return apperror.Unauthorized("Invalid token.")
	}
	return nil
}

// LoginOrRegisterGitHub handles the OAuth callback once the handler has
// exchanged the code for a profile. The account is found by github_id,
// then by email; otherwise a password-less account is created using the
// GitHub login as username ("<login>-<github id>" if the login is taken).
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, gh *auth.GitHubUser) (*AuthResult, error) {
	if gh == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	first, last, _ := strings.Cut(strings.TrimSpace(gh.Name), " ")
	githubID := gh.ID
	candidates := []string{gh.Login, gh.Login + "-" + strconv.FormatInt(gh.ID, 10)}

	var user *model.User
	for _, username := range candidates {
		user = &model.User{
			Email:     strings.ToLower(gh.Email),
			Username:  username,
			FirstName: first,
			LastName:  strings.TrimSpace(last),
			GitHubID:  &githubID,
		}
		err := s.stores.Users.UpsertGitHubUser(ctx, user)
		if err == nil {
			break
		}
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.Field == "username" {
			user = nil
			continue
		}
		return nil, fmt.Errorf("service/auth: upserting user (githubID=%d): %w", gh.ID, err)
	}
	if user == nil {
		return nil, apperror.Rejected("A user with that username already exists.")
	}

	s.logger.Info("user authenticated via GitHub",
		slog.Int64("userID", user.ID),
		slog.String("login", gh.Login),
	)
	return s.issue(user)
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %d: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}
