package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/auth"
	"github.com/sakif/foodgram/internal/media"
	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository"
)

const (
	msgSelfSubscribe = "Cannot subscribe to yourself."
	msgSubExists     = "You are already subscribed to this user."
	msgSubMissing    = "You are not subscribed to this user."
	msgWrongPassword = "Invalid password."
)

// UserService covers registration, profiles, avatars and subscriptions.
type UserService struct {
	stores    Stores
	passwords *auth.PasswordService
	images    *media.Uploader
	logger    *slog.Logger
}

func NewUserService(stores Stores, passwords *auth.PasswordService, images *media.Uploader, logger *slog.Logger) *UserService {
	return &UserService{
		stores:    stores,
		passwords: passwords,
		images:    images,
		logger:    logger,
	}
}

// Register creates a password account. Email addresses are stored
// lower-cased so login is case-insensitive.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.TrimSpace(in.Username)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	if err := ValidateStruct(in); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(in.Password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return nil, apperror.ValidationFailed("password", "Ensure this field has no more than 72 bytes.")
	}
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &model.User{
		Email:        in.Email,
		Username:     in.Username,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: hash,
	}
	if err := s.stores.Users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrValidation) {
			return nil, err
		}
		s.logger.Error("failed to register user",
			slog.String("username", in.Username),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.logger.Info("user registered",
		slog.Int64("id", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// Get returns a user as seen by viewerID (0 for anonymous).
func (s *UserService) Get(ctx context.Context, viewerID, id int64) (model.UserView, error) {
	user, err := s.stores.Users.GetUserByID(ctx, id)
	if err != nil {
		return model.UserView{}, err
	}
	return s.stores.userView(ctx, viewerID, user)
}

func (s *UserService) List(ctx context.Context, viewerID int64, limit, offset int) (Page[model.UserView], error) {
	users, count, err := s.stores.Users.ListUsers(ctx, repository.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		s.logger.Error("failed to list users", slog.String("error", err.Error()))
		return Page[model.UserView]{}, fmt.Errorf("listing users: %w", err)
	}

	views := make([]model.UserView, 0, len(users))
	for i := range users {
		v, err := s.stores.userView(ctx, viewerID, &users[i])
		if err != nil {
			return Page[model.UserView]{}, err
		}
		views = append(views, v)
	}
	return Page[model.UserView]{Items: views, Count: count}, nil
}

// SetPassword changes the password after checking the current one.
func (s *UserService) SetPassword(ctx context.Context, userID int64, in SetPasswordInput) error {
	if err := ValidateStruct(in); err != nil {
		return err
	}
	user, err := s.stores.Users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.passwords.Verify(user.PasswordHash, in.CurrentPassword); err != nil {
		return apperror.ValidationFailed("current_password", msgWrongPassword)
	}

	hash, err := s.passwords.Hash(in.NewPassword)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return apperror.ValidationFailed("new_password", "Ensure this field has no more than 72 bytes.")
	}
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	if err := s.stores.Users.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("updating password of user %d: %w", userID, err)
	}

	s.logger.Info("password changed", slog.Int64("userID", userID))
	return nil
}

// SetAvatarDataURI stores a base64 data URI as the user's avatar and
// returns its URL.
func (s *UserService) SetAvatarDataURI(ctx context.Context, userID int64, dataURI string) (string, error) {
	if strings.TrimSpace(dataURI) == "" {
		return "", apperror.ValidationFailed("avatar", msgRequired)
	}
	url, err := s.images.SaveDataURI(ctx, media.AvatarFolder, dataURI)
	return s.replaceAvatar(ctx, userID, url, err)
}

// SetAvatarFile is SetAvatarDataURI for multipart uploads.
func (s *UserService) SetAvatarFile(ctx context.Context, userID int64, r io.Reader) (string, error) {
	url, err := s.images.Save(ctx, media.AvatarFolder, r)
	return s.replaceAvatar(ctx, userID, url, err)
}

func (s *UserService) DeleteAvatar(ctx context.Context, userID int64) error {
	user, err := s.stores.Users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.stores.Users.SetAvatar(ctx, userID, nil); err != nil {
		return fmt.Errorf("clearing avatar of user %d: %w", userID, err)
	}
	if user.Avatar != nil {
		s.discardImage(ctx, *user.Avatar)
	}
	return nil
}

func (s *UserService) replaceAvatar(ctx context.Context, userID int64, url string, saveErr error) (string, error) {
	if errors.Is(saveErr, media.ErrInvalidImage) {
		return "", apperror.ValidationFailed("avatar", msgBadImage)
	}
	if saveErr != nil {
		return "", fmt.Errorf("saving avatar: %w", saveErr)
	}

	user, err := s.stores.Users.GetUserByID(ctx, userID)
	if err != nil {
		s.discardImage(ctx, url)
		return "", err
	}
	if err := s.stores.Users.SetAvatar(ctx, userID, &url); err != nil {
		s.discardImage(ctx, url)
		return "", fmt.Errorf("setting avatar of user %d: %w", userID, err)
	}
	if user.Avatar != nil {
		s.discardImage(ctx, *user.Avatar)
	}

	s.logger.Info("avatar updated", slog.Int64("userID", userID))
	return url, nil
}

// Subscribe makes subscriberID follow authorID and returns the author with
// up to recipesLimit of their recipes.
func (s *UserService) Subscribe(ctx context.Context, subscriberID, authorID int64, recipesLimit int) (model.UserWithRecipes, error) {
	if _, err := s.stores.Users.GetUserByID(ctx, authorID); err != nil {
		return model.UserWithRecipes{}, err
	}
	if subscriberID == authorID {
		return model.UserWithRecipes{}, apperror.Rejected(msgSelfSubscribe)
	}

	view, err := s.subscriptions(recipesLimit).Add(ctx, model.Subscription{
		SubscriberID: subscriberID,
		AuthorID:     authorID,
	})
	if err != nil {
		return model.UserWithRecipes{}, err
	}

	s.logger.Info("subscribed",
		slog.Int64("subscriberID", subscriberID),
		slog.Int64("authorID", authorID),
	)
	return view, nil
}

func (s *UserService) Unsubscribe(ctx context.Context, subscriberID, authorID int64) error {
	if _, err := s.stores.Users.GetUserByID(ctx, authorID); err != nil {
		return err
	}
	if subscriberID == authorID {
		return apperror.Rejected(msgSelfSubscribe)
	}

	err := s.subscriptions(0).Remove(ctx, model.Subscription{
		SubscriberID: subscriberID,
		AuthorID:     authorID,
	})
	if err != nil {
		return err
	}

	s.logger.Info("unsubscribed",
		slog.Int64("subscriberID", subscriberID),
		slog.Int64("authorID", authorID),
	)
	return nil
}

// Subscriptions lists the authors subscriberID follows, each with up to
// recipesLimit recipes. viewerID decides is_subscribed on every entry.
func (s *UserService) Subscriptions(ctx context.Context, viewerID, subscriberID int64, recipesLimit, limit, offset int) (Page[model.UserWithRecipes], error) {
	if viewerID != subscriberID {
		if _, err := s.stores.Users.GetUserByID(ctx, subscriberID); err != nil {
			return Page[model.UserWithRecipes]{}, err
		}
	}

	authors, count, err := s.stores.Subscriptions.ListSubscriptions(ctx, subscriberID,
		repository.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		s.logger.Error("failed to list subscriptions",
			slog.Int64("subscriberID", subscriberID),
			slog.String("error", err.Error()),
		)
		return Page[model.UserWithRecipes]{}, fmt.Errorf("listing subscriptions: %w", err)
	}

	views := make([]model.UserWithRecipes, 0, len(authors))
	for i := range authors {
		v, err := s.stores.userWithRecipes(ctx, viewerID, &authors[i], recipesLimit)
		if err != nil {
			return Page[model.UserWithRecipes]{}, err
		}
		views = append(views, v)
	}
	return Page[model.UserWithRecipes]{Items: views, Count: count}, nil
}

func (s *UserService) subscriptions(recipesLimit int) Toggle[model.Subscription, model.UserWithRecipes] {
	return Toggle[model.Subscription, model.UserWithRecipes]{
		Edges: subscriptionEdges{repo: s.stores.Subscriptions},
		View: func(ctx context.Context, sub model.Subscription) (model.UserWithRecipes, error) {
			author, err := s.stores.Users.GetUserByID(ctx, sub.AuthorID)
			if err != nil {
				return model.UserWithRecipes{}, err
			}
			return s.stores.userWithRecipes(ctx, sub.SubscriberID, author, recipesLimit)
		},
		AlreadyExists: msgSubExists,
		NotExists:     msgSubMissing,
	}
}

func (s *UserService) discardImage(ctx context.Context, url string) {
	if err := s.images.Delete(ctx, url); err != nil {
		s.logger.Warn("failed to remove image",
			slog.String("url", url),
			slog.String("error", err.Error()),
		)
	}
}
