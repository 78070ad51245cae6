// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account.
//
// Email is the login identifier. PasswordHash is empty for accounts created
// through GitHub sign-in; those accounts cannot use the token login endpoint
// until they set a password. GitHubID is nil for password-only accounts.
type User struct {
	ID           int64     `json:"id"         db:"id"`
	Email        string    `json:"email"      db:"email"`
	Username     string    `json:"username"   db:"username"`
	FirstName    string    `json:"first_name" db:"first_name"`
	LastName     string    `json:"last_name"  db:"last_name"`
	PasswordHash string    `json:"-"          db:"password_hash"`
	Avatar       *string   `json:"avatar"     db:"avatar"` // public URL of the stored image
	GitHubID     *int64    `json:"-"          db:"github_id"`
	CreatedAt    time.Time `json:"-"          db:"created_at"`
}

// UserView is the public representation of a user as seen by a viewer.
type UserView struct {
	Email        string  `json:"email"`
	ID           int64   `json:"id"`
	Username     string  `json:"username"`
	FirstName    string  `json:"first_name"`
	LastName     string  `json:"last_name"`
	IsSubscribed bool    `json:"is_subscribed"`
	Avatar       *string `json:"avatar"`
}

// NewUserView builds the public view. isSubscribed reports whether the
// viewer follows u; it is always false for anonymous viewers.
func NewUserView(u *User, isSubscribed bool) UserView {
	return UserView{
		Email:        u.Email,
		ID:           u.ID,
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		IsSubscribed: isSubscribed,
		Avatar:       u.Avatar,
	}
}

// UserWithRecipes is returned by subscription endpoints: the author plus a
// truncated list of their recipes and the full recipe count.
type UserWithRecipes struct {
	UserView
	Recipes      []ShortRecipe `json:"recipes"`
	RecipesCount int           `json:"recipes_count"`
}
