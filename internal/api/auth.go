package api

import (
	"context"
	"fmt"

	"github.com/dnguyen/buswatch/internal/model"
)

// SignUpRequest is the payload for account registration.
type SignUpRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
	Phone    string `json:"phone"`
}

// AuthResult is the outcome of a successful sign-up or log-in.
type AuthResult struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

// SignUp registers a new account and returns its first session token.
func (c *Client) SignUp(ctx context.Context, req SignUpRequest) (*AuthResult, error) {
	var result AuthResult
	if err := c.post(ctx, "/auth/signup", req, &result); err != nil {
		return nil, fmt.Errorf("signing up: %w", err)
	}
	return &result, nil
}

// LogIn exchanges credentials for a session token.
func (c *Client) LogIn(ctx context.Context, email, password string) (*AuthResult, error) {
	body := map[string]string{"email": email, "password": password}

	var result AuthResult
	if err := c.post(ctx, "/auth/login", body, &result); err != nil {
		return nil, fmt.Errorf("logging in: %w", err)
	}
	return &result, nil
}

// LogOut invalidates the current session server-side. The local token is
// cleared by the caller regardless of the outcome.
func (c *Client) LogOut(ctx context.Context) error {
	if err := c.post(ctx, "/auth/logout", nil, nil); err != nil {
		return fmt.Errorf("logging out: %w", err)
	}
	return nil
}

// CurrentUser asks the backend to confirm the user behind the installed
// bearer token.
func (c *Client) CurrentUser(ctx context.Context) (*model.User, error) {
	var user model.User
	if err := c.get(ctx, "/auth/me", &user); err != nil {
		return nil, fmt.Errorf("fetching current user: %w", err)
	}
	return &user, nil
}
