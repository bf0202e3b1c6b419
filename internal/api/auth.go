package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/nhle/dealroom/internal/model"
	"github.com/nhle/dealroom/internal/session"
)

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresAt    time.Time     `json:"expires_at"`
	Profile      model.Profile `json:"profile"`
}

func (t tokenResponse) session() (model.AuthSession, error) {
	if t.AccessToken == "" {
		return model.AuthSession{}, fmt.Errorf("token response without access token")
	}
	s := model.AuthSession{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    t.ExpiresAt,
		Profile:      t.Profile,
	}
	if s.ExpiresAt.IsZero() {
		if exp, err := session.ExpiryFromJWT(t.AccessToken); err == nil {
			s.ExpiresAt = exp
		}
	}
	return s, nil
}

// SignIn exchanges credentials for a session. The returned session carries
// no biometric key; the caller enrolls one.
func (c *Client) SignIn(ctx context.Context, email, password string) (model.AuthSession, error) {
	var resp tokenResponse
	err := c.sendJSON(ctx, http.MethodPost, "/v1/auth/sign-in",
		signInRequest{Email: email, Password: password}, &resp)
	if err != nil {
		return model.AuthSession{}, fmt.Errorf("signing in: %w", err)
	}
	return resp.session()
}

// Refresh exchanges a refresh token for a new access token. A rejected
// refresh token is reported as an AuthError.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (model.AuthSession, error) {
	var resp tokenResponse
	err := c.sendJSON(ctx, http.MethodPost, "/v1/auth/refresh",
		refreshRequest{RefreshToken: refreshToken}, &resp)
	if err != nil {
		return model.AuthSession{}, fmt.Errorf("refreshing session: %w", err)
	}
	if resp.RefreshToken == "" {
		resp.RefreshToken = refreshToken
	}
	return resp.session()
}
