package api

import (
	"context"
	"net/http"

	"devon-cli/internal/model"
)

type authResponse struct {
	CSRFToken string          `json:"csrf_token"`
	Profile   *model.Identity `json:"profile"`
}

// Login authenticates and persists the session. The returned identity is the
// one to hand to the permission evaluator.
func (c *Client) Login(ctx context.Context, email, password string) (model.Identity, error) {
	var out authResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, dashboardPrefix+"/auth/login", nil, body, &out); err != nil {
		return model.Identity{}, err
	}
	c.setCSRF(out.CSRFToken)
	if out.Profile == nil {
		return model.Identity{}, &Error{Status: http.StatusForbidden, Detail: "no dashboard profile"}
	}
	c.persistSession(ctx)
	return *out.Profile, nil
}

// Me refreshes the identity from the current session.
func (c *Client) Me(ctx context.Context) (model.Identity, error) {
	var out authResponse
	if err := c.do(ctx, http.MethodGet, dashboardPrefix+"/auth/me", nil, nil, &out); err != nil {
		return model.Identity{}, err
	}
	c.setCSRF(out.CSRFToken)
	if out.Profile == nil {
		return model.Identity{}, &Error{Status: http.StatusUnauthorized, Detail: "not logged in"}
	}
	c.persistSession(ctx)
	return *out.Profile, nil
}

// Logout ends the remote session. Local credentials are dropped even when
// the request fails.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, dashboardPrefix+"/auth/logout", nil, map[string]any{}, nil)
	c.forgetSession(ctx)
	return err
}

func (c *Client) ChangePassword(ctx context.Context, newPassword, confirm string) (string, error) {
	var out messageResponse
	body := map[string]string{"new_password": newPassword, "confirm_password": confirm}
	if err := c.do(ctx, http.MethodPost, dashboardPrefix+"/auth/change-password", nil, body, &out); err != nil {
		return "", err
	}
	return out.text(), nil
}

func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	var out messageResponse
	if err := c.do(ctx, http.MethodPost, dashboardPrefix+"/auth/forgot-password", nil, map[string]string{"email": email}, &out); err != nil {
		return "", err
	}
	return out.text(), nil
}
