package gateway

import (
	"context"
	"net/http"
	"net/url"

	"github.com/v2t/web/internal/models"
)

// Signup creates a pending account; the backend e-mails an OTP.
func (c *Client) Signup(ctx context.Context, req models.SignupRequest) error {
	httpReq, err := c.newJSONRequest(ctx, http.MethodPost, "/auth/signup", nil, req)
	if err != nil {
		return err
	}
	return c.do(c.http, "gateway.signup", httpReq, nil)
}

// VerifyOTP confirms the account's e-mail address.
func (c *Client) VerifyOTP(ctx context.Context, req models.VerifyOTPRequest) error {
	httpReq, err := c.newJSONRequest(ctx, http.MethodPost, "/auth/verify-otp", nil, req)
	if err != nil {
		return err
	}
	return c.do(c.http, "gateway.verify_otp", httpReq, nil)
}

// ResendOTP asks the backend to issue a fresh code for email.
func (c *Client) ResendOTP(ctx context.Context, email string) error {
	httpReq, err := c.newJSONRequest(ctx, http.MethodPost, "/auth/resend-otp", url.Values{"email": {email}}, nil)
	if err != nil {
		return err
	}
	return c.do(c.http, "gateway.resend_otp", httpReq, nil)
}

// Login exchanges credentials for a bearer token and profile.
func (c *Client) Login(ctx context.Context, req models.LoginRequest) (models.AuthResponse, error) {
	httpReq, err := c.newJSONRequest(ctx, http.MethodPost, "/auth/login", nil, req)
	if err != nil {
		return models.AuthResponse{}, err
	}

	var resp models.AuthResponse
	if err := c.do(c.http, "gateway.login", httpReq, decodeInto(&resp)); err != nil {
		return models.AuthResponse{}, err
	}
	return resp, nil
}
