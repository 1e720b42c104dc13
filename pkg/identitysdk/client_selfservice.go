package identitysdk

import (
	"context"
	"net/http"
)

// Register starts self-registration. Success does not reveal whether the
// address was already registered.
func (c *Client) Register(ctx context.Context, email, password string) error {
	return c.accepted(ctx, "/v1/registrations", RegisterRequest{Email: email, Password: password})
}

// VerifyEmail redeems an email verification token.
func (c *Client) VerifyEmail(ctx context.Context, token string) error {
	return c.ok(ctx, "/v1/registrations/verify", TokenRequest{Token: token})
}

// ResendVerification asks for a fresh verification link.
func (c *Client) ResendVerification(ctx context.Context, email string) error {
	return c.accepted(ctx, "/v1/registrations/resend", EmailRequest{Email: email})
}

// CompleteRegistration sets the first password of an approved applicant.
func (c *Client) CompleteRegistration(ctx context.Context, token, password string) error {
	return c.ok(ctx, "/v1/registrations/complete", TokenPasswordRequest{Token: token, Password: password})
}

// ForgotPassword requests a reset link.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	return c.accepted(ctx, "/v1/password/forgot", EmailRequest{Email: email})
}

// ResetPassword redeems a reset token.
func (c *Client) ResetPassword(ctx context.Context, token, password string) error {
	return c.ok(ctx, "/v1/password/reset", TokenPasswordRequest{Token: token, Password: password})
}

// ApplyForAccreditation files a role request without an account.
func (c *Client) ApplyForAccreditation(ctx context.Context, email, roleCode string) error {
	return c.accepted(ctx, "/v1/accreditations/apply", ApplyRequest{Email: email, RoleCode: roleCode})
}

func (c *Client) accepted(ctx context.Context, path string, body any) error {
	resp, err := c.do(ctx, http.MethodPost, path, "", body)
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil, http.StatusAccepted)
}

func (c *Client) ok(ctx context.Context, path string, body any) error {
	resp, err := c.do(ctx, http.MethodPost, path, "", body)
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil, http.StatusOK)
}
