/*
Package identitysdk is a client for the portal identity service.

# Client vs Session

Anonymous self-service calls live on Client:

	client := identitysdk.NewClient("https://identity.example.com")

	// Start self-registration; the verification link arrives by email.
	err := client.Register(ctx, "a@example.com", "correct horse battery")

	// Redeem the link.
	err = client.VerifyEmail(ctx, token)

	// Forgot password always succeeds from the caller's point of view.
	err = client.ForgotPassword(ctx, "a@example.com")

Calls that need a bearer token go through a Session. Tokens are issued by
the portal's login service; this package only carries them:

	session := client.NewSession(accessToken)

	pending, err := session.ListPending(ctx, 50)
	req, err := session.Decide(ctx, pending.Requests[0].ID, identitysdk.DecisionApprove, "")

# Errors

Non-2xx responses are returned as *APIError carrying the HTTP status and
the error code from the response body:

	var apiErr *identitysdk.APIError
	if errors.As(err, &apiErr) && apiErr.Code == identitysdk.ErrorCodeAlreadyDecided {
		// someone else decided first
	}
*/
package identitysdk
