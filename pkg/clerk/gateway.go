package clerk

import (
	"fmt"
	"strings"

	"project-collab-backend/pkg/models"
)

// Gateway resolves a bearer token into the authenticated identity used by
// the rest of the backend. Token verification happens locally against the
// JWKS; profile data comes from the Clerk API.
type Gateway struct {
	verifier *TokenVerifier
	client   *Client
}

// NewGateway builds a gateway from a verifier and an API client.
func NewGateway(verifier *TokenVerifier, client *Client) *Gateway {
	return &Gateway{
		verifier: verifier,
		client:   client,
	}
}

// Authenticate verifies the session token and returns the caller's identity.
// Any failure along the way is collapsed into a single error so the HTTP
// layer can answer with one uniform 401.
func (g *Gateway) Authenticate(token string) (*models.AuthData, error) {
	claims, err := g.verifier.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("invalid session token: %w", err)
	}

	userID := claims.Subject
	if userID == "" {
		return nil, fmt.Errorf("invalid session token: missing subject")
	}

	user, err := g.client.GetUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", userID, err)
	}

	// The first membership is the caller's effective organization.
	memberships, err := g.client.ListOrganizationMemberships(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load memberships for %s: %w", userID, err)
	}

	auth := &models.AuthData{
		UserID:       userID,
		ImageURL:     user.ImageURL,
		EmailAddress: user.PrimaryEmail(),
	}
	if len(memberships) > 0 {
		auth.OrganizationID = memberships[0].Organization.ID
		auth.Role = NormalizeRole(memberships[0].Role)
	}
	return auth, nil
}

// NormalizeRole strips Clerk's "org:" prefix so the rest of the code can
// compare plain role names.
func NormalizeRole(role string) string {
	return strings.TrimPrefix(role, "org:")
}
