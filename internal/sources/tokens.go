package sources

import (
	"context"
	"errors"
	"fmt"

	"github.com/campusfeed/campusfeed/internal/models"
)

// ErrNoToken indicates no credential is available for a (user, platform)
// pair. Unlike upstream failures it is a stable, inspectable condition, so
// callers can distinguish "not connected" from "provider down" if they wish.
var ErrNoToken = errors.New("no access token available")

// AccountGetter is the read-only slice of the account store the adapters need
type AccountGetter interface {
	Get(ctx context.Context, userID string, platform models.ProviderID) (*models.ConnectedAccount, error)
}

// TokenSource resolves the access token for a provider. A token stored via
// the linking flow takes precedence; the deployment-wide fallback token is
// used only when nothing is stored.
type TokenSource struct {
	accounts AccountGetter
	platform models.ProviderID
	fallback string
}

// NewTokenSource creates a token source for one provider
func NewTokenSource(accounts AccountGetter, platform models.ProviderID, fallback string) *TokenSource {
	return &TokenSource{
		accounts: accounts,
		platform: platform,
		fallback: fallback,
	}
}

// Token returns the access token to use for userID, or ErrNoToken
func (ts *TokenSource) Token(ctx context.Context, userID string) (string, error) {
	if ts.accounts != nil {
		account, err := ts.accounts.Get(ctx, userID, ts.platform)
		if err != nil {
			return "", fmt.Errorf("failed to look up %s account: %w", ts.platform, err)
		}
		if account != nil && account.AccessToken != "" {
			return account.AccessToken, nil
		}
	}

	if ts.fallback != "" {
		return ts.fallback, nil
	}

	return "", fmt.Errorf("%s: %w", ts.platform, ErrNoToken)
}
