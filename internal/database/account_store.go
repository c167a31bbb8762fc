package database

import (
	"context"
	"database/sql"

	"github.com/campusfeed/campusfeed/internal/models"
)

// AccountStore handles connected_accounts database operations. The feed
// pipeline reads from it; only the linking routes write to it.
type AccountStore struct {
	db *DB
}

// NewAccountStore creates a new account store
func NewAccountStore(db *DB) *AccountStore {
	return &AccountStore{db: db}
}

// Upsert stores or replaces the access token for (user, platform) and
// refreshes last_sync.
func (s *AccountStore) Upsert(ctx context.Context, userID string, platform models.ProviderID, accessToken, refreshToken string) error {
	query := `
		INSERT INTO connected_accounts (user_id, platform, access_token, refresh_token)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, platform)
		DO UPDATE SET access_token = $3, refresh_token = $4, last_sync = NOW()
	`
	_, err := s.db.ExecContext(ctx, query, userID, platform, accessToken, nullString(refreshToken))
	return err
}

// Get retrieves the connected account for (user, platform), or nil if the
// platform is not linked.
func (s *AccountStore) Get(ctx context.Context, userID string, platform models.ProviderID) (*models.ConnectedAccount, error) {
	query := `
		SELECT id, user_id, platform, access_token, refresh_token, last_sync
		FROM connected_accounts
		WHERE user_id = $1 AND platform = $2
	`

	account := &models.ConnectedAccount{}
	var refreshToken sql.NullString

	err := s.db.QueryRowContext(ctx, query, userID, platform).Scan(
		&account.ID, &account.UserID, &account.Platform,
		&account.AccessToken, &refreshToken, &account.LastSync,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	account.RefreshToken = refreshToken.String
	return account, nil
}

// List retrieves all connected accounts for a user
func (s *AccountStore) List(ctx context.Context, userID string) ([]models.ConnectedAccount, error) {
	query := `
		SELECT id, user_id, platform, access_token, refresh_token, last_sync
		FROM connected_accounts
		WHERE user_id = $1
		ORDER BY platform
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []models.ConnectedAccount
	for rows.Next() {
		var account models.ConnectedAccount
		var refreshToken sql.NullString

		err := rows.Scan(
			&account.ID, &account.UserID, &account.Platform,
			&account.AccessToken, &refreshToken, &account.LastSync,
		)
		if err != nil {
			return nil, err
		}

		account.RefreshToken = refreshToken.String
		accounts = append(accounts, account)
	}

	return accounts, rows.Err()
}

// Delete removes the connected account for (user, platform)
func (s *AccountStore) Delete(ctx context.Context, userID string, platform models.ProviderID) error {
	query := `DELETE FROM connected_accounts WHERE user_id = $1 AND platform = $2`
	_, err := s.db.ExecContext(ctx, query, userID, platform)
	return err
}
