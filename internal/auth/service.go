package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/campusfeed/campusfeed/internal/config"
	"github.com/campusfeed/campusfeed/internal/database"
	"github.com/campusfeed/campusfeed/internal/logging"
	"github.com/campusfeed/campusfeed/internal/mail"
	"github.com/campusfeed/campusfeed/internal/models"
)

// resetTokenTTL is how long a password reset link stays valid
const resetTokenTTL = time.Hour

// AuthError represents an authentication failure with a stable error code
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

// Service handles authentication operations
type Service struct {
	config    config.AuthConfig
	userStore *database.UserStore
	mailer    mail.Sender
	logger    *logging.Logger
}

// NewService creates a new auth service
func NewService(userStore *database.UserStore, mailer mail.Sender, cfg config.AuthConfig, logger *logging.Logger) *Service {
	return &Service{
		config:    cfg,
		userStore: userStore,
		mailer:    mailer,
		logger:    logger,
	}
}

// Signup creates a new user with email/password
func (s *Service) Signup(ctx context.Context, params models.SignupParams) (*models.AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(params.Email))

	if email == "" {
		return nil, &AuthError{Code: "invalid_input", Message: "email is required"}
	}
	if params.Password == "" {
		return nil, &AuthError{Code: "invalid_input", Message: "password is required"}
	}
	if len(params.Password) < 8 {
		return nil, &AuthError{Code: "invalid_input", Message: "password must be at least 8 characters"}
	}

	existing, err := s.userStore.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, &AuthError{Code: "user_exists", Message: "a user with this email already exists"}
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.userStore.Create(ctx, models.CreateUserParams{
		Email:       email,
		Password:    string(passwordHash),
		DisplayName: strings.TrimSpace(params.DisplayName),
		Status:      models.UserStatusActive,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	tokens, err := s.generateTokens(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	s.logger.Info("User signed up", logging.WithFields(map[string]interface{}{
		"userId": user.ID,
		"email":  user.Email,
	}))

	return &models.AuthResponse{
		User:      user,
		Tokens:    tokens,
		IsNewUser: true,
	}, nil
}

// Login authenticates a user with email/password
func (s *Service) Login(ctx context.Context, params models.LoginParams) (*models.AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(params.Email))

	if email == "" || params.Password == "" {
		return nil, &AuthError{Code: "invalid_input", Message: "email and password are required"}
	}

	user, err := s.userStore.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, &AuthError{Code: "invalid_credentials", Message: "invalid email or password"}
	}

	if user.Status != models.UserStatusActive {
		return nil, &AuthError{Code: "account_disabled", Message: "account is disabled"}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(params.Password)); err != nil {
		return nil, &AuthError{Code: "invalid_credentials", Message: "invalid email or password"}
	}

	if err := s.userStore.UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn("Failed to update last login", logging.WithField("error", err.Error()))
	}

	tokens, err := s.generateTokens(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	s.logger.Info("User logged in", logging.WithFields(map[string]interface{}{
		"userId": user.ID,
		"email":  user.Email,
	}))

	return &models.AuthResponse{
		User:   user,
		Tokens: tokens,
	}, nil
}

// RefreshTokens rotates the refresh token and issues a new access token
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (*models.AuthTokens, error) {
	tokenHash := hashToken(refreshToken)

	storedToken, err := s.userStore.GetRefreshTokenByHash(ctx, tokenHash)
	if err != nil {
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}
	if storedToken == nil {
		return nil, &AuthError{Code: "invalid_token", Message: "invalid or expired refresh token"}
	}

	user, err := s.userStore.GetByID(ctx, storedToken.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil || user.Status != models.UserStatusActive {
		return nil, &AuthError{Code: "invalid_token", Message: "user not found or disabled"}
	}

	if err := s.userStore.RevokeRefreshToken(ctx, storedToken.ID); err != nil {
		s.logger.Warn("Failed to revoke old refresh token", logging.WithField("error", err.Error()))
	}

	tokens, err := s.generateTokens(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	return tokens, nil
}

// Logout revokes all refresh tokens for a user
func (s *Service) Logout(ctx context.Context, userID string) error {
	return s.userStore.RevokeAllUserRefreshTokens(ctx, userID)
}

// ForgotPassword starts the reset flow for an email address. Whether or not
// the address belongs to a user, the caller gets the same nil result, so the
// endpoint cannot be used to probe for accounts. Only a genuine delivery
// failure returns an error.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return &AuthError{Code: "invalid_input", Message: "email is required"}
	}

	user, err := s.userStore.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil
	}

	resetTokenBytes := make([]byte, 32)
	if _, err := rand.Read(resetTokenBytes); err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}
	resetToken := hex.EncodeToString(resetTokenBytes)

	expiresAt := time.Now().Add(resetTokenTTL)
	if _, err := s.userStore.CreatePasswordResetToken(ctx, user.ID, hashToken(resetToken), expiresAt); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	if err := s.mailer.SendPasswordReset(ctx, user.Email, resetToken); err != nil {
		return fmt.Errorf("failed to send reset email: %w", err)
	}

	s.logger.Info("Password reset requested", logging.WithField("userId", user.ID))
	return nil
}

// ResetPassword consumes a reset token and sets a new password. The token is
// single use: it is deleted whether it was valid, expired, or already spent,
// and every refresh token the user holds is revoked.
func (s *Service) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	if resetToken == "" {
		return &AuthError{Code: "invalid_token", Message: "reset token is required"}
	}
	if len(newPassword) < 8 {
		return &AuthError{Code: "invalid_input", Message: "password must be at least 8 characters"}
	}

	stored, err := s.userStore.GetPasswordResetTokenByHash(ctx, hashToken(resetToken))
	if err != nil {
		return fmt.Errorf("failed to get reset token: %w", err)
	}
	if stored == nil {
		return &AuthError{Code: "invalid_token", Message: "invalid or expired reset token"}
	}

	if time.Now().After(stored.ExpiresAt) {
		if err := s.userStore.DeletePasswordResetToken(ctx, stored.ID); err != nil {
			s.logger.Warn("Failed to delete expired reset token", logging.WithField("error", err.Error()))
		}
		return &AuthError{Code: "invalid_token", Message: "reset token has expired"}
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	hashed := string(passwordHash)
	if _, err := s.userStore.Update(ctx, stored.UserID, models.UpdateUserParams{Password: &hashed}); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	if err := s.userStore.DeletePasswordResetToken(ctx, stored.ID); err != nil {
		s.logger.Warn("Failed to delete used reset token", logging.WithField("error", err.Error()))
	}

	// A reset invalidates every outstanding session
	if err := s.userStore.RevokeAllUserRefreshTokens(ctx, stored.UserID); err != nil {
		s.logger.Warn("Failed to revoke refresh tokens after reset", logging.WithField("error", err.Error()))
	}

	s.logger.Info("Password reset completed", logging.WithField("userId", stored.UserID))
	return nil
}

// ValidateAccessToken validates a JWT access token and returns the user ID
func (s *Service) ValidateAccessToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	})

	if err != nil {
		return "", &AuthError{Code: "invalid_token", Message: "invalid or expired token"}
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", &AuthError{Code: "invalid_token", Message: "invalid token claims"}
	}

	if iss, _ := claims["iss"].(string); iss != s.config.JWTIssuer {
		return "", &AuthError{Code: "invalid_token", Message: "invalid token issuer"}
	}
	if aud, _ := claims["aud"].(string); aud != s.config.JWTAudience {
		return "", &AuthError{Code: "invalid_token", Message: "invalid token audience"}
	}

	userID, ok := claims["sub"].(string)
	if !ok || userID == "" {
		return "", &AuthError{Code: "invalid_token", Message: "invalid token subject"}
	}

	return userID, nil
}

// GetUser retrieves a user by ID
func (s *Service) GetUser(ctx context.Context, userID string) (*models.User, error) {
	return s.userStore.GetByID(ctx, userID)
}

// generateTokens generates access and refresh tokens
func (s *Service) generateTokens(ctx context.Context, user *models.User) (*models.AuthTokens, error) {
	now := time.Now()

	accessClaims := jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"name":  user.DisplayName,
		"iss":   s.config.JWTIssuer,
		"aud":   s.config.JWTAudience,
		"iat":   now.Unix(),
		"exp":   now.Add(s.config.AccessTokenTTL).Unix(),
	}

	accessToken := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims)
	accessTokenString, err := accessToken.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refreshTokenBytes := make([]byte, 32)
	if _, err := rand.Read(refreshTokenBytes); err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	refreshTokenString := base64.URLEncoding.EncodeToString(refreshTokenBytes)

	refreshTokenHash := hashToken(refreshTokenString)
	expiresAt := now.Add(s.config.RefreshTokenTTL)

	_, err = s.userStore.CreateRefreshToken(ctx, user.ID, refreshTokenHash, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &models.AuthTokens{
		AccessToken:  accessTokenString,
		RefreshToken: refreshTokenString,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.config.AccessTokenTTL.Seconds()),
	}, nil
}

func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
