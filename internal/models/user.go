package models

import "time"

// UserStatus represents the status of a user account
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusDisabled UserStatus = "disabled"
)

// User represents a user in the system
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	DisplayName  string     `json:"displayName"`
	Status       UserStatus `json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`

	// Academic profile fields stored as preferences
	Preferences ProfilePreferences `json:"preferences"`
}

// ProfilePreferences holds the student-editable profile details
type ProfilePreferences struct {
	Major string `json:"major,omitempty"`
	Year  string `json:"year,omitempty"`
	GPA   string `json:"gpa,omitempty"`
}

// DefaultProfilePreferences returns the sentinel values shown before a
// student fills in their profile
func DefaultProfilePreferences() ProfilePreferences {
	return ProfilePreferences{
		Major: "Undeclared",
		Year:  "Student",
		GPA:   "N/A",
	}
}

// CreateUserParams holds parameters for creating a user
type CreateUserParams struct {
	Email       string
	Password    string // already hashed
	DisplayName string
	Status      UserStatus
}

// UpdateUserParams holds optional fields for updating a user
type UpdateUserParams struct {
	DisplayName *string
	Password    *string
	Status      *UserStatus
	Preferences *ProfilePreferences
}

// SignupParams holds signup request parameters
type SignupParams struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"name"`
}

// LoginParams holds login request parameters
type LoginParams struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthTokens represents the tokens returned after authentication
type AuthTokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int    `json:"expiresIn"` // seconds
}

// AuthResponse represents the response after successful authentication
type AuthResponse struct {
	User      *User       `json:"user"`
	Tokens    *AuthTokens `json:"tokens"`
	IsNewUser bool        `json:"isNewUser,omitempty"`
}

// RefreshToken represents a stored refresh token
type RefreshToken struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	TokenHash string     `json:"-"`
	ExpiresAt time.Time  `json:"expiresAt"`
	CreatedAt time.Time  `json:"createdAt"`
	RevokedAt *time.Time `json:"revokedAt,omitempty"`
}

// PasswordResetToken is a stored, single-use reset credential. Only the hash
// is persisted; the raw token exists solely in the reset email.
type PasswordResetToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}
