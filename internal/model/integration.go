package model

import "time"

type GarminIntegration struct {
	ID                    string     `db:"id" json:"id"`
	UserID                string     `db:"user_id" json:"userId"`
	ProviderUserID        string     `db:"provider_user_id" json:"providerUserId"`
	AccessToken           *string    `db:"access_token" json:"-"`
	RefreshToken          *string    `db:"refresh_token" json:"-"`
	TokenExpiresAt        *time.Time `db:"token_expires_at" json:"-"`
	RefreshTokenExpiresAt *time.Time `db:"refresh_token_expires_at" json:"-"`
	RefreshLockUntil      *time.Time `db:"refresh_lock_until" json:"-"`
	RefreshTokenInvalid   bool       `db:"refresh_token_invalid" json:"refreshTokenInvalid"`
	CreatedAt             time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updatedAt"`
}

type CreateIntegrationParams struct {
	UserID                string
	ProviderUserID        string
	AccessToken           *string
	RefreshToken          *string
	TokenExpiresAt        *time.Time
	RefreshTokenExpiresAt *time.Time
}

// RefreshedTokens holds the result of a successful provider token refresh.
type RefreshedTokens struct {
	AccessToken           string
	RefreshToken          string
	TokenExpiresAt        time.Time
	RefreshTokenExpiresAt *time.Time
}
