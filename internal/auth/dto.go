// AngelaMos | 2026
// dto.go

package auth

import (
	"time"
)

type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=128"`
}

type SignupRequest struct {
	Name      string     `json:"name"                 validate:"required,min=1,max=50"`
	Email     string     `json:"email"                validate:"required,email,max=255"`
	Password  string     `json:"password"             validate:"required,min=6,max=128"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type TokenResponse struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	ExpiresIn        int       `json:"expires_in"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

type UserResponse struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type AuthResponse struct {
	User   UserResponse  `json:"user"`
	Tokens TokenResponse `json:"tokens"`
}

type SessionInfo struct {
	ID               string     `json:"id"`
	FamilyID         string     `json:"family_id"`
	UserAgent        string     `json:"user_agent"`
	IPAddress        string     `json:"ip_address"`
	CreatedAt        time.Time  `json:"created_at"`
	AccessExpiresAt  *time.Time `json:"access_expires_at,omitempty"`
	RefreshExpiresAt *time.Time `json:"refresh_expires_at,omitempty"`
}

type SessionsResponse struct {
	Sessions []SessionInfo `json:"sessions"`
}

func toTokenResponse(p Pair, now time.Time) TokenResponse {
	return TokenResponse{
		AccessToken:      p.AccessSecret,
		RefreshToken:     p.RefreshSecret,
		TokenType:        "Bearer",
		ExpiresIn:        int(p.AccessExpiresAt.Sub(now) / time.Second),
		ExpiresAt:        p.AccessExpiresAt,
		RefreshExpiresAt: p.RefreshExpiresAt,
	}
}

func toSessionInfo(t TokenPair) SessionInfo {
	return SessionInfo{
		ID:               t.ID,
		FamilyID:         t.FamilyID,
		UserAgent:        t.UserAgent,
		IPAddress:        t.IPAddress,
		CreatedAt:        t.CreatedAt,
		AccessExpiresAt:  t.AccessExpiresAt,
		RefreshExpiresAt: t.RefreshExpiresAt,
	}
}
