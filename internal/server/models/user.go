// Package models defines server-side data models persisted by the stores.
package models

import "time"

// User is the identity record. PasswordHash and RefreshToken never leave the
// server; use Public for anything sent to a client.
type User struct {
	ID           string
	UserName     string
	Email        string
	FullName     string
	Avatar       string
	CoverImage   string
	PasswordHash string
	// RefreshToken is the single currently valid refresh token, or "" when
	// the user has no active session.
	RefreshToken string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser is the sanitized view of a User.
type PublicUser struct {
	ID         string    `json:"_id"`
	UserName   string    `json:"username"`
	Email      string    `json:"email"`
	FullName   string    `json:"fullName"`
	Avatar     string    `json:"avatar"`
	CoverImage string    `json:"coverImage"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:         u.ID,
		UserName:   u.UserName,
		Email:      u.Email,
		FullName:   u.FullName,
		Avatar:     u.Avatar,
		CoverImage: u.CoverImage,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
