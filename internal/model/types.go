package model

import (
	"time"

	"github.com/google/uuid"
)

// Gender is the enumerated gender of a user profile
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// TokenType distinguishes stored opaque tokens
type TokenType string

const (
	TokenTypeRefresh TokenType = "refresh_token"
	TokenTypeSession TokenType = "session"
)

// Platform identifies the client type declared at OTP verification
type Platform string

const (
	PlatformMobile Platform = "mobile"
	PlatformWeb    Platform = "web"
)

// Auth is the root authentication record, created once per phone number
type Auth struct {
	ID        uuid.UUID
	Phone     string
	CreatedAt time.Time
}

// User is the profile record sharing its primary key with Auth.
// A valid credential without a matching User row is only partially authenticated.
type User struct {
	ID        uuid.UUID
	Name      string
	Gender    Gender
	BirthYear int
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OTP is the single live one-time code for a phone number
type OTP struct {
	Phone     string
	Code      string
	Attempts  int
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Token is a stored opaque token (refresh token or web session)
type Token struct {
	ID         uuid.UUID
	AuthID     uuid.UUID
	Token      string
	Type       TokenType
	DeviceInfo *string
	ExpiresAt  time.Time
	RevokedAt  *time.Time
	LastUsedAt time.Time
	CreatedAt  time.Time
}
