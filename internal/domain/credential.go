package domain

import "time"

type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierPro, TierEnterprise:
		return true
	}
	return false
}

type CredentialStatus string

const (
	StatusActive    CredentialStatus = "active"
	StatusSuspended CredentialStatus = "suspended"
	StatusPending   CredentialStatus = "pending"
)

func (s CredentialStatus) Valid() bool {
	switch s {
	case StatusActive, StatusSuspended, StatusPending:
		return true
	}
	return false
}

// Credential is the decoded form of a signed platform token.
type Credential struct {
	Subject      string
	Email        string
	Tier         Tier
	Status       CredentialStatus
	Roles        []string
	IssuedAt     time.Time
	ExpiresAt    time.Time
	NotBefore    time.Time
	Audience     string
	Issuer       string
	CredentialID string
	SessionID    string
}

type UserInfo struct {
	ID    string
	Email string
	Tier  Tier
}

// TokenGrant is the response shape of the exchange and refresh endpoints.
// ExpiresIn is relative seconds; callers convert it to an absolute expiry
// at receipt time.
type TokenGrant struct {
	AccessToken   string
	RotationToken string
	TokenType     string
	ExpiresIn     int64
	User          UserInfo
}

// CredentialRecord is the durable client-side mirror of the current
// credential: the four persisted slots that are written and cleared
// together.
type CredentialRecord struct {
	AccessToken   string
	RotationToken string
	ExpiresAt     time.Time
	User          UserInfo
}

// AuthorizationProof carries the artifacts of a completed interactive
// authorization, ready to be exchanged for a TokenGrant.
type AuthorizationProof struct {
	Code        string
	Verifier    string
	RedirectURI string
}
