// Package codec decodes and validates platform credentials: three
// dot-separated base64url segments (header, payload, signature). Decode is
// a pure structural and temporal check that needs no key material; Verify
// additionally checks caller expectations and the signature.
package codec

import (
	"encoding/base64"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/bnema/medverus-cli/internal/domain"
)

// ClockSkewTolerance bounds how far in the future an issued-at claim may
// sit before the credential is rejected as FUTURE_ISSUED.
const ClockSkewTolerance = 5 * time.Minute

var recognizedAlgorithms = map[string]struct{}{
	"HS256": {},
	"HS384": {},
	"HS512": {},
	"RS256": {},
	"ES256": {},
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

var requiredClaims = []string{"sub", "email", "tier", "status", "iat", "exp", "aud", "iss"}

type header struct {
	Algorithm string `json:"alg"`
	Type      string `json:"typ"`
}

// Decode splits, structurally validates, and expiry-checks token against
// now. The signature segment is not verified.
func Decode(token string, now time.Time) (domain.Credential, error) {
	_, claims, err := decodeSegments(token)
	if err != nil {
		return domain.Credential{}, err
	}

	credential, err := credentialFromClaims(claims)
	if err != nil {
		return domain.Credential{}, err
	}

	if err := checkTimes(credential, now); err != nil {
		return domain.Credential{}, err
	}

	return credential, nil
}

func decodeSegments(token string) (header, map[string]any, error) {
	segments, err := splitSegments(token)
	if err != nil {
		return header{}, nil, err
	}

	headerBytes, err := base64.RawURLEncoding.DecodeString(segments[0])
	if err != nil {
		return header{}, nil, &Error{Code: CodeMalformed, Field: "header"}
	}
	var h header
	if err := json.Unmarshal(headerBytes, &h); err != nil {
		return header{}, nil, &Error{Code: CodeMalformed, Field: "header"}
	}
	if _, ok := recognizedAlgorithms[h.Algorithm]; !ok {
		return header{}, nil, &Error{Code: CodeBadAlgorithm, Field: h.Algorithm}
	}

	payloadBytes, err := base64.RawURLEncoding.DecodeString(segments[1])
	if err != nil {
		return header{}, nil, &Error{Code: CodeMalformed, Field: "payload"}
	}
	var claims map[string]any
	if err := json.Unmarshal(payloadBytes, &claims); err != nil {
		return header{}, nil, &Error{Code: CodeMalformed, Field: "payload"}
	}

	return h, claims, nil
}

func splitSegments(token string) ([]string, error) {
	segments := strings.Split(token, ".")
	if len(segments) != 3 {
		return nil, ErrMalformed
	}
	return segments, nil
}

func credentialFromClaims(claims map[string]any) (domain.Credential, error) {
	for _, name := range requiredClaims {
		if _, ok := claims[name]; !ok {
			return domain.Credential{}, &Error{Code: CodeMissingField, Field: name}
		}
	}

	subject, err := stringClaim(claims, "sub")
	if err != nil {
		return domain.Credential{}, err
	}
	email, err := stringClaim(claims, "email")
	if err != nil {
		return domain.Credential{}, err
	}
	if !emailPattern.MatchString(email) {
		return domain.Credential{}, &Error{Code: CodeInvalidEmail, Field: email}
	}

	tierValue, err := stringClaim(claims, "tier")
	if err != nil {
		return domain.Credential{}, err
	}
	tier := domain.Tier(tierValue)
	if !tier.Valid() {
		return domain.Credential{}, &Error{Code: CodeInvalidTier, Field: tierValue}
	}

	statusValue, err := stringClaim(claims, "status")
	if err != nil {
		return domain.Credential{}, err
	}
	status := domain.CredentialStatus(statusValue)
	if !status.Valid() {
		return domain.Credential{}, &Error{Code: CodeInvalidStatus, Field: statusValue}
	}

	issuedAt, err := timeClaim(claims, "iat")
	if err != nil {
		return domain.Credential{}, err
	}
	expiresAt, err := timeClaim(claims, "exp")
	if err != nil {
		return domain.Credential{}, err
	}

	audience, err := stringClaim(claims, "aud")
	if err != nil {
		return domain.Credential{}, err
	}
	issuer, err := stringClaim(claims, "iss")
	if err != nil {
		return domain.Credential{}, err
	}

	credential := domain.Credential{
		Subject:   subject,
		Email:     email,
		Tier:      tier,
		Status:    status,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
		Audience:  audience,
		Issuer:    issuer,
	}

	if _, ok := claims["nbf"]; ok {
		notBefore, err := timeClaim(claims, "nbf")
		if err != nil {
			return domain.Credential{}, err
		}
		credential.NotBefore = notBefore
	}
	if roles, ok := claims["roles"].([]any); ok {
		for _, role := range roles {
			if name, ok := role.(string); ok {
				credential.Roles = append(credential.Roles, name)
			}
		}
	}
	if jti, ok := claims["jti"].(string); ok {
		credential.CredentialID = jti
	}
	if sessionID, ok := claims["sessionId"].(string); ok {
		credential.SessionID = sessionID
	}

	return credential, nil
}

func checkTimes(credential domain.Credential, now time.Time) error {
	if !credential.ExpiresAt.After(now) {
		return ErrExpired
	}
	if !credential.NotBefore.IsZero() && now.Before(credential.NotBefore) {
		return ErrNotYetValid
	}
	if credential.IssuedAt.After(now.Add(ClockSkewTolerance)) {
		return ErrFutureIssued
	}
	return nil
}

func stringClaim(claims map[string]any, name string) (string, error) {
	value, ok := claims[name].(string)
	if !ok || value == "" {
		return "", &Error{Code: CodeMissingField, Field: name}
	}
	return value, nil
}

func timeClaim(claims map[string]any, name string) (time.Time, error) {
	value, ok := claims[name].(float64)
	if !ok {
		return time.Time{}, &Error{Code: CodeMissingField, Field: name}
	}
	return time.Unix(int64(value), 0), nil
}
