package codec

import (
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/bnema/medverus-cli/internal/domain"
)

// VerifyOptions carries caller expectations for Verify. Key is the signing
// key for the token's declared algorithm; leaving it nil fails closed with
// MISSING_SECRET.
type VerifyOptions struct {
	Audience       string
	Issuer         string
	MaxAge         time.Duration
	RequiredClaims []string
	Key            any
}

// Verify runs the full Decode pipeline, then checks audience, issuer,
// maximum age, caller-required claims, and finally the signature.
func Verify(token string, opts VerifyOptions, now time.Time) (domain.Credential, error) {
	h, claims, err := decodeSegments(token)
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

	if opts.Audience != "" && credential.Audience != opts.Audience {
		return domain.Credential{}, &Error{Code: CodeBadAudience, Field: credential.Audience}
	}
	if opts.Issuer != "" && credential.Issuer != opts.Issuer {
		return domain.Credential{}, &Error{Code: CodeBadIssuer, Field: credential.Issuer}
	}
	if opts.MaxAge > 0 && now.Sub(credential.IssuedAt) > opts.MaxAge {
		return domain.Credential{}, ErrTokenTooOld
	}
	for _, name := range opts.RequiredClaims {
		if _, ok := claims[name]; !ok {
			return domain.Credential{}, &Error{Code: CodeMissingClaim, Field: name}
		}
	}

	if opts.Key == nil {
		return domain.Credential{}, ErrMissingSecret
	}
	// Temporal claims were already checked against the injected clock;
	// the parser is only consulted for the signature.
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{h.Algorithm}),
		jwt.WithoutClaimsValidation(),
	)
	if _, err := parser.Parse(token, func(*jwt.Token) (any, error) {
		return opts.Key, nil
	}); err != nil {
		return domain.Credential{}, &Error{Code: CodeBadSignature, Field: err.Error()}
	}

	return credential, nil
}
