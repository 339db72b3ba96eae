package codec

import "fmt"

type Code string

const (
	CodeMalformed     Code = "MALFORMED"
	CodeBadAlgorithm  Code = "BAD_ALGORITHM"
	CodeMissingField  Code = "MISSING_FIELD"
	CodeInvalidEmail  Code = "INVALID_EMAIL"
	CodeInvalidTier   Code = "INVALID_TIER"
	CodeInvalidStatus Code = "INVALID_STATUS"
	CodeExpired       Code = "EXPIRED"
	CodeNotYetValid   Code = "NOT_YET_VALID"
	CodeFutureIssued  Code = "FUTURE_ISSUED"
	CodeMissingSecret Code = "MISSING_SECRET"
	CodeBadAudience   Code = "BAD_AUDIENCE"
	CodeBadIssuer     Code = "BAD_ISSUER"
	CodeTokenTooOld   Code = "TOKEN_TOO_OLD"
	CodeMissingClaim  Code = "MISSING_CLAIM"
	CodeBadSignature  Code = "BAD_SIGNATURE"
)

// Error is a typed codec failure. errors.Is matches on Code alone, so the
// exported sentinels below can be used as targets regardless of Field.
type Error struct {
	Code  Code
	Field string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("credential %s: %s", string(e.Code), e.Field)
	}
	return "credential " + string(e.Code)
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrMalformed     = &Error{Code: CodeMalformed}
	ErrBadAlgorithm  = &Error{Code: CodeBadAlgorithm}
	ErrMissingField  = &Error{Code: CodeMissingField}
	ErrInvalidEmail  = &Error{Code: CodeInvalidEmail}
	ErrInvalidTier   = &Error{Code: CodeInvalidTier}
	ErrInvalidStatus = &Error{Code: CodeInvalidStatus}
	ErrExpired       = &Error{Code: CodeExpired}
	ErrNotYetValid   = &Error{Code: CodeNotYetValid}
	ErrFutureIssued  = &Error{Code: CodeFutureIssued}
	ErrMissingSecret = &Error{Code: CodeMissingSecret}
	ErrBadAudience   = &Error{Code: CodeBadAudience}
	ErrBadIssuer     = &Error{Code: CodeBadIssuer}
	ErrTokenTooOld   = &Error{Code: CodeTokenTooOld}
	ErrMissingClaim  = &Error{Code: CodeMissingClaim}
	ErrBadSignature  = &Error{Code: CodeBadSignature}
)
