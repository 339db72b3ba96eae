package domain

import "errors"

var (
	ErrNoCredential       = errors.New("no stored credential")
	ErrNoRotationToken    = errors.New("no rotation token available")
	ErrRefreshRejected    = errors.New("credential refresh rejected")
	ErrReauthRequired     = errors.New("reauthentication required")
	ErrAllSourcesFailed   = errors.New("all sources failed")
	ErrComplianceRejected = errors.New("request rejected by compliance gate")
	ErrNoSources          = errors.New("at least one source is required")
)
