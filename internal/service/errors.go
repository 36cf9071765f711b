package service

import "errors"

// Tenant-scoped failures. A sync run logs these and skips the tenant rather
// than aborting the whole run.
var (
	ErrCredentialMissing  = errors.New("tenant credential missing")
	ErrTokenRefreshFailed = errors.New("token refresh failed")
)
