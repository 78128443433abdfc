package shared

import "errors"

// Sentinels shared across the auth and admin packages. Handlers translate
// these into RFC7807 responses; repositories translate pgx errors into them.
var (
	ErrNotFound = errors.New("not found")

	// ErrInvalidCredentials covers unknown email, wrong password and
	// deactivated accounts alike, so login responses never reveal which
	// one it was.
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrCSRFTokenMissing  = errors.New("csrf token missing")
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)
