package auth

import "github.com/go-realmgate/realmgate/internal/models"

// Result is the tri-state outcome of a backend resolution: success (User
// set), ordinary failure (Reason set, surfaced generically), or
// configuration error (Err set, propagated to operators rather than
// swallowed into a generic failure).
//
// A fourth shape — PendingEmail set with no User — means the backend
// verified an identity that has no local account yet; the registration
// bridge decides what happens next.
type Result struct {
	User *models.User

	// Reason is the internal failure reason. It is logged, never shown to
	// end users: every ordinary failure must look identical at the
	// boundary.
	Reason string

	// Err is set only for configuration and fatal data-validation errors.
	Err error

	// PendingEmail and PendingName carry a verified identity with no
	// local account through to the registration bridge.
	PendingEmail string
	PendingName  string
}

// Success wraps a resolved user.
func Success(user *models.User) *Result {
	return &Result{User: user}
}

// Failure records an internal reason and resolves to "user not found" at
// the boundary.
func Failure(reason string) *Result {
	return &Result{Reason: reason}
}

// ConfigError propagates an operator-facing error.
func ConfigError(err error) *Result {
	return &Result{Err: err}
}

// Pending records a verified identity awaiting registration.
func Pending(email, fullName string) *Result {
	return &Result{PendingEmail: email, PendingName: fullName}
}

// Ok reports a fully resolved user.
func (r *Result) Ok() bool {
	return r != nil && r.User != nil && r.Err == nil
}

// NeedsRegistration reports a verified identity with no local account.
func (r *Result) NeedsRegistration() bool {
	return r != nil && r.User == nil && r.Err == nil && r.PendingEmail != ""
}
