package auth

import (
	"errors"
	"fmt"
)

// Configuration errors indicate the deployment is misconfigured. They
// propagate to a visible operator-facing outcome, distinct from ordinary
// login failure, because the fix is administrative rather than user retry.
var (
	ErrConfiguration = errors.New("authentication backend misconfigured")

	// Signed-assertion backend
	ErrNoKeyForSubdomain = fmt.Errorf("%w: no signing key registered for this subdomain", ErrConfiguration)

	// Directory backend
	ErrMissingNameMapping  = fmt.Errorf("%w: directory attribute map has no full-name entry", ErrConfiguration)
	ErrUnknownCustomField  = fmt.Errorf("%w: directory attribute map references unknown custom profile field", ErrConfiguration)
	ErrOutsideAppendDomain = fmt.Errorf("%w: login identifier outside the configured append domain", ErrConfiguration)
)

// ErrDataValidation covers malformed synced attribute data (e.g. an
// unparseable date). Fatal for the sync pass that hits it.
var ErrDataValidation = errors.New("directory attribute failed validation")

// IsConfigError reports whether err belongs to the configuration-error kind.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
