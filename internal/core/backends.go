package core

// Canonical backend names. These are the values stored in a realm's
// enabled-method set and accepted in the server-wide enabled-backend list.
const (
	BackendPassword      = "password"
	BackendDirectory     = "directory"
	BackendTrustedHeader = "remote_user"
	BackendGitHub        = "github"
	BackendJWT           = "jwt"
	BackendDev           = "dev"
)

// AllBackends lists every backend kind the server knows how to construct.
// The set is fixed at compile time; configuration selects from it.
var AllBackends = []string{
	BackendPassword,
	BackendDirectory,
	BackendTrustedHeader,
	BackendGitHub,
	BackendJWT,
	BackendDev,
}

// KnownBackend reports whether name is one of the fixed backend kinds.
func KnownBackend(name string) bool {
	for _, b := range AllBackends {
		if b == name {
			return true
		}
	}
	return false
}
