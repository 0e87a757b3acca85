package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/go-realmgate/realmgate/internal/core"
	"github.com/go-realmgate/realmgate/internal/models"
	"github.com/go-realmgate/realmgate/internal/store"
)

// Assertion failure reasons. These are internal log strings; the boundary
// still renders every one of them as a generic failed login, except the
// missing-key case which is a configuration error.
const (
	reasonNoUserClaim  = "no user specified in token"
	reasonNoRealmClaim = "no organization specified in token"
	reasonWrongSubdomain = "wrong subdomain"
)

// AssertionBackend validates a signed JWT against a per-subdomain key
// registry and extracts (user, realm) claims directly, with no external
// round trip.
type AssertionBackend struct {
	store *store.Store
	// keys maps realm subdomain to its HS256 signing key. Populated from
	// configuration at process start.
	keys map[string]string
}

func NewAssertionBackend(s *store.Store, keys map[string]string) *AssertionBackend {
	return &AssertionBackend{store: s, keys: keys}
}

func (b *AssertionBackend) Name() string           { return core.BackendJWT }
func (b *AssertionBackend) Configured() bool       { return len(b.keys) > 0 }
func (b *AssertionBackend) AllowsAutoSignup() bool { return false }
func (b *AssertionBackend) RealmBound() bool       { return true }

func (b *AssertionBackend) Authenticate(
	ctx context.Context,
	creds Credentials,
	realm *models.Realm,
) *Result {
	if realm == nil {
		return Failure("jwt login requires a realm")
	}

	// Absence of a key for this subdomain means the deployment never set
	// the backend up for this realm: an operator problem, not a bad login.
	key, ok := b.keys[realm.Subdomain]
	if !ok {
		return ConfigError(ErrNoKeyForSubdomain)
	}

	token, err := jwt.Parse(creds.Token, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(key), nil
	})
	if err != nil {
		return Failure("invalid token signature")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Failure("invalid token claims")
	}

	userClaim, _ := claims["user"].(string)
	if userClaim == "" {
		return Failure(reasonNoUserClaim)
	}
	realmClaim, _ := claims["realm"].(string)
	if realmClaim == "" {
		return Failure(reasonNoRealmClaim)
	}

	// The claimed realm must identify the subdomain the request arrived
	// on, either by subdomain name or by a domain the realm owns.
	if !claimMatchesRealm(realmClaim, realm) {
		return Failure(reasonWrongSubdomain)
	}

	email := strings.ToLower(userClaim)
	if !strings.Contains(email, "@") {
		email = email + "@" + strings.ToLower(realmClaim)
	}

	// A missing user after successful signature and claim validation is
	// an ordinary failed login, not an error.
	user, err := b.store.GetUserByEmail(realm.ID, email)
	if err != nil {
		return Failure("user not found")
	}
	return Success(user)
}

func claimMatchesRealm(claim string, realm *models.Realm) bool {
	claim = strings.ToLower(claim)
	if claim == realm.Subdomain {
		return true
	}
	return realm.OwnsDomain(claim)
}
