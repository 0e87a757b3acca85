package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-realmgate/realmgate/internal/core"
	"github.com/go-realmgate/realmgate/internal/models"
	"github.com/go-realmgate/realmgate/internal/store"
	"github.com/go-realmgate/realmgate/internal/util"
)

// Attribute-map keys with reserved meaning. Everything else must use the
// custom_profile_field__<name> namespace.
const (
	attrFullName = "full_name"
	attrAvatar   = "avatar"

	customFieldPrefix = "custom_profile_field__"
)

// accountDisabledBit is the ACCOUNTDISABLE flag in userAccountControl-style
// directory attributes.
const accountDisabledBit = 0x2

// ErrDirectoryEntryMissing is returned by DirectoryClient.FetchAttributes
// when the distinguished name has no entry at all (as opposed to an entry
// with missing attributes).
var ErrDirectoryEntryMissing = errors.New("directory entry not found")

// DirectoryClient is the directory-lookup capability this backend consumes.
// Wire-protocol internals (LDAP etc.) live behind it.
type DirectoryClient interface {
	// Bind verifies a secret for the distinguished name.
	Bind(ctx context.Context, dn, secret string) error
	// FetchAttributes returns the entry's attributes, or
	// ErrDirectoryEntryMissing when there is no such entry.
	FetchAttributes(ctx context.Context, dn string) (map[string][]byte, error)
}

// AvatarUploader is the storage capability for synced avatar images.
type AvatarUploader interface {
	Upload(ctx context.Context, userID string, image []byte) (sourceURL string, err error)
}

// DirectoryConfig is the declarative configuration for the directory
// backend. AppendDomain and EmailAttribute are mutually exclusive bind
// modes; config validation rejects setting both.
type DirectoryConfig struct {
	// UserDNTemplate formats the bind identifier into a distinguished
	// name, e.g. "uid=%s,ou=users,dc=example,dc=com".
	UserDNTemplate string
	// AppendDomain turns bare usernames into emails and constrains which
	// email domains may log in through this backend.
	AppendDomain string
	// EmailAttribute names the directory attribute holding the email.
	EmailAttribute string
	// AttributeMap maps local profile-field keys to directory attribute
	// names.
	AttributeMap map[string]string
	// ControlAttribute names a userAccountControl-style attribute driving
	// the local activation flag.
	ControlAttribute string
	// DeactivateAbsent deactivates local users whose directory entry has
	// disappeared entirely.
	DeactivateAbsent bool
}

// DirectoryBackend resolves a username to a directory entry via a
// configurable bind strategy, validates the bound credential, and maps
// directory attributes onto the local profile. Sync is safe to invoke
// concurrently for different users; callers must not overlap syncs of the
// same user (last writer wins).
type DirectoryBackend struct {
	store   *store.Store
	client  DirectoryClient
	cfg     DirectoryConfig
	avatars AvatarUploader
	metrics core.Recorder
}

func NewDirectoryBackend(
	s *store.Store,
	client DirectoryClient,
	cfg DirectoryConfig,
	avatars AvatarUploader,
	recorder core.Recorder,
) *DirectoryBackend {
	return &DirectoryBackend{
		store:   s,
		client:  client,
		cfg:     cfg,
		avatars: avatars,
		metrics: recorder,
	}
}

func (b *DirectoryBackend) Name() string      { return core.BackendDirectory }
func (b *DirectoryBackend) Configured() bool  { return b.client != nil && b.cfg.UserDNTemplate != "" }
func (b *DirectoryBackend) AllowsAutoSignup() bool { return true }

// RealmBound is false: the realm passed to Authenticate is a hint, and
// domain-to-realm mapping may rebind a directory login to the realm that
// owns the resolved email's domain.
func (b *DirectoryBackend) RealmBound() bool { return false }

// Authenticate runs the Bind -> Verify -> Resolve -> Sync state machine.
func (b *DirectoryBackend) Authenticate(
	ctx context.Context,
	creds Credentials,
	realm *models.Realm,
) *Result {
	username := strings.ToLower(strings.TrimSpace(creds.Username))
	if username == "" || creds.Password == "" {
		return Failure("empty credential")
	}

	// Bind: construct the distinguished name from the identifier.
	uid, loginEmail, result := b.bindIdentifier(username)
	if result != nil {
		return result
	}
	dn := fmt.Sprintf(b.cfg.UserDNTemplate, uid)

	// Verify: a failed directory bind is terminal, never retried.
	if err := b.client.Bind(ctx, dn, creds.Password); err != nil {
		return Failure("directory bind failed")
	}

	attrs, err := b.client.FetchAttributes(ctx, dn)
	if err != nil {
		return Failure("directory attribute fetch failed")
	}

	// Resolve: map the directory's email attribute, or the bind-derived
	// email, to a local user.
	email := loginEmail
	if b.cfg.EmailAttribute != "" {
		raw, ok := attrs[b.cfg.EmailAttribute]
		if !ok || len(raw) == 0 {
			return Failure("directory entry has no email attribute")
		}
		email = strings.ToLower(string(raw))
	}
	if email == "" {
		return Failure("no email resolvable from directory login")
	}

	target := b.resolveRealm(email, realm)
	if target == nil {
		return Failure("no realm for directory login")
	}

	user, err := b.store.GetUserByEmail(target.ID, email)
	if errors.Is(err, store.ErrNotFound) {
		user, err = b.provision(email, target, attrs)
		if err != nil {
			if IsConfigError(err) {
				return ConfigError(err)
			}
			return Failure("provisioning failed")
		}
	} else if err != nil {
		return Failure("user lookup failed")
	}

	// Sync: configuration and fatal data errors surface to operators;
	// they are not swallowed into a generic failure.
	if err := b.syncFromAttributes(ctx, user, attrs); err != nil {
		if IsConfigError(err) || errors.Is(err, ErrDataValidation) {
			return ConfigError(err)
		}
		return Failure("attribute sync failed")
	}

	user, err = b.store.GetUserByID(user.ID)
	if err != nil {
		return Failure("user reload failed")
	}
	return Success(user)
}

// bindIdentifier applies the bind strategy to the supplied identifier,
// returning the directory uid and, in append-domain mode, the implied email.
func (b *DirectoryBackend) bindIdentifier(username string) (uid, email string, res *Result) {
	if b.cfg.AppendDomain != "" {
		if at := strings.LastIndex(username, "@"); at >= 0 {
			domain := username[at+1:]
			if domain != strings.ToLower(b.cfg.AppendDomain) {
				// A fixed append-domain deployment receiving an outside
				// address is misconfigured routing, not a bad password.
				return "", "", ConfigError(ErrOutsideAppendDomain)
			}
			username = username[:at]
		}
		return username, username + "@" + strings.ToLower(b.cfg.AppendDomain), nil
	}
	if b.cfg.EmailAttribute != "" {
		// Email comes from the directory entry after bind.
		if at := strings.LastIndex(username, "@"); at >= 0 {
			return username[:at], "", nil
		}
		return username, "", nil
	}
	// Neither mode configured: the identifier must already be an email.
	if !strings.Contains(username, "@") {
		return "", "", Failure("identifier is not an email address")
	}
	return username[:strings.LastIndex(username, "@")], username, nil
}

// resolveRealm prefers the realm that owns the email's domain over the
// login-context hint.
func (b *DirectoryBackend) resolveRealm(email string, hint *models.Realm) *models.Realm {
	domain := util.EmailDomain(email)
	if owner, err := b.store.GetRealmByEmailDomain(domain); err == nil {
		return owner
	}
	return hint
}

// provision just-in-time creates a local account from the attribute map.
// An unmapped full-name field is a configuration error.
func (b *DirectoryBackend) provision(
	email string,
	realm *models.Realm,
	attrs map[string][]byte,
) (*models.User, error) {
	nameAttr, ok := b.cfg.AttributeMap[attrFullName]
	if !ok {
		return nil, ErrMissingNameMapping
	}
	fullName := strings.TrimSpace(string(attrs[nameAttr]))
	if fullName == "" {
		return nil, fmt.Errorf("%w: directory entry has empty name attribute %q",
			ErrDataValidation, nameAttr)
	}

	user := &models.User{
		ID:         newUserID(),
		RealmID:    realm.ID,
		Email:      email,
		FullName:   fullName,
		Active:     true,
		AuthSource: core.BackendDirectory,
	}
	if err := b.store.CreateUser(user); err != nil {
		return nil, err
	}
	log.Printf("[Directory] Provisioned user %s in realm %s", email, realm.Subdomain)
	user.Realm = *realm
	return user, nil
}

// SyncUser applies the attribute map to one user outside an interactive
// login; the periodic sync driver calls this for every directory-backed
// user. An entirely absent directory entry deactivates the user only under
// the DeactivateAbsent policy.
func (b *DirectoryBackend) SyncUser(ctx context.Context, user *models.User) error {
	uid := user.Email
	if at := strings.LastIndex(uid, "@"); at >= 0 {
		uid = uid[:at]
	}
	dn := fmt.Sprintf(b.cfg.UserDNTemplate, uid)

	attrs, err := b.client.FetchAttributes(ctx, dn)
	if errors.Is(err, ErrDirectoryEntryMissing) {
		if b.cfg.DeactivateAbsent {
			log.Printf("[Directory] User %s absent from directory, deactivating", user.Email)
			b.metrics.RecordDirectorySync("deactivated_absent")
			return b.store.SetUserActive(user.ID, false)
		}
		b.metrics.RecordDirectorySync("entry_missing")
		return nil
	}
	if err != nil {
		b.metrics.RecordDirectorySync("fetch_error")
		return err
	}

	if err := b.syncFromAttributes(ctx, user, attrs); err != nil {
		b.metrics.RecordDirectorySync("error")
		return err
	}
	b.metrics.RecordDirectorySync("ok")
	return nil
}

// syncFromAttributes applies each declared mapping entry. A directory
// attribute that is absent leaves the local field untouched; only the
// control attribute and the DeactivateAbsent policy may deactivate.
func (b *DirectoryBackend) syncFromAttributes(
	ctx context.Context,
	user *models.User,
	attrs map[string][]byte,
) error {
	updates := make(map[string]any)

	for field, attrName := range b.cfg.AttributeMap {
		raw, present := attrs[attrName]
		if !present {
			continue
		}

		switch {
		case field == attrFullName:
			name := strings.TrimSpace(string(raw))
			if name != "" && name != user.FullName {
				updates["full_name"] = name
			}

		case field == attrAvatar:
			if err := b.syncAvatar(ctx, user, raw, updates); err != nil {
				return err
			}

		case strings.HasPrefix(field, customFieldPrefix):
			if err := b.syncCustomField(user, field, raw); err != nil {
				return err
			}

		default:
			// Unknown plain keys indicate a typo in the map.
			return fmt.Errorf("%w: unsupported attribute-map key %q",
				ErrConfiguration, field)
		}
	}

	if b.cfg.ControlAttribute != "" {
		if raw, present := attrs[b.cfg.ControlAttribute]; present {
			control, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
			if err != nil {
				return fmt.Errorf("%w: control attribute %q is not numeric",
					ErrDataValidation, b.cfg.ControlAttribute)
			}
			disabled := control&accountDisabledBit != 0
			if user.Active == disabled {
				updates["active"] = !disabled
			}
		}
	}

	if len(updates) == 0 {
		return nil
	}
	return b.store.SetUserFields(user.ID, updates)
}

// syncAvatar uploads the image only when its fingerprint differs from the
// last synced one. Malformed image data is logged and skipped, not fatal.
func (b *DirectoryBackend) syncAvatar(
	ctx context.Context,
	user *models.User,
	image []byte,
	updates map[string]any,
) error {
	if len(image) == 0 {
		return nil
	}
	if !strings.HasPrefix(http.DetectContentType(image), "image/") {
		log.Printf("[Directory] Skipping malformed avatar data for %s", user.Email)
		return nil
	}
	fingerprint := util.SHA256Hex(image)
	if fingerprint == user.AvatarFingerprint {
		return nil
	}
	if b.avatars == nil {
		return nil
	}
	url, err := b.avatars.Upload(ctx, user.ID, image)
	if err != nil {
		// Storage trouble should not abort the rest of the sync pass.
		log.Printf("[Directory] Avatar upload failed for %s: %v", user.Email, err)
		return nil
	}
	b.metrics.RecordAvatarUpload()
	user.AvatarFingerprint = fingerprint
	updates["avatar_fingerprint"] = fingerprint
	updates["avatar_source_url"] = url
	return nil
}

// syncCustomField validates and writes one custom profile field value. A
// referenced field that does not exist on the realm is a configuration
// error; a malformed value is fatal for the sync pass.
func (b *DirectoryBackend) syncCustomField(
	user *models.User,
	field string,
	raw []byte,
) error {
	name := strings.TrimPrefix(field, customFieldPrefix)
	def, err := b.store.GetProfileField(user.RealmID, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %q", ErrUnknownCustomField, name)
		}
		return err
	}

	value := strings.TrimSpace(string(raw))
	if def.FieldType == models.FieldTypeDate {
		if _, err := time.Parse("2006-01-02", value); err != nil {
			return fmt.Errorf("%w: field %q: %q is not a valid date",
				ErrDataValidation, name, value)
		}
	}
	return b.store.SetProfileValue(user.ID, def.ID, value)
}
