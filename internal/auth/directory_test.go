package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-realmgate/realmgate/internal/core"
	"github.com/go-realmgate/realmgate/internal/metrics"
	"github.com/go-realmgate/realmgate/internal/models"
	"github.com/go-realmgate/realmgate/internal/store"
)

// pngBytes carries a valid PNG signature so content sniffing accepts it.
var pngBytes = []byte("\x89PNG\r\n\x1a\nfakeimagedata")

// fakeDirectory is an in-memory DirectoryClient keyed by distinguished name.
type fakeDirectory struct {
	passwords map[string]string            // dn -> password
	entries   map[string]map[string][]byte // dn -> attributes
	bindCalls int
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		passwords: make(map[string]string),
		entries:   make(map[string]map[string][]byte),
	}
}

func (f *fakeDirectory) Bind(ctx context.Context, dn, secret string) error {
	f.bindCalls++
	if pw, ok := f.passwords[dn]; ok && pw == secret {
		return nil
	}
	return errors.New("invalid credentials")
}

func (f *fakeDirectory) FetchAttributes(ctx context.Context, dn string) (map[string][]byte, error) {
	entry, ok := f.entries[dn]
	if !ok {
		return nil, ErrDirectoryEntryMissing
	}
	return entry, nil
}

// fakeAvatarStore counts uploads.
type fakeAvatarStore struct {
	uploads int
	fail    bool
}

func (f *fakeAvatarStore) Upload(ctx context.Context, userID string, image []byte) (string, error) {
	if f.fail {
		return "", errors.New("storage down")
	}
	f.uploads++
	return "/avatars/" + userID, nil
}

const testDNTemplate = "uid=%s,ou=users,dc=acme,dc=com"

func directoryTestSetup(t *testing.T, cfg DirectoryConfig) (*store.Store, *fakeDirectory, *fakeAvatarStore, *DirectoryBackend) {
	s := setupTestStore(t)
	dir := newFakeDirectory()
	avatars := &fakeAvatarStore{}
	if cfg.UserDNTemplate == "" {
		cfg.UserDNTemplate = testDNTemplate
	}
	b := NewDirectoryBackend(s, dir, cfg, avatars, metrics.NewNoopMetrics())
	return s, dir, avatars, b
}

func TestDirectoryBackend_BindFailureIsTerminal(t *testing.T) {
	s, dir, _, b := directoryTestSetup(t, DirectoryConfig{
		AppendDomain: "acme.com",
		AttributeMap: map[string]string{"full_name": "cn"},
	})
	realm := createTestRealm(t, s, "acme", core.BackendDirectory)

	dir.passwords["uid=hamlet,ou=users,dc=acme,dc=com"] = "right"

	result := b.Authenticate(context.Background(), Credentials{
		Username: "hamlet",
		Password: "wrong",
	}, realm)
	assert.False(t, result.Ok())
	assert.Equal(t, 1, dir.bindCalls, "a failed bind is never retried")
}

func TestDirectoryBackend_JITProvisioning(t *testing.T) {
	s, dir, _, b := directoryTestSetup(t, DirectoryConfig{
		AppendDomain: "acme.com",
		AttributeMap: map[string]string{"full_name": "cn"},
	})
	realm := &models.Realm{
		Subdomain:        "acme",
		Name:             "Acme",
		Active:           true,
		EmailRestriction: models.EmailRestrictionDomains,
		AllowedDomains:   "acme.com",
	}
	realm.SetMethods([]string{core.BackendDirectory})
	require.NoError(t, s.CreateRealm(realm))

	dn := "uid=hamlet,ou=users,dc=acme,dc=com"
	dir.passwords[dn] = "castle hill"
	dir.entries[dn] = map[string][]byte{"cn": []byte("Prince Hamlet")}

	result := b.Authenticate(context.Background(), Credentials{
		Username: "hamlet",
		Password: "castle hill",
	}, realm)
	require.True(t, result.Ok())
	assert.Equal(t, "hamlet@acme.com", result.User.Email)
	assert.Equal(t, "Prince Hamlet", result.User.FullName)
	assert.Equal(t, core.BackendDirectory, result.User.AuthSource)

	// Second login reuses the account.
	result = b.Authenticate(context.Background(), Credentials{
		Username: "hamlet",
		Password: "castle hill",
	}, realm)
	require.True(t, result.Ok())

	count, err := s.CountUsers(realm.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestDirectoryBackend_AppendDomainRejectsOutsideAddress(t *testing.T) {
	s, _, _, b := directoryTestSetup(t, DirectoryConfig{
		AppendDomain: "acme.com",
		AttributeMap: map[string]string{"full_name": "cn"},
	})
	realm := createTestRealm(t, s, "acme", core.BackendDirectory)

	result := b.Authenticate(context.Background(), Credentials{
		Username: "hamlet@elsewhere.net",
		Password: "anything",
	}, realm)
	require.NotNil(t, result.Err)
	assert.ErrorIs(t, result.Err, ErrOutsideAppendDomain)
}

func TestDirectoryBackend_MissingNameMappingIsConfigError(t *testing.T) {
	s, dir, _, b := directoryTestSetup(t, DirectoryConfig{
		AppendDomain: "acme.com",
		AttributeMap: map[string]string{}, // no full_name mapping
	})
	realm := &models.Realm{
		Subdomain:        "acme",
		Name:             "Acme",
		Active:           true,
		EmailRestriction: models.EmailRestrictionDomains,
		AllowedDomains:   "acme.com",
	}
	realm.SetMethods([]string{core.BackendDirectory})
	require.NoError(t, s.CreateRealm(realm))

	dn := "uid=hamlet,ou=users,dc=acme,dc=com"
	dir.passwords[dn] = "pw"
	dir.entries[dn] = map[string][]byte{"cn": []byte("Prince Hamlet")}

	result := b.Authenticate(context.Background(), Credentials{
		Username: "hamlet",
		Password: "pw",
	}, realm)
	require.NotNil(t, result.Err)
	assert.ErrorIs(t, result.Err, ErrMissingNameMapping)
}

func TestDirectoryBackend_CrossRealmRebinding(t *testing.T) {
	s, dir, _, b := directoryTestSetup(t, DirectoryConfig{
		AppendDomain: "beta.org",
		AttributeMap: map[string]string{"full_name": "cn"},
	})

	// Login arrives on alpha's subdomain, but beta owns the email domain.
	alpha := createTestRealm(t, s, "alpha", core.BackendDirectory)
	beta := &models.Realm{
		Subdomain:        "beta",
		Name:             "Beta",
		Active:           true,
		EmailRestriction: models.EmailRestrictionDomains,
		AllowedDomains:   "beta.org",
	}
	beta.SetMethods([]string{core.BackendDirectory})
	require.NoError(t, s.CreateRealm(beta))

	dn := "uid=hamlet,ou=users,dc=acme,dc=com"
	dir.passwords[dn] = "pw"
	dir.entries[dn] = map[string][]byte{"cn": []byte("Prince Hamlet")}

	result := b.Authenticate(context.Background(), Credentials{
		Username: "hamlet",
		Password: "pw",
	}, alpha)
	require.True(t, result.Ok())
	assert.Equal(t, beta.ID, result.User.RealmID, "login rebinds to the domain-owning realm")
}

func TestDirectorySync_AvatarFingerprintDedupe(t *testing.T) {
	s, dir, avatars, b := directoryTestSetup(t, DirectoryConfig{
		AttributeMap: map[string]string{
			"full_name": "cn",
			"avatar":    "jpegPhoto",
		},
	})
	realm := createTestRealm(t, s, "acme", core.BackendDirectory)
	user := createTestUser(t, s, realm, "hamlet@acme.com")

	dn := "uid=hamlet,ou=users,dc=acme,dc=com"
	dir.entries[dn] = map[string][]byte{
		"cn":        []byte("Prince Hamlet"),
		"jpegPhoto": pngBytes,
	}

	require.NoError(t, b.SyncUser(context.Background(), user))
	assert.Equal(t, 1, avatars.uploads)

	// Unchanged image: fingerprint matches, no second upload.
	synced, err := s.GetUserByID(user.ID)
	require.NoError(t, err)
	require.NoError(t, b.SyncUser(context.Background(), synced))
	assert.Equal(t, 1, avatars.uploads)

	// Changed image re-uploads.
	dir.entries[dn]["jpegPhoto"] = append([]byte{}, pngBytes...)
	dir.entries[dn]["jpegPhoto"] = append(dir.entries[dn]["jpegPhoto"], 'x')
	synced, err = s.GetUserByID(user.ID)
	require.NoError(t, err)
	require.NoError(t, b.SyncUser(context.Background(), synced))
	assert.Equal(t, 2, avatars.uploads)
}

func TestDirectorySync_AvatarUploadFailureIsNotFatal(t *testing.T) {
	s, dir, avatars, b := directoryTestSetup(t, DirectoryConfig{
		AttributeMap: map[string]string{
			"full_name": "cn",
			"avatar":    "jpegPhoto",
		},
	})
	avatars.fail = true
	realm := createTestRealm(t, s, "acme", core.BackendDirectory)
	user := createTestUser(t, s, realm, "hamlet@acme.com")

	dn := "uid=hamlet,ou=users,dc=acme,dc=com"
	dir.entries[dn] = map[string][]byte{
		"cn":        []byte("New Name"),
		"jpegPhoto": pngBytes,
	}

	require.NoError(t, b.SyncUser(context.Background(), user))

	got, err := s.GetUserByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "New Name", got.FullName, "name sync proceeds despite avatar failure")
	assert.Empty(t, got.AvatarFingerprint, "failed upload must not record a fingerprint")
}

func TestDirectorySync_AbsentAttributesLeaveFieldsUntouched(t *testing.T) {
	s, dir, _, b := directoryTestSetup(t, DirectoryConfig{
		AttributeMap: map[string]string{
			"full_name": "cn",
			"avatar":    "jpegPhoto",
		},
	})
	realm := createTestRealm(t, s, "acme", core.BackendDirectory)
	user := createTestUser(t, s, realm, "hamlet@acme.com")
	require.NoError(t, s.SetUserFields(user.ID, map[string]any{"full_name": "Existing Name"}))

	dn := "uid=hamlet,ou=users,dc=acme,dc=com"
	dir.entries[dn] = map[string][]byte{} // entry exists, attributes absent

	fresh, err := s.GetUserByID(user.ID)
	require.NoError(t, err)
	require.NoError(t, b.SyncUser(context.Background(), fresh))

	got, err := s.GetUserByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Existing Name", got.FullName)
	assert.True(t, got.Active)
}

func TestDirectorySync_DeactivateAbsentPolicy(t *testing.T) {
	s, _, _, b := directoryTestSetup(t, DirectoryConfig{
		AttributeMap:     map[string]string{"full_name": "cn"},
		DeactivateAbsent: true,
	})
	realm := createTestRealm(t, s, "acme", core.BackendDirectory)
	user := createTestUser(t, s, realm, "gone@acme.com")

	require.NoError(t, b.SyncUser(context.Background(), user))

	got, err := s.GetUserByID(user.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
}

func TestDirectorySync_AbsentEntryWithoutPolicyIsNoop(t *testing.T) {
	s, _, _, b := directoryTestSetup(t, DirectoryConfig{
		AttributeMap: map[string]string{"full_name": "cn"},
	})
	realm := createTestRealm(t, s, "acme", core.BackendDirectory)
	user := createTestUser(t, s, realm, "gone@acme.com")

	require.NoError(t, b.SyncUser(context.Background(), user))

	got, err := s.GetUserByID(user.ID)
	require.NoError(t, err)
	assert.True(t, got.Active)
}

func TestDirectorySync_ControlAttributeDrivesActivation(t *testing.T) {
	s, dir, _, b := directoryTestSetup(t, DirectoryConfig{
		AttributeMap:     map[string]string{"full_name": "cn"},
		ControlAttribute: "userAccountControl",
	})
	realm := createTestRealm(t, s, "acme", core.BackendDirectory)
	user := createTestUser(t, s, realm, "hamlet@acme.com")

	dn := "uid=hamlet,ou=users,dc=acme,dc=com"
	dir.entries[dn] = map[string][]byte{"userAccountControl": []byte("514")} // 0x200|0x2

	require.NoError(t, b.SyncUser(context.Background(), user))
	got, err := s.GetUserByID(user.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	dir.entries[dn]["userAccountControl"] = []byte("512")
	require.NoError(t, b.SyncUser(context.Background(), got))
	got, err = s.GetUserByID(user.ID)
	require.NoError(t, err)
	assert.True(t, got.Active, "clearing the disabled bit reactivates")
}

func TestDirectorySync_CustomProfileFields(t *testing.T) {
	s, dir, _, b := directoryTestSetup(t, DirectoryConfig{
		AttributeMap: map[string]string{
			"full_name":                      "cn",
			"custom_profile_field__birthday": "birthDate",
		},
	})
	realm := createTestRealm(t, s, "acme", core.BackendDirectory)
	user := createTestUser(t, s, realm, "hamlet@acme.com")

	field := &models.CustomProfileField{
		RealmID:   realm.ID,
		Name:      "birthday",
		FieldType: models.FieldTypeDate,
	}
	require.NoError(t, s.CreateProfileField(field))

	dn := "uid=hamlet,ou=users,dc=acme,dc=com"
	dir.entries[dn] = map[string][]byte{"birthDate": []byte("1600-02-02")}

	require.NoError(t, b.SyncUser(context.Background(), user))

	val, err := s.GetProfileValue(user.ID, field.ID)
	require.NoError(t, err)
	assert.Equal(t, "1600-02-02", val.Value)
}

func TestDirectorySync_UnknownCustomFieldIsConfigError(t *testing.T) {
	s, dir, _, b := directoryTestSetup(t, DirectoryConfig{
		AttributeMap: map[string]string{
			"custom_profile_field__missing": "whatever",
		},
	})
	realm := createTestRealm(t, s, "acme", core.BackendDirectory)
	user := createTestUser(t, s, realm, "hamlet@acme.com")

	dn := "uid=hamlet,ou=users,dc=acme,dc=com"
	dir.entries[dn] = map[string][]byte{"whatever": []byte("x")}

	err := b.SyncUser(context.Background(), user)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownCustomField)
}

func TestDirectorySync_MalformedDateIsFatal(t *testing.T) {
	s, dir, _, b := directoryTestSetup(t, DirectoryConfig{
		AttributeMap: map[string]string{
			"custom_profile_field__birthday": "birthDate",
		},
	})
	realm := createTestRealm(t, s, "acme", core.BackendDirectory)
	user := createTestUser(t, s, realm, "hamlet@acme.com")

	require.NoError(t, s.CreateProfileField(&models.CustomProfileField{
		RealmID:   realm.ID,
		Name:      "birthday",
		FieldType: models.FieldTypeDate,
	}))

	dn := "uid=hamlet,ou=users,dc=acme,dc=com"
	dir.entries[dn] = map[string][]byte{"birthDate": []byte("not-a-date")}

	err := b.SyncUser(context.Background(), user)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDataValidation)
}

func TestDirectoryBackend_EmailAttributeMode(t *testing.T) {
	s, dir, _, b := directoryTestSetup(t, DirectoryConfig{
		EmailAttribute: "mail",
		AttributeMap:   map[string]string{"full_name": "cn"},
	})
	realm := &models.Realm{
		Subdomain:        "acme",
		Name:             "Acme",
		Active:           true,
		EmailRestriction: models.EmailRestrictionDomains,
		AllowedDomains:   "acme.com",
	}
	realm.SetMethods([]string{core.BackendDirectory})
	require.NoError(t, s.CreateRealm(realm))

	dn := "uid=hamlet,ou=users,dc=acme,dc=com"
	dir.passwords[dn] = "pw"
	dir.entries[dn] = map[string][]byte{
		"cn":   []byte("Prince Hamlet"),
		"mail": []byte("Prince.Hamlet@Acme.com"),
	}

	result := b.Authenticate(context.Background(), Credentials{
		Username: "hamlet",
		Password: "pw",
	}, realm)
	require.True(t, result.Ok())
	assert.Equal(t, "prince.hamlet@acme.com", result.User.Email)
}

func TestDirectoryBackend_UnconfiguredWithoutClient(t *testing.T) {
	s := setupTestStore(t)
	b := NewDirectoryBackend(s, nil, DirectoryConfig{UserDNTemplate: testDNTemplate}, nil, metrics.NewNoopMetrics())
	assert.False(t, b.Configured())
}
