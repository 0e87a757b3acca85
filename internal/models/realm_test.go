package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRealmMethodSet(t *testing.T) {
	realm := &Realm{AuthMethods: "password, github,"}

	assert.True(t, realm.MethodEnabled("password"))
	assert.True(t, realm.MethodEnabled("github"))
	assert.False(t, realm.MethodEnabled("dev"))

	realm.SetMethods([]string{"dev"})
	assert.Equal(t, map[string]bool{"dev": true}, realm.MethodSet())
}

func TestRealmOwnsDomain(t *testing.T) {
	realm := &Realm{AllowedDomains: "Zulip.com, acme.org"}

	assert.True(t, realm.OwnsDomain("zulip.com"))
	assert.True(t, realm.OwnsDomain("ACME.ORG"))
	assert.False(t, realm.OwnsDomain("evil.com"))
	assert.False(t, (&Realm{}).OwnsDomain("zulip.com"))
}

func TestRealmEmailAllowed(t *testing.T) {
	open := &Realm{EmailRestriction: EmailRestrictionOpen}
	assert.NoError(t, open.EmailAllowed("anyone@anywhere.net"))

	scoped := &Realm{
		EmailRestriction: EmailRestrictionDomains,
		AllowedDomains:   "acme.com",
	}
	assert.NoError(t, scoped.EmailAllowed("hamlet@acme.com"))
	assert.ErrorIs(t, scoped.EmailAllowed("hamlet@other.com"), ErrEmailOutsideRealmDomains)

	strict := &Realm{EmailRestriction: EmailRestrictionNoDisposable}
	assert.NoError(t, strict.EmailAllowed("hamlet@acme.com"))
	assert.ErrorIs(t, strict.EmailAllowed("burner@mailinator.com"), ErrDisposableEmail)
}
