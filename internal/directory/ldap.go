// Package directory implements the LDAP directory client consumed by the
// directory authentication backend.
package directory

import (
	"context"
	"fmt"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/go-realmgate/realmgate/internal/auth"
)

// Config holds connection settings for the LDAP server.
type Config struct {
	// ServerURL is an ldap:// or ldaps:// URL.
	ServerURL string
	// SearchDN and SearchPassword are the service-account credentials
	// used for attribute lookups after a successful user bind. Leave
	// empty for anonymous search.
	SearchDN       string
	SearchPassword string
}

// LDAPClient talks to a real LDAP server. Each operation dials a fresh
// connection; the backend calls are infrequent enough that pooling is not
// worth the bookkeeping.
type LDAPClient struct {
	cfg Config
}

func NewLDAPClient(cfg Config) *LDAPClient {
	return &LDAPClient{cfg: cfg}
}

var _ auth.DirectoryClient = (*LDAPClient)(nil)

// Bind verifies the secret by binding as the distinguished name.
func (c *LDAPClient) Bind(ctx context.Context, dn, secret string) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.Bind(dn, secret); err != nil {
		return fmt.Errorf("ldap bind failed for %s: %w", dn, err)
	}
	return nil
}

// FetchAttributes reads the entry at dn with a base-scoped search using the
// service account. A missing entry maps to auth.ErrDirectoryEntryMissing so
// the backend can distinguish "gone" from "present but sparse".
func (c *LDAPClient) FetchAttributes(ctx context.Context, dn string) (map[string][]byte, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if c.cfg.SearchDN != "" {
		if err := conn.Bind(c.cfg.SearchDN, c.cfg.SearchPassword); err != nil {
			return nil, fmt.Errorf("ldap service bind failed: %w", err)
		}
	}

	req := ldap.NewSearchRequest(
		dn,
		ldap.ScopeBaseObject, ldap.NeverDerefAliases, 1, 0, false,
		"(objectClass=*)",
		nil, // all attributes
		nil,
	)
	res, err := conn.Search(req)
	if err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
			return nil, auth.ErrDirectoryEntryMissing
		}
		return nil, fmt.Errorf("ldap search failed for %s: %w", dn, err)
	}
	if len(res.Entries) == 0 {
		return nil, auth.ErrDirectoryEntryMissing
	}

	entry := res.Entries[0]
	attrs := make(map[string][]byte, len(entry.Attributes))
	for _, a := range entry.Attributes {
		if len(a.ByteValues) > 0 {
			attrs[a.Name] = a.ByteValues[0]
		}
	}
	return attrs, nil
}

func (c *LDAPClient) dial(ctx context.Context) (*ldap.Conn, error) {
	conn, err := ldap.DialURL(c.cfg.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("ldap dial %s: %w", c.cfg.ServerURL, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetTimeout(time.Until(deadline))
	}
	return conn, nil
}
