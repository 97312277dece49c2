// Package ldaptransport declares the LDAP client boundary: an interface
// exposing paged/streamed queries and host-SID resolution. The default
// implementation wraps go-ldap/ldap/v3; producers in internal/collect only
// ever see the interface, so tests substitute a fake and never dial a real
// directory.
package ldaptransport

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/lkarlslund/adalanche-collector/internal/ldapobj"
)

// Client is what the three producer strategies need from a directory
// connection: paged/streamed search, SID resolution for a bare hostname
// (used by the Stealth producer), and domain controller lookup.
type Client interface {
	// PagedSearch streams entries matching filter under baseDN, requesting
	// attrs, paging pageSize at a time. The entry channel is closed when the
	// search completes or ctx is cancelled; at most one error is ever sent.
	PagedSearch(ctx context.Context, baseDN, filter string, attrs []string, pageSize uint32) (<-chan *ldap.Entry, <-chan error)

	// ResolveHostSID resolves a hostname to its machine-account SID.
	ResolveHostSID(ctx context.Context, host string) (string, error)

	// DomainControllers returns the directory entries for a domain's DCs.
	DomainControllers(ctx context.Context, domain, baseDN string) ([]*ldap.Entry, error)

	// Close releases the underlying connection.
	Close() error
}

// Config mirrors the LDAP-related CLI flags.
type Config struct {
	Server            string
	Port              int
	Username          string
	Password          string
	SecureLDAP        bool
	DisableCertVerify bool
	DisableSigning    bool
	SkipPortCheck     bool
	PortCheckTimeout  time.Duration
	DialTimeout       time.Duration
}

type conn struct {
	cfg Config
	c   *ldap.Conn
}

// Dial connects and binds using cfg, optionally probing port reachability
// first.
func Dial(cfg Config) (Client, error) {
	if !cfg.SkipPortCheck {
		if err := probePort(cfg.Server, cfg.Port, cfg.PortCheckTimeout); err != nil {
			return nil, fmt.Errorf("ldaptransport: port check failed: %w", err)
		}
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server, cfg.Port)
	var c *ldap.Conn
	var err error
	if cfg.SecureLDAP {
		tlsConf := &tls.Config{InsecureSkipVerify: cfg.DisableCertVerify} //nolint:gosec // operator opt-in via --ignorecert-style flag
		c, err = ldap.DialTLS("tcp", addr, tlsConf)
	} else {
		c, err = ldap.Dial("tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("ldaptransport: dial %s: %w", addr, err)
	}
	if cfg.DialTimeout > 0 {
		c.SetTimeout(cfg.DialTimeout)
	}
	if cfg.Username != "" {
		if err := c.Bind(cfg.Username, cfg.Password); err != nil {
			c.Close()
			return nil, fmt.Errorf("ldaptransport: bind as %s: %w", cfg.Username, err)
		}
	}
	return &conn{cfg: cfg, c: c}, nil
}

func (cn *conn) Close() error { return cn.c.Close() }

func (cn *conn) PagedSearch(ctx context.Context, baseDN, filter string, attrs []string, pageSize uint32) (<-chan *ldap.Entry, <-chan error) {
	out := make(chan *ldap.Entry)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)

		req := ldap.NewSearchRequest(baseDN, ldap.ScopeWholeSubtree, ldap.NeverDerefAliases,
			0, 0, false, filter, attrs, nil)

		results, err := cn.c.SearchWithPaging(req, pageSize)
		if err != nil {
			errc <- fmt.Errorf("ldaptransport: paged search %s: %w", baseDN, err)
			return
		}
		for _, e := range results.Entries {
			select {
			case <-ctx.Done():
				return
			case out <- e:
			}
		}
	}()

	return out, errc
}

func (cn *conn) ResolveHostSID(ctx context.Context, host string) (string, error) {
	filter := fmt.Sprintf("(&(objectClass=computer)(dNSHostName=%s))", ldap.EscapeFilter(host))
	req := ldap.NewSearchRequest("", ldap.ScopeWholeSubtree, ldap.NeverDerefAliases,
		1, 0, false, filter, []string{"objectSid"}, nil)
	res, err := cn.c.Search(req)
	if err != nil {
		return "", fmt.Errorf("ldaptransport: resolve host %s: %w", host, err)
	}
	if len(res.Entries) == 0 {
		return "", fmt.Errorf("ldaptransport: host %s not found", host)
	}
	raw := res.Entries[0].GetRawAttributeValue("objectSid")
	sid, err := ldapobj.DecodeSID(raw)
	if err != nil {
		return "", err
	}
	return sid, nil
}

func (cn *conn) DomainControllers(ctx context.Context, domain, baseDN string) ([]*ldap.Entry, error) {
	filter := "(&(objectCategory=computer)(userAccountControl:1.2.840.113556.1.4.803:=8192))"
	req := ldap.NewSearchRequest(baseDN, ldap.ScopeWholeSubtree, ldap.NeverDerefAliases,
		0, 0, false, filter, []string{"objectSid", "dNSHostName", "distinguishedName"}, nil)
	res, err := cn.c.Search(req)
	if err != nil {
		return nil, fmt.Errorf("ldaptransport: domain controllers for %s: %w", domain, err)
	}
	return res.Entries, nil
}
