// Producer set: the three strategies that feed DirectoryObjects to the
// worker pool. Exactly one runs per domain per Collection Task pass, chosen
// by RunContext.Stealth / RunContext.ComputerFilePath.
package collect

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/go-ldap/ldap/v3"
	"github.com/lkarlslund/adalanche-collector/internal/collectlog"
	"github.com/lkarlslund/adalanche-collector/internal/ldapobj"
	"github.com/lkarlslund/adalanche-collector/internal/ldaptransport"
)

// sidAuthorityPrefix is the SID authority stealth targets and domain
// controllers must share ("S-1-5-..."); anything else is discarded rather
// than resolved and emitted.
const sidAuthorityPrefix = "S-1-5"

// Producer streams DirectoryObjects for one domain onto out, closing neither
// the channel (the caller owns it across every domain) nor returning until
// its search is exhausted or ctx is cancelled.
type Producer interface {
	Produce(ctx context.Context, rc *RunContext, domain EnumerationDomain, client ldaptransport.Client, out chan<- *ldapobj.DirectoryObject) error
}

// SelectProducer picks the strategy RunContext's flags name.
func SelectProducer(rc *RunContext) Producer {
	switch {
	case rc.ComputerFilePath != "":
		return &ComputerFileProducer{Path: rc.ComputerFilePath}
	case rc.Stealth:
		return &StealthProducer{}
	default:
		return &LDAPProducer{}
	}
}

func effectiveFilter(rc *RunContext) string {
	base := rc.LdapFilter
	if base == "" {
		base = "(objectClass=*)"
	}
	switch {
	case rc.DCOnly:
		return fmt.Sprintf("(&%s(userAccountControl:1.2.840.113556.1.4.803:=8192))", base)
	case rc.ExcludeDomainControllers:
		return fmt.Sprintf("(&%s(!(userAccountControl:1.2.840.113556.1.4.803:=8192)))", base)
	default:
		return base
	}
}

func effectiveAttrs(rc *RunContext) []string {
	if len(rc.Attributes) > 0 {
		return rc.Attributes
	}
	return []string{"*"}
}

// LDAPProducer is the default strategy: a paged search of the domain's naming
// context, plus a second pass over CN=Configuration under the domain root so
// certificate templates and enrollment services are collected. The second
// pass runs only when SearchBase is unset; an explicit SearchBase limits the
// producer to that one search.
type LDAPProducer struct{}

func (p *LDAPProducer) Produce(ctx context.Context, rc *RunContext, domain EnumerationDomain, client ldaptransport.Client, out chan<- *ldapobj.DirectoryObject) error {
	baseDN := rc.SearchBase
	if baseDN == "" {
		baseDN = baseDNFromDomain(domain.Name)
	}
	if err := stream(ctx, client, baseDN, effectiveFilter(rc), effectiveAttrs(rc), out); err != nil {
		return fmt.Errorf("collect: ldap producer: %w", err)
	}
	if rc.SearchBase == "" {
		if err := p.produceConfigNC(ctx, rc, domain, client, out); err != nil {
			return fmt.Errorf("collect: ldap producer configuration NC: %w", err)
		}
	}
	return nil
}

// produceConfigNC searches CN=Configuration,<domain root> under the caller's
// own filter/attrs rather than always re-running "(objectClass=*)" against
// the domain NC a second time.
func (p *LDAPProducer) produceConfigNC(ctx context.Context, rc *RunContext, domain EnumerationDomain, client ldaptransport.Client, out chan<- *ldapobj.DirectoryObject) error {
	configDN := "CN=Configuration," + baseDNFromDomain(domain.Name)
	return stream(ctx, client, configDN, effectiveFilter(rc), effectiveAttrs(rc), out)
}

func stream(ctx context.Context, client ldaptransport.Client, baseDN, filter string, attrs []string, out chan<- *ldapobj.DirectoryObject) error {
	entries, errc := client.PagedSearch(ctx, baseDN, filter, attrs, 1000)
	for e := range entries {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- ldapobj.New(e):
		}
	}
	return <-errc
}

// StealthProducer avoids a full directory sweep: it collects only the
// computers actually referenced from user logon-script/home-directory/
// profile UNC paths, on the theory that a stealthy collector should touch as
// few objects as a real attacker scoping lateral movement would.
//
// The target set is resolved once per producer instance, guarded by once; a
// Collection Task constructs a fresh StealthProducer per domain so repeat
// Loop passes rebuild the set instead of reusing a stale one.
type StealthProducer struct {
	once    sync.Once
	targets []string // uppercased hostnames
	buildErr error
}

func (p *StealthProducer) buildTargets(ctx context.Context, client ldaptransport.Client, baseDN string) {
	p.once.Do(func() {
		entries, errc := client.PagedSearch(ctx, baseDN, "(&(objectClass=user)(|(homeDirectory=*)(scriptPath=*)(profilePath=*)))",
			[]string{"homeDirectory", "scriptPath", "profilePath"}, 1000)

		seen := make(map[string]bool)
		for e := range entries {
			obj := ldapobj.New(e)
			for _, attr := range []string{"homeDirectory", "scriptPath", "profilePath"} {
				host := hostFromUNC(obj, attr)
				if host == "" || seen[host] {
					continue
				}
				seen[host] = true
				p.targets = append(p.targets, host)
			}
		}
		p.buildErr = <-errc
	})
}

func hostFromUNC(obj *ldapobj.DirectoryObject, attr string) string {
	parts, ok := obj.Split(attr, `\`)
	if !ok || len(parts) < 3 || parts[0] != "" {
		return ""
	}
	return strings.ToUpper(parts[2])
}

// Produce resolves the built target set to SIDs, keeps only those in the
// S-1-5 authority (a bare host-resolution miss or a foreign-authority result
// is dropped), fetches and emits each one, then — unless
// ExcludeDomainControllers — merges in the domain's DC objects, keyed by SID
// so a host that is also a DC is never emitted twice.
func (p *StealthProducer) Produce(ctx context.Context, rc *RunContext, domain EnumerationDomain, client ldaptransport.Client, out chan<- *ldapobj.DirectoryObject) error {
	baseDN := rc.SearchBase
	if baseDN == "" {
		baseDN = baseDNFromDomain(domain.Name)
	}
	p.buildTargets(ctx, client, baseDN)
	if p.buildErr != nil {
		return fmt.Errorf("collect: stealth producer: building target set: %w", p.buildErr)
	}

	emitted := make(map[string]bool)
	for _, host := range p.targets {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		sid, err := client.ResolveHostSID(ctx, host)
		if err != nil {
			collectlog.L.Warn().Err(err).Str("host", host).Msg("stealth producer: resolving host SID failed, skipping")
			continue
		}
		if !strings.HasPrefix(sid, sidAuthorityPrefix) || emitted[sid] {
			continue
		}

		filter := fmt.Sprintf("(&(objectClass=computer)(dNSHostName=%s))", ldap.EscapeFilter(host))
		if err := stream(ctx, client, baseDN, filter, effectiveAttrs(rc), out); err != nil {
			return fmt.Errorf("collect: stealth producer: resolving %s: %w", host, err)
		}
		emitted[sid] = true
	}

	if rc.ExcludeDomainControllers {
		return nil
	}
	if err := p.mergeDomainControllers(ctx, rc, domain, baseDN, client, emitted, out); err != nil {
		return fmt.Errorf("collect: stealth producer: merging domain controllers: %w", err)
	}
	return nil
}

// mergeDomainControllers fetches the domain's DC objects and emits whichever
// ones weren't already pushed out via the host-derived target set.
func (p *StealthProducer) mergeDomainControllers(ctx context.Context, rc *RunContext, domain EnumerationDomain, baseDN string, client ldaptransport.Client, emitted map[string]bool, out chan<- *ldapobj.DirectoryObject) error {
	entries, err := client.DomainControllers(ctx, domain.Name, baseDN)
	if err != nil {
		return err
	}
	for _, e := range entries {
		obj := ldapobj.New(e)
		sid, ok := obj.TryGetSecurityIdentifier()
		if ok && emitted[sid] {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- obj:
		}
		if ok {
			emitted[sid] = true
		}
	}
	return nil
}

// ComputerFileProducer restricts collection to the newline-separated
// hostnames listed at Path, one paged search per host.
type ComputerFileProducer struct {
	Path string
}

func (p *ComputerFileProducer) Produce(ctx context.Context, rc *RunContext, domain EnumerationDomain, client ldaptransport.Client, out chan<- *ldapobj.DirectoryObject) error {
	f, err := os.Open(p.Path)
	if err != nil {
		return fmt.Errorf("collect: computer file producer: %w", err)
	}
	defer f.Close()

	baseDN := rc.SearchBase
	if baseDN == "" {
		baseDN = baseDNFromDomain(domain.Name)
	}

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		host := strings.TrimSpace(sc.Text())
		if host == "" {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		filter := fmt.Sprintf("(&(objectClass=computer)(dNSHostName=%s))", ldap.EscapeFilter(host))
		if err := stream(ctx, client, baseDN, filter, effectiveAttrs(rc), out); err != nil {
			return fmt.Errorf("collect: computer file producer: resolving %s: %w", host, err)
		}
	}
	return sc.Err()
}
