// Domain discovery: produces the target domain list from the
// Single/SearchForest/RecurseDomains mode flags.
package collect

import (
	"context"
	"fmt"
	"strings"

	"github.com/lkarlslund/adalanche-collector/internal/collectlog"
	"github.com/lkarlslund/adalanche-collector/internal/ldapobj"
)

const (
	trustDirectionOutbound      = 2
	trustDirectionBidirectional = 3
)

// baseDNFromDomain renders "CORP.local" as "DC=corp,DC=local", independent of
// the caller's casing convention: EnumerationDomain.Name is always
// upper-cased, but a distinguished name's DC components are conventionally
// lower-case.
func baseDNFromDomain(domain string) string {
	parts := strings.Split(strings.ToLower(domain), ".")
	for i, p := range parts {
		parts[i] = "DC=" + p
	}
	return strings.Join(parts, ",")
}

func resolveDomainSID(ctx context.Context, rc *RunContext, name string) (EnumerationDomain, error) {
	ed := EnumerationDomain{Name: strings.ToUpper(name), DomainSid: "UNKNOWN"}

	client, err := rc.LDAPDialer(ed)
	if err != nil {
		return ed, fmt.Errorf("collect: dial %s: %w", name, err)
	}
	defer client.Close()

	entries, errc := client.PagedSearch(ctx, baseDNFromDomain(name), "(objectClass=domainDNS)", []string{"objectSid"}, 1)
	for e := range entries {
		obj := ldapobj.New(e)
		if sid, ok := obj.TryGetSecurityIdentifier(); ok && ed.DomainSid == "UNKNOWN" {
			ed.DomainSid = strings.ToUpper(sid)
		}
	}
	if err := <-errc; err != nil {
		return ed, err
	}
	return ed, nil
}

// GetDomainsForEnumeration chooses Single/SearchForest/RecurseDomains by the
// RunContext flags and populates rc.Domains, faulting the run if the initial
// domain cannot be resolved.
func GetDomainsForEnumeration(rc *RunContext) {
	ctx := rc.Context()

	initial, err := resolveDomainSID(ctx, rc, rc.DomainName)
	if err != nil {
		rc.Fault(fmt.Sprintf("domain discovery: cannot resolve initial domain %s: %v", rc.DomainName, err))
		return
	}

	switch {
	case rc.RecurseDomains:
		rc.Domains = recurseDomains(ctx, rc, initial)
	case rc.SearchForest:
		domains, err := forestDomains(ctx, rc, initial)
		if err != nil {
			rc.Fault(fmt.Sprintf("domain discovery: forest enumeration failed: %v", err))
			return
		}
		rc.Domains = domains
	default:
		rc.Domains = []EnumerationDomain{initial}
	}

	collectlog.L.Info().Int("count", len(rc.Domains)).Msg("domain discovery complete")
}

// recurseDomains performs a BFS over outbound/bidirectional trusts: dedupe by
// SID, preserve first-occurrence order, the initial domain always first.
func recurseDomains(ctx context.Context, rc *RunContext, initial EnumerationDomain) []EnumerationDomain {
	seen := map[string]bool{initial.DomainSid: true}
	result := []EnumerationDomain{initial}
	queue := []EnumerationDomain{initial}

	for len(queue) > 0 {
		if rc.Cancelled() {
			break
		}
		current := queue[0]
		queue = queue[1:]

		trusts, err := trustedDomainsOf(ctx, rc, current)
		if err != nil {
			collectlog.L.Warn().Err(err).Str("domain", current.Name).Msg("domain discovery: trust enumeration failed, continuing BFS")
			continue
		}

		for _, t := range trusts {
			if seen[t.DomainSid] {
				continue
			}
			seen[t.DomainSid] = true
			result = append(result, t)
			queue = append(queue, t)
		}
	}
	return result
}

// trustedDomainsOf queries one domain's trustedDomain objects and returns
// those reachable via an outbound or bidirectional trust.
func trustedDomainsOf(ctx context.Context, rc *RunContext, d EnumerationDomain) ([]EnumerationDomain, error) {
	client, err := rc.LDAPDialer(d)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	entries, errc := client.PagedSearch(ctx, baseDNFromDomain(d.Name),
		"(objectClass=trustedDomain)", []string{"trustPartner", "trustDirection", "securityIdentifier"}, 1000)

	var out []EnumerationDomain
	for e := range entries {
		obj := ldapobj.New(e)
		dirStr, _ := obj.GetProperty("trustDirection")
		dir := parseInt(dirStr)
		if dir != trustDirectionOutbound && dir != trustDirectionBidirectional {
			continue
		}
		partner, _ := obj.GetProperty("trustPartner")
		if partner == "" {
			continue
		}
		sid, _ := obj.TryGetSecurityIdentifier()
		out = append(out, EnumerationDomain{
			Name:      strings.ToUpper(partner),
			DomainSid: strings.ToUpper(defaultUnknown(sid)),
		})
	}
	if err := <-errc; err != nil {
		return out, err
	}
	return out, nil
}

// forestDomains enumerates the forest's Partitions container for every
// child domain NC.
func forestDomains(ctx context.Context, rc *RunContext, initial EnumerationDomain) ([]EnumerationDomain, error) {
	client, err := rc.LDAPDialer(initial)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	configDN := "CN=Partitions,CN=Configuration," + baseDNFromDomain(initial.Name)
	entries, errc := client.PagedSearch(ctx, configDN,
		"(&(objectClass=crossRef)(systemFlags:1.2.840.113556.1.4.803:=3))", []string{"dnsRoot", "nCName"}, 1000)

	result := []EnumerationDomain{initial}
	for e := range entries {
		obj := ldapobj.New(e)
		dnsRoot, _ := obj.GetProperty("dnsRoot")
		if dnsRoot == "" || strings.EqualFold(dnsRoot, initial.Name) {
			continue
		}
		child, err := resolveDomainSID(ctx, rc, dnsRoot)
		if err != nil {
			collectlog.L.Warn().Err(err).Str("domain", dnsRoot).Msg("domain discovery: forest child resolution failed")
			continue
		}
		result = append(result, child)
	}
	if err := <-errc; err != nil {
		return result, err
	}
	return result, nil
}

func parseInt(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}

func defaultUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
