// Package dnsdiscovery resolves a domain controller hostname from a domain
// name via the standard AD SRV-record convention, optionally against a
// caller-supplied nameserver instead of the system resolver.
package dnsdiscovery

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/miekg/dns"
)

// FindDomainController queries _ldap._tcp.dc._msdcs.<domain> for SRV records
// and returns one target, trimmed of its trailing root dot. With a
// nameserver, the query goes directly through miekg/dns and the target with
// the lowest priority (ties broken by highest weight) is returned. When
// nameserver is empty, the system resolver is used and its first record is
// returned, in the resolver's priority order with weight-randomized ties.
func FindDomainController(ctx context.Context, nameserver, domain string) (string, error) {
	qname := fmt.Sprintf("_ldap._tcp.dc._msdcs.%s.", strings.TrimSuffix(domain, "."))

	if nameserver == "" {
		_, addrs, err := net.DefaultResolver.LookupSRV(ctx, "ldap", "tcp", "dc._msdcs."+domain)
		if err != nil {
			return "", fmt.Errorf("dnsdiscovery: system resolver SRV lookup for %s: %w", domain, err)
		}
		if len(addrs) == 0 {
			return "", fmt.Errorf("dnsdiscovery: no SRV records for %s", domain)
		}
		return strings.TrimSuffix(addrs[0].Target, "."), nil
	}

	m := new(dns.Msg)
	m.SetQuestion(qname, dns.TypeSRV)

	addr := nameserver
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "53")
	}

	c := new(dns.Client)
	resp, _, err := c.ExchangeContext(ctx, m, addr)
	if err != nil {
		return "", fmt.Errorf("dnsdiscovery: query %s against %s: %w", qname, nameserver, err)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return "", fmt.Errorf("dnsdiscovery: %s returned rcode %s for %s", nameserver, dns.RcodeToString[resp.Rcode], qname)
	}

	var best *dns.SRV
	for _, rr := range resp.Answer {
		srv, ok := rr.(*dns.SRV)
		if !ok {
			continue
		}
		if best == nil || srv.Priority < best.Priority ||
			(srv.Priority == best.Priority && srv.Weight > best.Weight) {
			best = srv
		}
	}
	if best == nil {
		return "", fmt.Errorf("dnsdiscovery: no SRV records for %s via %s", qname, nameserver)
	}
	return strings.TrimSuffix(best.Target, "."), nil
}
