package collect

import "github.com/lkarlslund/adalanche-collector/internal/ldaptransport"

// LDAPDialer produces a bound LDAPClient for a given domain name/SID. The
// link runner and producers never dial directly; tests inject a dialer that
// returns a fake, keeping the engine runnable without a live directory.
type LDAPDialer func(domain EnumerationDomain) (ldaptransport.Client, error)
