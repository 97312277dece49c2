package collect

import (
	"context"

	"github.com/go-ldap/ldap/v3"
	"github.com/lkarlslund/adalanche-collector/internal/ldaptransport"
)

// fakeClient is an in-memory ldaptransport.Client stand-in, keyed by base DN
// so a test can script what each producer/domain-discovery query sees
// without a live directory.
type fakeClient struct {
	byBaseDN map[string][]*ldap.Entry
	closed   bool

	// resolveSID overrides ResolveHostSID's return value; empty means the
	// default "S-1-5-..." fixture value.
	resolveSID string
	// resolveSIDErr, when set, makes ResolveHostSID fail instead.
	resolveSIDErr error
}

func newFakeClient() *fakeClient {
	return &fakeClient{byBaseDN: make(map[string][]*ldap.Entry)}
}

func (f *fakeClient) seed(baseDN string, entries ...*ldap.Entry) *fakeClient {
	f.byBaseDN[baseDN] = append(f.byBaseDN[baseDN], entries...)
	return f
}

func (f *fakeClient) PagedSearch(ctx context.Context, baseDN, filter string, attrs []string, pageSize uint32) (<-chan *ldap.Entry, <-chan error) {
	out := make(chan *ldap.Entry)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errc)
		for _, e := range f.byBaseDN[baseDN] {
			select {
			case <-ctx.Done():
				return
			case out <- e:
			}
		}
	}()
	return out, errc
}

func (f *fakeClient) ResolveHostSID(ctx context.Context, host string) (string, error) {
	if f.resolveSIDErr != nil {
		return "", f.resolveSIDErr
	}
	if f.resolveSID != "" {
		return f.resolveSID, nil
	}
	return "S-1-5-21-1-1-1-9999", nil
}

func (f *fakeClient) DomainControllers(ctx context.Context, domain, baseDN string) ([]*ldap.Entry, error) {
	return f.byBaseDN[baseDN], nil
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func entryWithSID(dn string, attrs map[string][]string, sid []byte) *ldap.Entry {
	e := &ldap.Entry{DN: dn}
	for name, vals := range attrs {
		e.Attributes = append(e.Attributes, &ldap.EntryAttribute{Name: name, Values: vals})
	}
	if sid != nil {
		e.Attributes = append(e.Attributes, &ldap.EntryAttribute{Name: "objectSid", ByteValues: [][]byte{sid}})
	}
	return e
}

// sidBytes renders a minimal well-formed binary SID (S-1-5-21-a-b-c-rid) for
// test fixtures.
func sidBytes(sub ...uint32) []byte {
	buf := make([]byte, 8+4*len(sub))
	buf[0] = 1
	buf[1] = byte(len(sub))
	buf[7] = 5
	for i, v := range sub {
		off := 8 + 4*i
		buf[off] = byte(v)
		buf[off+1] = byte(v >> 8)
		buf[off+2] = byte(v >> 16)
		buf[off+3] = byte(v >> 24)
	}
	return buf
}

var _ ldaptransport.Client = (*fakeClient)(nil)
