// Package ldapobj provides DirectoryObject: an opaque attribute-bag wrapper
// around an LDAP search result, as produced by the three producer strategies
// and consumed by the worker pool's Processor. The core treats the bag as
// opaque, since per-object interpretation is a pluggable Processor's job —
// this package only offers the attribute accessors every producer needs.
package ldapobj

import (
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// DirectoryObject wraps one LDAP entry with case-insensitive attribute access.
type DirectoryObject struct {
	entry *ldap.Entry
	index map[string][]string // uppercased attribute name -> values, memoized
}

// New wraps an *ldap.Entry as returned by an LDAPClient paged search.
func New(entry *ldap.Entry) *DirectoryObject {
	obj := &DirectoryObject{entry: entry, index: make(map[string][]string, len(entry.Attributes))}
	for _, attr := range entry.Attributes {
		obj.index[strings.ToUpper(attr.Name)] = attr.Values
	}
	return obj
}

// DN returns the object's distinguished name.
func (o *DirectoryObject) DN() string { return o.entry.DN }

// GetProperty returns the first value of a named attribute, case-insensitive.
func (o *DirectoryObject) GetProperty(name string) (string, bool) {
	vals, ok := o.index[strings.ToUpper(name)]
	if !ok || len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

// GetPropertyValues returns all values of a named attribute, case-insensitive.
func (o *DirectoryObject) GetPropertyValues(name string) []string {
	return o.index[strings.ToUpper(name)]
}

// TryGetSecurityIdentifier decodes the binary objectSid attribute into its
// canonical S-1-5-... string form.
func (o *DirectoryObject) TryGetSecurityIdentifier() (string, bool) {
	raw := o.entry.GetRawAttributeValue("objectSid")
	if len(raw) == 0 {
		return "", false
	}
	sid, err := DecodeSID(raw)
	if err != nil {
		return "", false
	}
	return sid, true
}

// Split splits a string property on sep, returning nil if the property is
// absent. Used by the Stealth Producer to pull the host component out of
// homeDirectory/scriptPath/profilePath UNC paths.
func (o *DirectoryObject) Split(name string, sep string) ([]string, bool) {
	v, ok := o.GetProperty(name)
	if !ok {
		return nil, false
	}
	return strings.Split(v, sep), true
}

// ObjectClasses returns the objectClass attribute values, used to infer kind.
func (o *DirectoryObject) ObjectClasses() []string { return o.GetPropertyValues("objectClass") }
