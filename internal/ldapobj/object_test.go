package ldapobj

import (
	"encoding/binary"
	"testing"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
)

func entry(dn string, attrs map[string][]string) *ldap.Entry {
	e := &ldap.Entry{DN: dn}
	for name, vals := range attrs {
		e.Attributes = append(e.Attributes, &ldap.EntryAttribute{Name: name, Values: vals})
	}
	return e
}

func TestGetPropertyIsCaseInsensitive(t *testing.T) {
	obj := New(entry("CN=alice,DC=corp,DC=local", map[string][]string{"sAMAccountName": {"alice"}}))

	v, ok := obj.GetProperty("samaccountname")
	assert.True(t, ok)
	assert.Equal(t, "alice", v)

	v, ok = obj.GetProperty("SAMACCOUNTNAME")
	assert.True(t, ok)
	assert.Equal(t, "alice", v)
}

func TestGetPropertyMissingAttributeReturnsFalse(t *testing.T) {
	obj := New(entry("CN=alice,DC=corp,DC=local", nil))
	_, ok := obj.GetProperty("mail")
	assert.False(t, ok)
}

func TestGetPropertyValuesReturnsEveryValue(t *testing.T) {
	obj := New(entry("CN=grp,DC=corp,DC=local", map[string][]string{"member": {"cn=a", "cn=b"}}))
	assert.Equal(t, []string{"cn=a", "cn=b"}, obj.GetPropertyValues("member"))
}

func TestSplitSplitsUNCPathsAndReportsAbsence(t *testing.T) {
	obj := New(entry("CN=alice,DC=corp,DC=local", map[string][]string{
		"homeDirectory": {`\\fileserver01\home\alice`},
	}))

	parts, ok := obj.Split("homeDirectory", `\`)
	assert.True(t, ok)
	assert.Equal(t, []string{"", "", "fileserver01", "home", "alice"}, parts)

	_, ok = obj.Split("scriptPath", `\`)
	assert.False(t, ok)
}

func TestObjectClassesReturnsAllValues(t *testing.T) {
	obj := New(entry("CN=c1,DC=corp,DC=local", map[string][]string{
		"objectClass": {"top", "person", "organizationalPerson", "user"},
	}))
	assert.Equal(t, []string{"top", "person", "organizationalPerson", "user"}, obj.ObjectClasses())
}

func TestTryGetSecurityIdentifierDecodesRawSID(t *testing.T) {
	sub := make([]byte, 4)
	binary.LittleEndian.PutUint32(sub, 21)
	raw := append([]byte{1, 1, 0, 0, 0, 0, 0, 5}, sub...)

	e := entry("CN=alice,DC=corp,DC=local", nil)
	e.Attributes = append(e.Attributes, &ldap.EntryAttribute{Name: "objectSid", ByteValues: [][]byte{raw}})

	obj := New(e)
	sid, ok := obj.TryGetSecurityIdentifier()
	assert.True(t, ok)
	assert.Equal(t, "S-1-5-21", sid)
}

func TestTryGetSecurityIdentifierAbsentAttribute(t *testing.T) {
	obj := New(entry("CN=alice,DC=corp,DC=local", nil))
	_, ok := obj.TryGetSecurityIdentifier()
	assert.False(t, ok)
}

func TestDNReturnsDistinguishedName(t *testing.T) {
	obj := New(entry("CN=alice,DC=corp,DC=local", nil))
	assert.Equal(t, "CN=alice,DC=corp,DC=local", obj.DN())
}
