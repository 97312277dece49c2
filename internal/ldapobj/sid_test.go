package ldapobj

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSID(authority byte, subs ...uint32) []byte {
	raw := []byte{1, byte(len(subs)), 0, 0, 0, 0, 0, authority}
	for _, s := range subs {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, s)
		raw = append(raw, b...)
	}
	return raw
}

func TestDecodeSIDRendersCanonicalForm(t *testing.T) {
	raw := buildSID(5, 21, 111111111, 222222222, 333333333, 1001)
	sid, err := DecodeSID(raw)
	require.NoError(t, err)
	assert.Equal(t, "S-1-5-21-111111111-222222222-333333333-1001", sid)
}

func TestDecodeSIDRejectsTooShortInput(t *testing.T) {
	_, err := DecodeSID([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestDecodeSIDRejectsLengthMismatch(t *testing.T) {
	raw := buildSID(5, 21, 500)
	raw = raw[:len(raw)-1] // truncate one byte short of what subCount promises
	_, err := DecodeSID(raw)
	assert.Error(t, err)
}

func TestDecodeSIDWithNoSubAuthorities(t *testing.T) {
	raw := buildSID(5)
	sid, err := DecodeSID(raw)
	require.NoError(t, err)
	assert.Equal(t, "S-1-5", sid)
}
