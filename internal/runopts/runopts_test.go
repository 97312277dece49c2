package runopts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	o, err := Parse(nil)
	require.NoError(t, err)

	assert.Equal(t, 636, o.Port)
	assert.Equal(t, ".", o.OutputDirectory)
	assert.Equal(t, 10, o.Threads)
	assert.Equal(t, "default", o.CollectionMethods)
	assert.True(t, o.SecureLDAP)
}

func TestParseRejectsMutuallyExclusiveDCFlags(t *testing.T) {
	_, err := Parse([]string{"-dconly", "-excludedcs"})
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "dconly", verr.Flag)
}

func TestParseRejectsUnknownCollectionMethod(t *testing.T) {
	_, err := Parse([]string{"-collectionmethods", "bogus"})
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "collectionmethods", verr.Flag)
}

func TestParseOverridesFlow(t *testing.T) {
	o, err := Parse([]string{
		"-domain", "corp.local",
		"-threads", "20",
		"-loop",
		"-loopinterval", "1m",
	})
	require.NoError(t, err)
	assert.Equal(t, "corp.local", o.Domain)
	assert.Equal(t, 20, o.Threads)
	assert.True(t, o.Loop)
	assert.Equal(t, time.Minute, o.LoopInterval)
}

func TestToRunContextWiresFieldsAndDialer(t *testing.T) {
	o, err := Parse([]string{"-domain", "corp.local", "-attributes", "cn, mail ,sAMAccountName"})
	require.NoError(t, err)

	rc := o.ToRunContext()
	assert.Equal(t, "corp.local", rc.DomainName)
	assert.Equal(t, []string{"cn", "mail", "sAMAccountName"}, rc.Attributes)
	assert.NotNil(t, rc.LDAPDialer)
}
