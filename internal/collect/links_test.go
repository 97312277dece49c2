package collect

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lkarlslund/adalanche-collector/internal/ldaptransport"
	"github.com/lkarlslund/adalanche-collector/internal/output"
	"github.com/lkarlslund/adalanche-collector/internal/processor"
)

func baseRunnableContext(t *testing.T) *RunContext {
	t.Helper()
	client := newFakeClient().seed("DC=corp,DC=local",
		entryWithSID("CN=alice,DC=corp,DC=local", map[string][]string{"objectClass": {"user"}}, nil),
		entryWithSID("DC=corp,DC=local", nil, sidBytes(21, 1, 2, 3)))

	rc := NewRunContext()
	rc.DomainName = "corp.local"
	rc.OutputDirectory = t.TempDir()
	rc.NoZip = true
	rc.LDAPDialer = func(EnumerationDomain) (ldaptransport.Client, error) { return client, nil }
	rc.Processors = processor.NewSet()
	rc.Processors.RegisterKind(output.KindUser, &recordingProcessor{})
	return rc
}

func TestRunCompletesAFullBaseRunWithoutLoop(t *testing.T) {
	rc := baseRunnableContext(t)
	Run(rc)

	faulted, reason := rc.Faulted()
	require.False(t, faulted, reason)
	assert.True(t, rc.InitialCompleted)
	assert.NotNil(t, rc.Cache)

	_, err := filepath.Glob(filepath.Join(rc.OutputDirectory, "*.cache"))
	require.NoError(t, err)
}

func TestRunFaultsWhenNoDomainSpecifiedAndAutoDetectFails(t *testing.T) {
	prev := domainAutoDetect
	domainAutoDetect = func() (string, error) { return "", assertableDialError{} }
	defer func() { domainAutoDetect = prev }()

	rc := baseRunnableContext(t)
	rc.DomainName = ""
	Run(rc)

	faulted, reason := rc.Faulted()
	assert.True(t, faulted)
	assert.Contains(t, reason, "no domain specified")
	assert.False(t, rc.InitialCompleted, "later links must not run once Initialize faults")
}

func TestLinkInitializeAutoDetectsDomainWhenUnset(t *testing.T) {
	prev := domainAutoDetect
	domainAutoDetect = func() (string, error) { return "auto.example.local", nil }
	defer func() { domainAutoDetect = prev }()

	rc := NewRunContext()
	rc.OutputDirectory = t.TempDir()
	linkInitialize(rc)

	faulted, reason := rc.Faulted()
	assert.False(t, faulted, reason)
	assert.Equal(t, "auto.example.local", rc.DomainName)
}

func TestLinkInitializeFaultsOnHalfSpecifiedCredentials(t *testing.T) {
	rc := NewRunContext()
	rc.DomainName = "corp.local"
	rc.OutputDirectory = t.TempDir()
	rc.Creds = Credentials{Username: "alice"}
	linkInitialize(rc)

	faulted, reason := rc.Faulted()
	assert.True(t, faulted)
	assert.Contains(t, reason, "both username and password")
}

func TestLinkInitializeDefaultsLoopDurationAndIntervalWhenZero(t *testing.T) {
	rc := NewRunContext()
	rc.DomainName = "corp.local"
	rc.OutputDirectory = t.TempDir()
	rc.Loop = true
	linkInitialize(rc)

	faulted, reason := rc.Faulted()
	assert.False(t, faulted, reason)
	assert.Equal(t, defaultLoopDuration, rc.LoopDuration)
	assert.Equal(t, defaultLoopInterval, rc.LoopInterval)
}

func TestLinkInitializePreservesNonZeroLoopDurationAndInterval(t *testing.T) {
	rc := NewRunContext()
	rc.DomainName = "corp.local"
	rc.OutputDirectory = t.TempDir()
	rc.Loop = true
	rc.LoopDuration = 3 * time.Second
	rc.LoopInterval = time.Second
	linkInitialize(rc)

	assert.Equal(t, 3*time.Second, rc.LoopDuration)
	assert.Equal(t, time.Second, rc.LoopInterval)
}

func TestLinkInitializeFaultsWhenOutputDirectoryNotWritable(t *testing.T) {
	rc := NewRunContext()
	rc.DomainName = "corp.local"
	rc.OutputDirectory = filepath.Join(t.TempDir(), "does-not-exist")
	linkInitialize(rc)

	faulted, reason := rc.Faulted()
	assert.True(t, faulted)
	assert.Contains(t, reason, "output directory not writable")
}

func TestLinkInitializeSkipsOutputDirectoryProbeWhenNoOutput(t *testing.T) {
	rc := NewRunContext()
	rc.DomainName = "corp.local"
	rc.OutputDirectory = filepath.Join(t.TempDir(), "does-not-exist")
	rc.NoOutput = true
	linkInitialize(rc)

	faulted, reason := rc.Faulted()
	assert.False(t, faulted, reason)
}

func TestRunSkipsCacheSaveWhenFaultedBeforeCommonLibReady(t *testing.T) {
	rc := baseRunnableContext(t)
	rc.LDAPDialer = nil // TestConnection link faults before InitCommonLib ever runs
	Run(rc)

	faulted, _ := rc.Faulted()
	assert.True(t, faulted)
	assert.Nil(t, rc.Cache, "InitCommonLib never ran, so no cache should have been populated or saved")
}

func TestRunSavesCacheWhenFaultedAfterCommonLibReady(t *testing.T) {
	rc := baseRunnableContext(t)
	calls := 0
	rc.LDAPDialer = func(EnumerationDomain) (ldaptransport.Client, error) {
		calls++
		if calls == 1 { // TestConnection's probe, before InitCommonLib has even run
			return newFakeClient(), nil
		}
		// GetDomainsForEnumeration's resolve call, which runs after InitCommonLib
		return nil, assertableDialError{}
	}
	Run(rc)

	faulted, reason := rc.Faulted()
	assert.True(t, faulted, reason)
	assert.NotNil(t, rc.Cache, "InitCommonLib ran before the fault, cache must still be populated and saved")

	matches, err := filepath.Glob(filepath.Join(rc.OutputDirectory, "*.cache"))
	require.NoError(t, err)
	assert.NotEmpty(t, matches)
}
