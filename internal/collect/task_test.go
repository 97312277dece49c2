package collect

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lkarlslund/adalanche-collector/internal/cache"
	"github.com/lkarlslund/adalanche-collector/internal/ldaptransport"
	"github.com/lkarlslund/adalanche-collector/internal/output"
	"github.com/lkarlslund/adalanche-collector/internal/processor"
)

func TestTaskRunProducesOutputFlushesZipAndSavesCache(t *testing.T) {
	outDir := t.TempDir()

	client := newFakeClient().seed("DC=corp,DC=local",
		entryWithSID("CN=alice,DC=corp,DC=local",
			map[string][]string{"objectClass": {"user"}}, nil))

	rc := NewRunContext()
	rc.DomainName = "corp.local"
	rc.Domains = []EnumerationDomain{{Name: "CORP.LOCAL", DomainSid: "S-1-5-21-1-2-3"}}
	rc.Threads = 2
	rc.OutputDirectory = outDir
	rc.LDAPDialer = func(EnumerationDomain) (ldaptransport.Client, error) { return client, nil }
	rc.Processors = processor.NewSet()
	rc.Processors.RegisterKind(output.KindUser, &recordingProcessor{})
	rc.CacheBackend = cache.FileBackend{Path: filepath.Join(outDir, "test.cache")}
	rc.Cache = cache.New()

	err := NewTask(rc, false).Run(context.Background())
	require.NoError(t, err)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)

	var sawJSON, sawZip, sawCache bool
	for _, e := range entries {
		switch filepath.Ext(e.Name()) {
		case ".json":
			sawJSON = true
		case ".zip":
			sawZip = true
		case ".cache":
			sawCache = true
		}
	}
	assert.True(t, sawJSON, "expected a users.json output file")
	assert.True(t, sawZip, "expected a bundled zip")
	assert.True(t, sawCache, "expected the resolver cache to be saved")
}

func TestTaskRunSkipsZipWhenNoZipSet(t *testing.T) {
	outDir := t.TempDir()
	client := newFakeClient() // no entries, so no output files and nothing to zip

	rc := NewRunContext()
	rc.DomainName = "corp.local"
	rc.Domains = []EnumerationDomain{{Name: "CORP.LOCAL"}}
	rc.OutputDirectory = outDir
	rc.NoZip = true
	rc.LDAPDialer = func(EnumerationDomain) (ldaptransport.Client, error) { return client, nil }
	rc.Processors = processor.NewSet()
	rc.CacheBackend = cache.FileBackend{Path: filepath.Join(outDir, "test.cache")}
	rc.Cache = cache.New()

	require.NoError(t, NewTask(rc, false).Run(context.Background()))

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotEqual(t, ".zip", filepath.Ext(e.Name()))
	}
}

func TestTaskRunSurfacesProducerErrorWithoutAbortingOtherDomains(t *testing.T) {
	outDir := t.TempDir()
	good := newFakeClient().seed("DC=good,DC=local",
		entryWithSID("CN=alice,DC=good,DC=local", map[string][]string{"objectClass": {"user"}}, nil))

	rc := NewRunContext()
	rc.DomainName = "good.local"
	rc.Domains = []EnumerationDomain{{Name: "GOOD.LOCAL"}, {Name: "BAD.LOCAL"}}
	rc.OutputDirectory = outDir
	rc.NoZip = true
	rc.LDAPDialer = func(d EnumerationDomain) (ldaptransport.Client, error) {
		if d.Name == "BAD.LOCAL" {
			return nil, assertableDialError{}
		}
		return good, nil
	}
	rc.Processors = processor.NewSet()
	rc.Processors.RegisterKind(output.KindUser, &recordingProcessor{})
	rc.CacheBackend = cache.FileBackend{Path: filepath.Join(outDir, "test.cache")}
	rc.Cache = cache.New()

	err := NewTask(rc, false).Run(context.Background())
	assert.Error(t, err)

	raw, err := os.ReadFile(filepath.Join(outDir, rc.procStartStamp()+"_users.json"))
	require.NoError(t, err)
	var envelope struct {
		Meta struct{ Count int } `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(raw, &envelope))
	assert.Equal(t, 1, envelope.Meta.Count, "the good domain's object must still make it to output")
}

type assertableDialError struct{}

func (assertableDialError) Error() string { return "dial refused" }
