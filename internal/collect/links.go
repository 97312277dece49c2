// Link runner: runs the fixed sequence of named steps that make up one
// collector invocation, short-circuiting the remainder as soon as any link
// faults the run.
package collect

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Showmax/go-fqdn"

	"github.com/lkarlslund/adalanche-collector/internal/cache"
	"github.com/lkarlslund/adalanche-collector/internal/collectlog"
	"github.com/lkarlslund/adalanche-collector/internal/methods"
)

// defaultLoopDuration/defaultLoopInterval are the values Initialize
// normalizes a zero LoopDuration/LoopInterval to when Loop is set, for
// callers that build a RunContext directly instead of going through
// runopts (whose own CLI flag defaults cover the common path).
const (
	defaultLoopDuration = 2 * time.Hour
	defaultLoopInterval = 30 * time.Second
)

// writeProbeName is the throwaway file Initialize creates and removes to
// confirm the output directory is actually writable.
const writeProbeName = ".adalanche-collector-writeprobe"

// domainAutoDetect resolves the current domain when --domain is omitted,
// swappable in tests: USERDNSDOMAIN first, then the machine's FQDN with its
// leading hostname label stripped.
var domainAutoDetect = func() (string, error) {
	if d := strings.ToLower(os.Getenv("USERDNSDOMAIN")); d != "" {
		return d, nil
	}
	host, err := fqdn.FqdnHostname()
	if err == nil && host != "" {
		return strings.ToLower(host[strings.Index(host, ".")+1:]), nil
	}
	return "", fmt.Errorf("domain auto-detection failed: no --domain given, USERDNSDOMAIN unset, and FQDN lookup failed")
}

// link names one step in the fixed sequence Run executes in order.
type link struct {
	name string
	run  func(rc *RunContext)
}

// Run executes every link in order: Initialize, TestConnection,
// SetSessionUserName, InitCommonLib, GetDomainsForEnumeration,
// StartBaseCollectionTask, AwaitBaseRunCompletion, StartLoopTimer, StartLoop,
// AwaitLoopCompletion, SaveCacheFile, Finish. A link that faults the run
// short-circuits every link after it except SaveCacheFile and Finish, which
// always run unless the fault happened before InitCommonLib finished (no
// cache or processor set would exist yet to save or clean up).
func Run(rc *RunContext) {
	commonLibReady := false

	links := []link{
		{"Initialize", linkInitialize},
		{"TestConnection", linkTestConnection},
		{"SetSessionUserName", linkSetSessionUserName},
		{"InitCommonLib", func(rc *RunContext) { linkInitCommonLib(rc); commonLibReady = !faultedNow(rc) }},
		{"GetDomainsForEnumeration", GetDomainsForEnumeration},
		{"StartBaseCollectionTask", linkStartBaseCollectionTask},
		{"AwaitBaseRunCompletion", linkAwaitBaseRunCompletion},
		{"StartLoopTimer", linkStartLoopTimer},
		{"StartLoop", linkStartLoop},
		{"AwaitLoopCompletion", linkAwaitLoopCompletion},
	}

	for _, l := range links {
		if faultedNow(rc) {
			collectlog.L.Warn().Str("link", l.name).Msg("link runner: skipping, run already faulted")
			continue
		}
		collectlog.L.Debug().Str("link", l.name).Msg("link runner: starting link")
		l.run(rc)
	}

	// Release the loop timer even when a fault skipped AwaitLoopCompletion.
	DisposeTimer(rc.loopTimer)

	faulted, reason := rc.Faulted()
	if faulted && !commonLibReady {
		collectlog.L.Error().Str("reason", reason).Msg("link runner: faulted before common libraries were ready, skipping cache save and finish")
		return
	}
	linkSaveCacheFile(rc)
	linkFinish(rc)
}

func faultedNow(rc *RunContext) bool {
	faulted, _ := rc.Faulted()
	return faulted
}

func linkInitialize(rc *RunContext) {
	if rc.Threads < 1 {
		rc.Threads = 1
	}
	if rc.CollectionMethods == 0 {
		rc.CollectionMethods = methods.Default
	}

	if (rc.Creds.Username == "") != (rc.Creds.Password == "") {
		rc.Fault("initialize: credentials must be both username and password, or neither")
		return
	}

	if rc.DomainName == "" {
		collectlog.L.Info().Msg("initialize: no domain specified, auto-detecting")
		domain, err := domainAutoDetect()
		if err != nil {
			rc.Fault(fmt.Sprintf("initialize: no domain specified: %v", err))
			return
		}
		collectlog.L.Info().Str("domain", domain).Msg("initialize: auto-detected domain")
		rc.DomainName = domain
	}

	if rc.Loop {
		if rc.LoopDuration == 0 {
			rc.LoopDuration = defaultLoopDuration
		}
		if rc.LoopInterval == 0 {
			rc.LoopInterval = defaultLoopInterval
		}
	}

	if !rc.NoOutput {
		if err := probeOutputDirectoryWritable(rc.OutputDirectory); err != nil {
			rc.Fault(fmt.Sprintf("initialize: output directory not writable: %v", err))
			return
		}
	}
}

// probeOutputDirectoryWritable confirms dir is writable by creating and
// immediately removing a throwaway file, catching a bad --outputdirectory at
// Initialize instead of at the first Writer.Flush deep into a run.
func probeOutputDirectoryWritable(dir string) error {
	probe := filepath.Join(dir, writeProbeName)
	if err := os.WriteFile(probe, nil, 0o600); err != nil {
		return err
	}
	return os.Remove(probe)
}

func linkTestConnection(rc *RunContext) {
	if rc.LDAPDialer == nil {
		rc.Fault("test connection: no LDAP dialer configured")
		return
	}
	probe := EnumerationDomain{Name: strings.ToUpper(rc.DomainName)}
	client, err := rc.LDAPDialer(probe)
	if err != nil {
		rc.Fault(fmt.Sprintf("test connection: %v", err))
		return
	}
	client.Close()
}

func linkSetSessionUserName(rc *RunContext) {
	if rc.Creds.Username == "" {
		collectlog.L.Debug().Msg("set session username: no explicit credentials, using ambient session")
	}
}

func linkInitCommonLib(rc *RunContext) {
	if rc.Processors == nil {
		rc.Fault("init common lib: no processor set configured")
		return
	}
	if rc.CacheFilePath == "" {
		rc.CacheFilePath = cache.FileName(rc.OutputDirectory, "")
	}
	if rc.CacheBackend == nil {
		rc.CacheBackend = cache.FileBackend{Path: rc.CacheFilePath}
	}

	c, err := cache.Load(rc.Context(), rc.CacheBackend, rc.InvalidateCache)
	if err != nil {
		collectlog.L.Warn().Err(err).Msg("init common lib: cache load failed, starting empty")
	}
	rc.Cache = c
}

func linkStartBaseCollectionTask(rc *RunContext) {
	h := newTaskHandle()
	rc.SetCurrentTask(h)
	go func() {
		err := NewTask(rc, false).Run(rc.Context())
		h.finish(err)
	}()
}

func linkAwaitBaseRunCompletion(rc *RunContext) {
	h := rc.CurrentTask()
	if h == nil {
		return
	}
	if err := h.Await(); err != nil {
		collectlog.L.Warn().Err(err).Msg("await base run completion: base pass finished with errors")
	}
	rc.InitialCompleted = true
}

func linkStartLoopTimer(rc *RunContext) {
	if !rc.Loop {
		return
	}
	StartLoopTimer(rc)
}

func linkStartLoop(rc *RunContext) {
	if !rc.Loop {
		return
	}
	StartLoop(rc)
}

func linkAwaitLoopCompletion(rc *RunContext) {
	if !rc.Loop {
		return
	}
	h := rc.CurrentTask()
	if h != nil {
		if err := h.Await(); err != nil {
			collectlog.L.Warn().Err(err).Msg("await loop completion: final loop pass finished with errors")
		}
	}
	DisposeTimer(rc.loopTimer)
}

func linkSaveCacheFile(rc *RunContext) {
	if rc.Cache == nil || rc.CacheBackend == nil {
		return
	}
	if err := cache.Save(rc.Context(), rc.CacheBackend, rc.Cache, rc.MemCache); err != nil {
		collectlog.L.Warn().Err(err).Msg("save cache file: failed")
	}
}

func linkFinish(rc *RunContext) {
	faulted, reason := rc.Faulted()
	if faulted {
		collectlog.L.Error().Str("reason", reason).Msg("link runner: run finished faulted")
		return
	}
	collectlog.L.Info().Msg("link runner: run finished")
}
