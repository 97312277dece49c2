// Package runopts parses the collector's command-line surface into a
// RunContext, using a flat stdlib flag.FlagSet rather than a third-party CLI
// framework.
package runopts

import (
	"context"
	"flag"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/lkarlslund/adalanche-collector/internal/cache"
	"github.com/lkarlslund/adalanche-collector/internal/collect"
	"github.com/lkarlslund/adalanche-collector/internal/dnsdiscovery"
	"github.com/lkarlslund/adalanche-collector/internal/ldaptransport"
	"github.com/lkarlslund/adalanche-collector/internal/methods"
)

// ValidationError reports a CLI argument that parsed syntactically but is
// not a usable value (an unknown collection method token, mutually
// exclusive flags both set).
type ValidationError struct {
	Flag   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("runopts: --%s: %s", e.Flag, e.Reason)
}

// Options is the flat result of parsing argv, one field per flag.
type Options struct {
	Server            string
	Port              int
	Domain            string
	Username          string
	Password          string
	SecureLDAP        bool
	DisableCertVerify bool
	DisableSigning    bool
	SkipPortCheck     bool
	PortCheckTimeout  time.Duration
	SkipPasswordCheck bool

	SearchBase       string
	LdapFilter       string
	ComputerFile     string
	CollectionMethods string
	Attributes       string
	DCOnly           bool
	ExcludeDCs       bool
	CollectAllProps  bool
	Stealth          bool

	Nameserver string

	OutputDirectory string
	OutputPrefix    string
	CacheFile       string
	CacheS3Bucket   string
	CacheS3Key      string
	NoOutput        bool
	NoZip           bool
	ZipFilename     string
	ZipPassword     string
	PrettyPrint     bool
	RandomizeNames  bool
	MemCache        bool
	InvalidateCache bool

	Threads  int
	Jitter   int
	Throttle time.Duration

	Loop         bool
	LoopDuration time.Duration
	LoopInterval time.Duration

	TrackComputerCalls   bool
	SkipRegistryLoggedOn bool
	OverrideUsername     string

	StatusInterval time.Duration
	TUI            bool

	Verbosity int
}

// Parse builds Options from argv (typically os.Args[1:]). It never exits the
// process; callers decide how to report a returned error.
func Parse(argv []string) (Options, error) {
	var o Options
	fs := flag.NewFlagSet("adalanche-collector", flag.ContinueOnError)

	fs.StringVar(&o.Server, "server", "", "domain controller to connect to, auto-detected if not supplied")
	fs.IntVar(&o.Port, "port", 636, "LDAP port to connect to (389 or 636 typical)")
	fs.StringVar(&o.Domain, "domain", "", "domain to enumerate (auto-detected if not supplied)")
	fs.StringVar(&o.Username, "username", "", "username to bind with")
	fs.StringVar(&o.Password, "password", "", "password to bind with")
	fs.BoolVar(&o.SecureLDAP, "secureldap", true, "use LDAPS instead of StartTLS/plaintext")
	fs.BoolVar(&o.DisableCertVerify, "ignorecert", false, "skip TLS certificate verification")
	fs.BoolVar(&o.DisableSigning, "nosigning", false, "carried into the LDAP transport config; the transport does not act on it")
	fs.BoolVar(&o.SkipPortCheck, "skipportcheck", false, "skip the TCP reachability probe before binding")
	fs.DurationVar(&o.PortCheckTimeout, "portchecktimeout", 3*time.Second, "timeout for the port reachability probe")
	fs.BoolVar(&o.SkipPasswordCheck, "skippasswordcheck", false, "accepted but unused: the collector runs no credential pre-check")

	fs.StringVar(&o.SearchBase, "searchbase", "", "distinguished name to search under, defaults to the domain root")
	fs.StringVar(&o.LdapFilter, "ldapfilter", "", "LDAP filter override, defaults to (objectClass=*)")
	fs.StringVar(&o.ComputerFile, "computerfile", "", "newline-separated hostname list restricting collection to those computers")
	fs.StringVar(&o.CollectionMethods, "collectionmethods", "default", "comma separated collection methods, or 'all'/'default'")
	fs.StringVar(&o.Attributes, "attributes", "", "comma separated attribute list, blank means everything")
	fs.BoolVar(&o.DCOnly, "dconly", false, "restrict collection to domain controllers")
	fs.BoolVar(&o.ExcludeDCs, "excludedcs", false, "exclude domain controllers from collection")
	fs.BoolVar(&o.CollectAllProps, "collectallproperties", false, "passed through to processors as CollectAllProperties; does not change the attributes requested")
	fs.BoolVar(&o.Stealth, "stealth", false, "restrict collection to computers referenced by user logon paths")

	fs.StringVar(&o.Nameserver, "nameserver", "", "custom DNS server for SRV-record domain controller discovery")

	fs.StringVar(&o.OutputDirectory, "outputdirectory", ".", "directory to write output files, cache and zip into")
	fs.StringVar(&o.OutputPrefix, "outputprefix", "", "filename prefix for every output file and the zip")
	fs.StringVar(&o.CacheFile, "cachefile", "", "resolver cache path, defaults to <domain-or-machineid>.cache")
	fs.StringVar(&o.CacheS3Bucket, "cache-s3-bucket", "", "mirror the resolver cache to this S3 bucket instead of a local file")
	fs.StringVar(&o.CacheS3Key, "cache-s3-key", "", "S3 object key for the mirrored cache, defaults to the local cache filename")
	fs.BoolVar(&o.NoOutput, "nooutput", false, "discard every record instead of writing output files")
	fs.BoolVar(&o.NoZip, "nozip", false, "skip bundling output files into a zip")
	fs.StringVar(&o.ZipFilename, "zipfilename", "", "zip filename override")
	fs.StringVar(&o.ZipPassword, "zippassword", "", "password to seal each zip entry with")
	fs.BoolVar(&o.PrettyPrint, "prettyprint", false, "indent output JSON")
	fs.BoolVar(&o.RandomizeNames, "randomizefilenames", false, "use random UUIDs instead of data-type names for output filenames")
	fs.BoolVar(&o.MemCache, "memcache", false, "keep the resolver cache in memory only, never write it to disk")
	fs.BoolVar(&o.InvalidateCache, "rebuildcache", false, "ignore any existing cache file and start from empty")

	fs.IntVar(&o.Threads, "threads", 10, "concurrent worker goroutines")
	fs.IntVar(&o.Jitter, "jitter", 0, "percent jitter added on top of --throttle")
	fs.DurationVar(&o.Throttle, "throttle", 0, "pacing delay between objects processed by a worker")

	fs.BoolVar(&o.Loop, "loop", false, "keep collecting on an interval after the base run finishes")
	fs.DurationVar(&o.LoopDuration, "loopduration", 2*time.Hour, "how long StartLoop keeps repeating, from when it starts")
	fs.DurationVar(&o.LoopInterval, "loopinterval", 5*time.Minute, "delay between loop passes")

	fs.BoolVar(&o.TrackComputerCalls, "trackcomputercalls", false, "accepted but unused: not passed on to the run")
	fs.BoolVar(&o.SkipRegistryLoggedOn, "skipregistryloggedon", false, "skip the registry-based logged-on-user fallback")
	fs.StringVar(&o.OverrideUsername, "overrideusername", "", "accepted but unused: not passed on to the run")

	fs.DurationVar(&o.StatusInterval, "statusinterval", 2*time.Second, "how often the status reporter redraws")
	fs.BoolVar(&o.TUI, "tui", false, "use the interactive terminal UI status reporter instead of a progress bar")

	fs.IntVar(&o.Verbosity, "v", 0, "log verbosity 0-5 (0=error, 1=warn, 2=info, 3=debug, 4 and above=trace)")

	if err := fs.Parse(argv); err != nil {
		return o, err
	}

	if o.DCOnly && o.ExcludeDCs {
		return o, &ValidationError{Flag: "dconly", Reason: "mutually exclusive with --excludedcs"}
	}
	if _, unknown := methods.Parse(o.CollectionMethods); len(unknown) > 0 {
		return o, &ValidationError{Flag: "collectionmethods", Reason: fmt.Sprintf("unknown tokens: %v", unknown)}
	}
	return o, nil
}

// ToRunContext builds a RunContext from Options, wiring the real LDAP dialer.
// It leaves Processors, CacheBackend and Status unset for the caller to fill
// in. Callers needing a fake dialer (tests, dry runs) should build a
// RunContext directly instead of going through this path.
func (o Options) ToRunContext() *collect.RunContext {
	rc := collect.NewRunContext()

	rc.DomainName = o.Domain
	rc.SearchBase = o.SearchBase
	rc.LdapFilter = o.LdapFilter
	rc.ComputerFilePath = o.ComputerFile

	methodSet, _ := methods.Parse(o.CollectionMethods)
	rc.CollectionMethods = methodSet
	rc.DCOnly = o.DCOnly
	rc.ExcludeDomainControllers = o.ExcludeDCs
	rc.CollectAllProperties = o.CollectAllProps
	rc.Stealth = o.Stealth
	if o.Attributes != "" {
		rc.Attributes = splitAttributes(o.Attributes)
	}

	rc.OutputDirectory = o.OutputDirectory
	rc.OutputPrefix = o.OutputPrefix
	rc.CacheFilePath = o.CacheFile
	rc.NoOutput = o.NoOutput
	rc.NoZip = o.NoZip
	rc.ZipFilename = o.ZipFilename
	rc.ZipPassword = o.ZipPassword
	rc.PrettyPrint = o.PrettyPrint
	rc.RandomizeFilenames = o.RandomizeNames
	rc.MemCache = o.MemCache
	rc.InvalidateCache = o.InvalidateCache

	rc.Threads = o.Threads
	rc.Jitter = o.Jitter
	rc.Throttle = o.Throttle

	rc.Loop = o.Loop
	rc.LoopDuration = o.LoopDuration
	rc.LoopInterval = o.LoopInterval

	rc.SkipRegistryLoggedOn = o.SkipRegistryLoggedOn
	rc.Creds = collect.Credentials{Username: o.Username, Password: o.Password}

	rc.LDAPDialer = dialerFor(o)
	return rc
}

func dialerFor(o Options) collect.LDAPDialer {
	cfg := ldaptransport.Config{
		Server:            o.Server,
		Port:              o.Port,
		Username:          o.Username,
		Password:          o.Password,
		SecureLDAP:        o.SecureLDAP,
		DisableCertVerify: o.DisableCertVerify,
		DisableSigning:    o.DisableSigning,
		SkipPortCheck:     o.SkipPortCheck,
		PortCheckTimeout:  o.PortCheckTimeout,
	}
	nameserver := o.Nameserver
	return func(domain collect.EnumerationDomain) (ldaptransport.Client, error) {
		dialCfg := cfg
		switch {
		case dialCfg.Server != "":
			// explicit --server wins outright
		case nameserver != "":
			dc, err := dnsdiscovery.FindDomainController(context.Background(), nameserver, domain.Name)
			if err != nil {
				return nil, fmt.Errorf("runopts: locate domain controller for %s: %w", domain.Name, err)
			}
			dialCfg.Server = dc
		default:
			dialCfg.Server = domain.Name
		}
		return ldaptransport.Dial(dialCfg)
	}
}

func splitAttributes(csv string) []string {
	var out []string
	for _, tok := range strings.Split(csv, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// NewCacheBackend resolves the configured cache backend: an S3-mirrored
// backend when --cache-s3-bucket is set, otherwise the local FileBackend.
func NewCacheBackend(ctx context.Context, o Options) (cache.Backend, error) {
	localPath := o.CacheFile
	if localPath == "" {
		localPath = cache.FileName(o.OutputDirectory, o.Domain)
	}
	if o.CacheS3Bucket == "" {
		return cache.FileBackend{Path: localPath}, nil
	}

	key := o.CacheS3Key
	if key == "" {
		key = filepath.Base(localPath)
	}
	return cache.NewS3Backend(ctx, o.CacheS3Bucket, key)
}
