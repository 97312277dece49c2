// Package methods defines the Collection Method bitset: the named categories
// of data a run gathers (users, groups, sessions, ACLs, GPOs, ...).
package methods

import "strings"

// Method is one bit in the collection-method bitset.
type Method uint32

const (
	Group Method = 1 << iota
	LocalAdmin
	Session
	LoggedOn
	Trusts
	ACL
	Container
	RDP
	ObjectProps
	SPNTargets
	PSRemote
	DCOM
	GPOLocalGroup
	CertServices
	Default = Group | LocalAdmin | Session | Trusts | ACL | Container | ObjectProps | GPOLocalGroup
	All     = Default | RDP | SPNTargets | PSRemote | DCOM | CertServices | LoggedOn
	// loop-safe methods: cheap, repeatable, no schema/ACL rescans needed every pass.
	LoopDefault = Session | LoggedOn
)

var names = map[string]Method{
	"group":         Group,
	"localadmin":    LocalAdmin,
	"session":       Session,
	"loggedon":      LoggedOn,
	"trusts":        Trusts,
	"acl":           ACL,
	"container":     Container,
	"rdp":           RDP,
	"objectprops":   ObjectProps,
	"spntargets":    SPNTargets,
	"psremote":      PSRemote,
	"dcom":          DCOM,
	"gpolocalgroup": GPOLocalGroup,
	"certservices":  CertServices,
	"default":       Default,
	"all":           All,
}

// Parse resolves a comma-separated --CollectionMethods list into a bitset.
// Unknown tokens are reported but parsing continues, collecting every error
// so the caller (runopts.Parse) can report every bad token at once.
func Parse(csv string) (Method, []string) {
	var m Method
	var unknown []string
	for _, tok := range strings.Split(csv, ",") {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok == "" {
			continue
		}
		if bit, ok := names[tok]; ok {
			m |= bit
		} else {
			unknown = append(unknown, tok)
		}
	}
	return m, unknown
}

// Has reports whether every bit in want is set in m.
func (m Method) Has(want Method) bool { return m&want == want }

// Any reports whether m shares any bit with want.
func (m Method) Any(want Method) bool { return m&want != 0 }

// Loop narrows a method set to the subset safe to repeat on a timer.
func (m Method) Loop() Method { return m & LoopDefault }

// String renders the set as the canonical comma-separated token list.
func (m Method) String() string {
	if m == 0 {
		return ""
	}
	var parts []string
	for _, name := range []string{"group", "localadmin", "session", "loggedon", "trusts", "acl", "container", "rdp", "objectprops", "spntargets", "psremote", "dcom", "gpolocalgroup", "certservices"} {
		if m.Has(names[name]) {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, ",")
}
