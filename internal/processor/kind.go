package processor

import (
	"strings"

	"github.com/lkarlslund/adalanche-collector/internal/ldapobj"
	"github.com/lkarlslund/adalanche-collector/internal/output"
)

// InferKind maps an object's objectClass values to the output.Kind that
// routes its records; objects matching none of the known classes are
// routed as containers.
func InferKind(obj *ldapobj.DirectoryObject) output.Kind {
	classes := make(map[string]bool, 4)
	for _, c := range obj.ObjectClasses() {
		classes[strings.ToLower(c)] = true
	}

	switch {
	case classes["computer"]:
		return output.KindComputer
	case classes["group"]:
		return output.KindGroup
	case classes["grouppolicycontainer"]:
		return output.KindGPO
	case classes["organizationalunit"]:
		return output.KindOU
	case classes["domaindns"], classes["domain"]:
		return output.KindDomain
	case classes["pkicertificatetemplate"]:
		return output.KindCertTemplate
	case classes["pkienrollmentservice"]:
		return output.KindCertAuthority
	case classes["container"]:
		return output.KindContainer
	case classes["user"], classes["person"]:
		return output.KindUser
	default:
		return output.KindContainer
	}
}
