package models

import (
	"strings"

	"github.com/package-url/packageurl-go"
)

// Ecosystem identifies a supported package manager or build tool.
type Ecosystem string

const (
	EcosystemGoMod   Ecosystem = "GO_MOD"
	EcosystemNpm     Ecosystem = "NPM"
	EcosystemPnpm    Ecosystem = "PNPM"
	EcosystemPip     Ecosystem = "PIP"
	EcosystemPoetry  Ecosystem = "POETRY"
	EcosystemCargo   Ecosystem = "CARGO"
	EcosystemScalibr Ecosystem = "SCALIBR"
)

// Forge is the registry a dependency originates from.
type Forge struct {
	Name      string
	Separator string
	// PURLType is the package-url type used when rendering ids as purls.
	PURLType string
}

var (
	ForgeNpmjs   = Forge{Name: "npmjs", Separator: "@", PURLType: packageurl.TypeNPM}
	ForgePypi    = Forge{Name: "pypi", Separator: "==", PURLType: packageurl.TypePyPi}
	ForgeGolang  = Forge{Name: "golang", Separator: ":", PURLType: packageurl.TypeGolang}
	ForgeCrates  = Forge{Name: "crates", Separator: ":", PURLType: packageurl.TypeCargo}
	ForgeGeneric = Forge{Name: "generic", Separator: ":", PURLType: packageurl.TypeGeneric}
	// ForgeProject identifies the scanned project itself.
	ForgeProject = Forge{Name: "/", Separator: "/", PURLType: packageurl.TypeGeneric}
)

// ForgeForPURLType returns the forge matching a package-url type, falling back
// to a generic forge named after the type.
func ForgeForPURLType(t string) Forge {
	for _, f := range []Forge{ForgeNpmjs, ForgePypi, ForgeGolang, ForgeCrates} {
		if f.PURLType == t {
			return f
		}
	}
	if t == "" {
		return ForgeGeneric
	}
	return Forge{Name: t, Separator: ":", PURLType: t}
}

// ExternalID identifies a dependency across ecosystems. It is a comparable
// value and is used directly as a map key.
type ExternalID struct {
	Forge     Forge
	Namespace string
	Name      string
	Version   string
}

// NewNameVersion creates an id without a namespace.
func NewNameVersion(forge Forge, name, version string) ExternalID {
	return ExternalID{Forge: forge, Name: name, Version: version}
}

// NewModule creates an id with a namespace (group, scope or owner).
func NewModule(forge Forge, namespace, name, version string) ExternalID {
	return ExternalID{Forge: forge, Namespace: namespace, Name: name, Version: version}
}

// IsZero reports whether the id is unset.
func (id ExternalID) IsZero() bool {
	return id == ExternalID{}
}

// String renders the id with the forge's separator, e.g. "npmjs:lodash@4.17.21".
func (id ExternalID) String() string {
	var sb strings.Builder
	sb.WriteString(id.Forge.Name)
	sb.WriteString(":")
	if id.Namespace != "" {
		sb.WriteString(id.Namespace)
		sb.WriteString(id.Forge.Separator)
	}
	sb.WriteString(id.Name)
	if id.Version != "" {
		sb.WriteString(id.Forge.Separator)
		sb.WriteString(id.Version)
	}
	return sb.String()
}

// PURL renders the id as a package-url.
func (id ExternalID) PURL() string {
	t := id.Forge.PURLType
	if t == "" {
		t = packageurl.TypeGeneric
	}
	ns, name := id.Namespace, id.Name
	// Go module paths are split into namespace and name.
	if t == packageurl.TypeGolang && ns == "" {
		if i := strings.LastIndex(name, "/"); i > 0 {
			ns, name = name[:i], name[i+1:]
		}
	}
	return packageurl.NewPackageURL(t, ns, name, id.Version, nil, "").ToString()
}

// Less orders ids by forge, namespace, name and version.
func (id ExternalID) Less(o ExternalID) bool {
	switch {
	case id.Forge.Name != o.Forge.Name:
		return id.Forge.Name < o.Forge.Name
	case id.Namespace != o.Namespace:
		return id.Namespace < o.Namespace
	case id.Name != o.Name:
		return id.Name < o.Name
	case id.Version != o.Version:
		return id.Version < o.Version
	case id.Forge.PURLType != o.Forge.PURLType:
		return id.Forge.PURLType < o.Forge.PURLType
	default:
		return id.Forge.Separator < o.Forge.Separator
	}
}

// Compare returns -1, 0 or 1 following Less.
func (id ExternalID) Compare(o ExternalID) int {
	switch {
	case id == o:
		return 0
	case id.Less(o):
		return -1
	default:
		return 1
	}
}

// ParsePURL converts a package-url string into an id.
func ParsePURL(s string) (ExternalID, error) {
	p, err := packageurl.FromString(s)
	if err != nil {
		return ExternalID{}, err
	}
	if p.Type == packageurl.TypeGolang && p.Namespace != "" {
		return NewNameVersion(ForgeGolang, p.Namespace+"/"+p.Name, p.Version), nil
	}
	return NewModule(ForgeForPURLType(p.Type), p.Namespace, p.Name, p.Version), nil
}
