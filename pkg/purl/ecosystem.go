package purl

import "strings"

// Ecosystem is the package URL type: the packaging ecosystem an identifier
// belongs to. The zero value is invalid.
type Ecosystem string

// Known ecosystems. Any lower-case type matching [a-z][a-z0-9.+-]* is legal;
// these are the ones stackbom has specific rules or extractors for.
const (
	Npm       Ecosystem = "npm"
	Maven     Ecosystem = "maven"
	Golang    Ecosystem = "golang"
	Cargo     Ecosystem = "cargo"
	NuGet     Ecosystem = "nuget"
	PyPI      Ecosystem = "pypi"
	Gem       Ecosystem = "gem"
	Conan     Ecosystem = "conan"
	CocoaPods Ecosystem = "cocoapods"
	Swift     Ecosystem = "swift"
	GitHub    Ecosystem = "github"
	Bitbucket Ecosystem = "bitbucket"
	Composer  Ecosystem = "composer"
	Hex       Ecosystem = "hex"
	Pub       Ecosystem = "pub"
	Conda     Ecosystem = "conda"
	OCI       Ecosystem = "oci"
	Docker    Ecosystem = "docker"
	Deb       Ecosystem = "deb"
	RPM       Ecosystem = "rpm"
	APK       Ecosystem = "apk"
	Generic   Ecosystem = "generic"
)

// Known lists every ecosystem constant in this package.
var Known = []Ecosystem{
	Npm, Maven, Golang, Cargo, NuGet, PyPI, Gem, Conan, CocoaPods, Swift,
	GitHub, Bitbucket, Composer, Hex, Pub, Conda, OCI, Docker, Deb, RPM, APK,
	Generic,
}

// DefaultContainers are the ecosystems whose components are expected to
// depend on packages of other ecosystems.
var DefaultContainers = []Ecosystem{OCI, Generic}

// String returns the type as written in a package URL.
func (e Ecosystem) String() string { return string(e) }

// IsContainer reports whether e is one of [DefaultContainers].
func (e Ecosystem) IsContainer() bool {
	for _, c := range DefaultContainers {
		if e == c {
			return true
		}
	}
	return false
}

// Valid reports whether e is a syntactically legal package URL type.
func (e Ecosystem) Valid() bool {
	if e == "" {
		return false
	}
	for i, r := range string(e) {
		switch {
		case r >= 'a' && r <= 'z':
		case i > 0 && (r >= '0' && r <= '9' || r == '.' || r == '+' || r == '-'):
		default:
			return false
		}
	}
	return true
}

// ParseEcosystem lower-cases s and validates it as a package URL type.
func ParseEcosystem(s string) (Ecosystem, bool) {
	e := Ecosystem(strings.ToLower(s))
	return e, e.Valid()
}

// normalizeName applies the ecosystem-specific case and separator rules to
// namespace and name.
func (e Ecosystem) normalizeName(namespace, name string) (string, string) {
	switch e {
	case PyPI:
		name = strings.ReplaceAll(strings.ToLower(name), "_", "-")
	case GitHub, Bitbucket, Composer:
		namespace = strings.ToLower(namespace)
		name = strings.ToLower(name)
	}
	return namespace, name
}
