package purl

import (
	"fmt"
	"sort"
	"strings"
)

// Qualifier is a single key/value pair of a package URL.
type Qualifier struct {
	Key   string
	Value string
}

// Qualifiers is an ordered qualifier list. After normalization keys are
// lower-case, unique, sorted and values are non-empty.
type Qualifiers []Qualifier

// Get returns the value for key and whether it is present.
func (q Qualifiers) Get(key string) (string, bool) {
	for _, kv := range q {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// Map returns the qualifiers as a map. It returns nil for an empty list.
func (q Qualifiers) Map() map[string]string {
	if len(q) == 0 {
		return nil
	}
	m := make(map[string]string, len(q))
	for _, kv := range q {
		m[kv.Key] = kv.Value
	}
	return m
}

// QualifiersFromMap builds a normalized qualifier list from m.
func QualifiersFromMap(m map[string]string) Qualifiers {
	q := make(Qualifiers, 0, len(m))
	for k, v := range m {
		q = append(q, Qualifier{Key: k, Value: v})
	}
	return q.normalize()
}

func (q Qualifiers) normalize() Qualifiers {
	if len(q) == 0 {
		return nil
	}
	out := make(Qualifiers, 0, len(q))
	seen := make(map[string]bool, len(q))
	for _, kv := range q {
		k := strings.ToLower(kv.Key)
		if k == "" || kv.Value == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, Qualifier{Key: k, Value: kv.Value})
	}
	if len(out) == 0 {
		return nil
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// PackageURL is a structured package identifier. Values are compared with
// [PackageURL.Equal]; two identifiers are equal iff every field matches after
// normalization.
type PackageURL struct {
	Type       Ecosystem
	Namespace  string
	Name       string
	Version    string
	Qualifiers Qualifiers
	Subpath    string
}

// New builds a normalized, validated identifier from raw extractor fields.
// Valid %XX escapes already present in the fields are decoded first.
func New(typ Ecosystem, namespace, name, version string, qualifiers map[string]string, subpath string) (PackageURL, error) {
	q := make(Qualifiers, 0, len(qualifiers))
	for k, v := range qualifiers {
		q = append(q, Qualifier{Key: k, Value: unescapeLenient(v)})
	}
	p := PackageURL{
		Type:       typ,
		Namespace:  unescapeLenient(namespace),
		Name:       unescapeLenient(name),
		Version:    unescapeLenient(version),
		Qualifiers: q,
		Subpath:    unescapeLenient(subpath),
	}.Normalize()
	if err := p.Validate(); err != nil {
		return PackageURL{}, err
	}
	return p, nil
}

// Normalize returns a copy of p in canonical form: lower-case type, cleaned
// namespace and subpath segments, ecosystem-specific name casing, and sorted
// qualifiers with empty values dropped.
func (p PackageURL) Normalize() PackageURL {
	p.Type = Ecosystem(strings.ToLower(string(p.Type)))
	p.Namespace = cleanSegments(p.Namespace, false)
	p.Namespace, p.Name = p.Type.normalizeName(p.Namespace, p.Name)
	p.Qualifiers = p.Qualifiers.normalize()
	p.Subpath = cleanSegments(p.Subpath, true)
	return p
}

// Validate reports whether p has a legal type, a name and qualifier keys
// that [Decode] accepts. Keys are compared after lower-casing.
func (p PackageURL) Validate() error {
	if p.Type == "" {
		return &DecodeError{Input: p.String(), Reason: "empty type"}
	}
	if !p.Type.Valid() {
		return &DecodeError{Input: p.String(), Reason: fmt.Sprintf("invalid type %q", p.Type)}
	}
	if p.Name == "" {
		return &DecodeError{Input: p.String(), Reason: "empty name"}
	}
	for _, q := range p.Qualifiers {
		if !validKey(strings.ToLower(q.Key)) {
			return &DecodeError{Input: p.String(), Reason: fmt.Sprintf("invalid qualifier key %q", q.Key)}
		}
	}
	return nil
}

// Equal reports whether p and o identify the same package.
func (p PackageURL) Equal(o PackageURL) bool {
	a, b := p.Normalize(), o.Normalize()
	if a.Type != b.Type || a.Namespace != b.Namespace || a.Name != b.Name ||
		a.Version != b.Version || a.Subpath != b.Subpath || len(a.Qualifiers) != len(b.Qualifiers) {
		return false
	}
	for i := range a.Qualifiers {
		if a.Qualifiers[i] != b.Qualifiers[i] {
			return false
		}
	}
	return true
}

// String returns the encoded form. It is equivalent to [Encode].
func (p PackageURL) String() string {
	return Encode(p)
}

// WithoutVersion returns p with the version cleared.
func (p PackageURL) WithoutVersion() PackageURL {
	p.Version = ""
	return p
}

// cleanSegments splits s on "/" and drops empty segments. Subpaths also drop
// "." and ".." segments.
func cleanSegments(s string, subpath bool) string {
	if s == "" {
		return ""
	}
	parts := strings.Split(s, "/")
	out := parts[:0:0]
	for _, seg := range parts {
		if seg == "" || (subpath && (seg == "." || seg == "..")) {
			continue
		}
		out = append(out, seg)
	}
	return strings.Join(out, "/")
}
