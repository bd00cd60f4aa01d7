package purl

import (
	"fmt"
	"strings"

	errs "github.com/matzehuels/stackbom/pkg/errors"
)

// DecodeError reports a malformed package URL string.
type DecodeError struct {
	Input  string // the string that failed to decode
	Reason string // what was wrong with it
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("purl: invalid %q: %s", e.Input, e.Reason)
}

// Unwrap exposes the error as errs.ErrCodeInvalidIdentifier so callers can
// test it with errs.Is.
func (e *DecodeError) Unwrap() error {
	return errs.New(errs.ErrCodeInvalidIdentifier, "%s", e.Reason)
}

// Decode parses s into a normalized [PackageURL].
func Decode(s string) (PackageURL, error) {
	fail := func(format string, args ...any) (PackageURL, error) {
		return PackageURL{}, &DecodeError{Input: s, Reason: fmt.Sprintf(format, args...)}
	}

	if len(s) < len(scheme) || !strings.EqualFold(s[:len(scheme)], scheme) {
		return fail("missing %q scheme", scheme)
	}
	rest := strings.TrimLeft(s[len(scheme):], "/")

	var p PackageURL

	if i := strings.LastIndexByte(rest, '#'); i >= 0 {
		sub, err := unescapeSegments(rest[i+1:])
		if err != nil {
			return fail("subpath: %v", err)
		}
		p.Subpath = sub
		rest = rest[:i]
	}

	if i := strings.LastIndexByte(rest, '?'); i >= 0 {
		q, err := parseQualifiers(rest[i+1:])
		if err != nil {
			return fail("%v", err)
		}
		p.Qualifiers = q
		rest = rest[:i]
	}

	typ, rest, ok := strings.Cut(rest, "/")
	if typ == "" {
		return fail("empty type")
	}
	p.Type = Ecosystem(strings.ToLower(typ))
	if !p.Type.Valid() {
		return fail("invalid type %q", typ)
	}
	rest = strings.Trim(rest, "/")
	if !ok || rest == "" {
		return fail("empty name")
	}

	tail := rest
	if i := strings.LastIndexByte(rest, '/'); i >= 0 {
		ns, err := unescapeSegments(rest[:i])
		if err != nil {
			return fail("namespace: %v", err)
		}
		p.Namespace = ns
		tail = rest[i+1:]
	}

	if i := strings.LastIndexByte(tail, '@'); i >= 0 {
		if i == len(tail)-1 {
			return fail("'@' without a version")
		}
		v, err := unescape(tail[i+1:])
		if err != nil {
			return fail("version: %v", err)
		}
		p.Version = v
		tail = tail[:i]
	}
	if strings.IndexByte(tail, '@') >= 0 {
		return fail("unescaped '@' in name")
	}
	name, err := unescape(tail)
	if err != nil {
		return fail("name: %v", err)
	}
	if name == "" {
		return fail("empty name")
	}
	p.Name = name

	return p.Normalize(), nil
}

// MustDecode is like [Decode] but panics on error. It is intended for tests
// and package-level literals.
func MustDecode(s string) PackageURL {
	p, err := Decode(s)
	if err != nil {
		panic(err)
	}
	return p
}

func parseQualifiers(s string) (Qualifiers, error) {
	if s == "" {
		return nil, nil
	}
	seen := make(map[string]bool)
	var q Qualifiers
	for _, pair := range strings.Split(s, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		k = strings.ToLower(k)
		if k == "" {
			return nil, fmt.Errorf("empty qualifier key in %q", pair)
		}
		if !validKey(k) {
			return nil, fmt.Errorf("invalid qualifier key %q", k)
		}
		if seen[k] {
			return nil, fmt.Errorf("duplicate qualifier key %q", k)
		}
		seen[k] = true
		val, err := unescape(v)
		if err != nil {
			return nil, fmt.Errorf("qualifier %s: %v", k, err)
		}
		q = append(q, Qualifier{Key: k, Value: val})
	}
	return q, nil
}

func validKey(k string) bool {
	for i := 0; i < len(k); i++ {
		c := k[i]
		if !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '.' || c == '-' || c == '_') {
			return false
		}
	}
	return true
}

func unescapeSegments(s string) (string, error) {
	parts := strings.Split(s, "/")
	for i, seg := range parts {
		u, err := unescape(seg)
		if err != nil {
			return "", err
		}
		parts[i] = u
	}
	return strings.Join(parts, "/"), nil
}

func unhex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// unescape decodes %XX triplets and rejects malformed ones.
func unescape(s string) (string, error) {
	if strings.IndexByte(s, '%') < 0 {
		return s, nil
	}
	buf := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '%' {
			buf = append(buf, s[i])
			continue
		}
		if i+2 >= len(s) {
			return "", fmt.Errorf("truncated escape %q", s[i:])
		}
		hi, ok1 := unhex(s[i+1])
		lo, ok2 := unhex(s[i+2])
		if !ok1 || !ok2 {
			return "", fmt.Errorf("invalid escape %q", s[i:i+3])
		}
		buf = append(buf, hi<<4|lo)
		i += 2
	}
	return string(buf), nil
}

// unescapeLenient decodes valid %XX triplets and keeps everything else as is.
func unescapeLenient(s string) string {
	if strings.IndexByte(s, '%') < 0 {
		return s
	}
	buf := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			hi, ok1 := unhex(s[i+1])
			lo, ok2 := unhex(s[i+2])
			if ok1 && ok2 {
				buf = append(buf, hi<<4|lo)
				i += 2
				continue
			}
		}
		buf = append(buf, s[i])
	}
	return string(buf)
}
