package purl

import "strings"

const scheme = "pkg:"

const upperhex = "0123456789ABCDEF"

// Encode returns the canonical string form of p. The identifier is normalized
// first, so equal identifiers always encode to the same string. Qualifier
// keys are written as is; p must pass [PackageURL.Validate] for the result
// to decode.
func Encode(p PackageURL) string {
	p = p.Normalize()

	var b strings.Builder
	b.WriteString(scheme)
	b.WriteString(string(p.Type))
	b.WriteByte('/')
	if p.Namespace != "" {
		for _, seg := range strings.Split(p.Namespace, "/") {
			b.WriteString(escape(seg))
			b.WriteByte('/')
		}
	}
	b.WriteString(escape(p.Name))
	if p.Version != "" {
		b.WriteByte('@')
		b.WriteString(escape(p.Version))
	}
	for i, q := range p.Qualifiers {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(q.Key)
		b.WriteByte('=')
		b.WriteString(escape(q.Value))
	}
	if p.Subpath != "" {
		b.WriteByte('#')
		for i, seg := range strings.Split(p.Subpath, "/") {
			if i > 0 {
				b.WriteByte('/')
			}
			b.WriteString(escape(seg))
		}
	}
	return b.String()
}

// Canonicalize decodes s and encodes it again. The result is a fixed point:
// Canonicalize(Canonicalize(s)) == Canonicalize(s).
func Canonicalize(s string) (string, error) {
	p, err := Decode(s)
	if err != nil {
		return "", err
	}
	return Encode(p), nil
}

func unreserved(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
		c == '.' || c == '-' || c == '_' || c == '~'
}

// escape percent-encodes every byte outside the unreserved set.
func escape(s string) string {
	n := 0
	for i := 0; i < len(s); i++ {
		if !unreserved(s[i]) {
			n++
		}
	}
	if n == 0 {
		return s
	}
	buf := make([]byte, 0, len(s)+2*n)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreserved(c) {
			buf = append(buf, c)
			continue
		}
		buf = append(buf, '%', upperhex[c>>4], upperhex[c&15])
	}
	return string(buf)
}
