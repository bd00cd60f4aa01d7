package cache

// ScopedKeyer prefixes every key of an inner [Keyer], so that several teams
// can share one Redis cache without sharing entries.
//
//	k := NewScopedKeyer(NewDefaultKeyer(), "team-a:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix. A nil inner selects
// [DefaultKeyer].
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// ExtractKey implements [Keyer].
func (k *ScopedKeyer) ExtractKey(extractorType string, content []byte, opts ExtractKeyOpts) string {
	return k.prefix + k.inner.ExtractKey(extractorType, content, opts)
}

// DocumentKey implements [Keyer].
func (k *ScopedKeyer) DocumentKey(projectRoot string) string {
	return k.prefix + k.inner.DocumentKey(projectRoot)
}
