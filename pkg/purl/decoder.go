package purl

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultDecoderSize is the number of entries a [Decoder] keeps when no size
// is given.
const DefaultDecoderSize = 4096

type decoded struct {
	p   PackageURL
	err error
}

// Decoder memoizes [Decode] results. It is safe for concurrent use.
type Decoder struct {
	cache *lru.Cache[string, decoded]
}

// NewDecoder returns a Decoder holding up to size entries. A size <= 0 uses
// [DefaultDecoderSize].
func NewDecoder(size int) *Decoder {
	if size <= 0 {
		size = DefaultDecoderSize
	}
	c, err := lru.New[string, decoded](size)
	if err != nil {
		// lru.New only fails for a non-positive size.
		panic(err)
	}
	return &Decoder{cache: c}
}

// Decode is [Decode] with memoization. Failures are cached too.
func (d *Decoder) Decode(s string) (PackageURL, error) {
	if v, ok := d.cache.Get(s); ok {
		return v.p, v.err
	}
	p, err := Decode(s)
	d.cache.Add(s, decoded{p: p, err: err})
	return p, err
}

// Len returns the number of memoized entries.
func (d *Decoder) Len() int {
	return d.cache.Len()
}
