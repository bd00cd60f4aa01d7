package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// KeyVersion is mixed into every extraction key. Bump it when the cached
// value format changes.
const KeyVersion = 1

// Keyer builds cache keys.
type Keyer interface {
	// ExtractKey identifies the normalized result of running one extractor
	// over one manifest's content.
	ExtractKey(extractorType string, content []byte, opts ExtractKeyOpts) string
	// DocumentKey identifies the persisted document of a project.
	DocumentKey(projectRoot string) string
}

// ExtractKeyOpts lists every input besides the content that changes an
// extraction result.
type ExtractKeyOpts struct {
	SourceFile    string `json:"src"`
	MergeSubspecs bool   `json:"merge_subspecs,omitempty"`
	DefaultType   string `json:"default_type,omitempty"`
}

// DefaultKeyer is the standard [Keyer].
type DefaultKeyer struct{}

// NewDefaultKeyer returns the standard keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// ExtractKey returns "extract:<type>:<sha256>" where the hash covers the
// content hash and opts.
func (DefaultKeyer) ExtractKey(extractorType string, content []byte, opts ExtractKeyOpts) string {
	return hashKey("extract:"+extractorType, KeyVersion, Hash(content), opts)
}

// DocumentKey returns "bom:<sha256 of projectRoot>".
func (DefaultKeyer) DocumentKey(projectRoot string) string {
	return "bom:" + Hash([]byte(projectRoot))
}

// hashKey returns prefix:sha256(json(parts)).
func hashKey(prefix string, parts ...any) string {
	data, _ := json.Marshal(parts)
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s:%s", prefix, hex.EncodeToString(hash[:]))
}

// Hash computes a SHA-256 hash of the input data.
// Returns the full 64-character hex string.
func Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
