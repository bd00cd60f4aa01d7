// Package purl implements the canonical package identifier used as the node
// key of every dependency graph: the package URL.
//
// # Overview
//
// A [PackageURL] is a structured tuple:
//
//	pkg:<type>/<namespace>/<name>@<version>?<qualifiers>#<subpath>
//
// Only type and name are mandatory. Namespace, version, qualifiers and subpath
// are omitted from the string form when empty, never serialized as empty
// segments.
//
// # Encoding
//
// [Encode] percent-encodes each segment individually. Characters outside the
// unreserved set (A-Z a-z 0-9 . - _ ~) are escaped, including "/" and "@"
// inside a name, so multi-segment names such as Go module paths round-trip
// exactly:
//
//	p := purl.PackageURL{Type: purl.Golang, Name: "github.com/apple/swift-cmark", Version: "v0.1.0"}
//	purl.Encode(p) // pkg:golang/github.com%2Fapple%2Fswift-cmark@v0.1.0
//
// Qualifiers are serialized with keys sorted lexicographically. Encoding is
// deterministic and [Decode] is its inverse for every normalized identifier.
//
// # Constructing identifiers from extractor output
//
// Extractors frequently hand over fields that are already percent-encoded
// (for example "%40angular" for an npm scope). [New] unescapes valid %XX
// triplets in such raw fields before normalizing, so they are never escaped
// twice. [Canonicalize] re-encodes an identifier string and is idempotent.
//
// # Decoding
//
// [Decode] returns a typed [*DecodeError] for malformed input: a missing
// "pkg:" scheme, an empty or invalid type, an empty name, a trailing "@"
// without a version, an unescaped "@" inside the name, a broken percent
// escape, or an empty or duplicate qualifier key. Batch callers can skip the
// offending entry and continue.
//
// [Decoder] memoizes decoding with an LRU cache for hot loops such as graph
// validation.
package purl
