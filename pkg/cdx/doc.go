// Package cdx converts dependency graphs to and from CycloneDX documents.
//
// # Documents
//
// [Document] models the subset of CycloneDX that a dependency graph needs:
// metadata with the root component, the component list, the dependency list
// and document properties. Two schema versions are supported side by side,
// selected by [Document.SpecVersion]:
//
//   - "1.5": component evidence identity is written as a single object.
//   - "1.6": evidence identity is an array and dependencies may list the
//     refs they provide.
//
// Fields a document carries that this package does not model are kept in the
// Extra maps of [Document], [Metadata], [Component] and [Evidence] and are
// written back unchanged.
//
// # Binary form
//
// [ToBinary] and [FromBinary] implement a compact encoding that follows the
// field numbers of the CycloneDX protocol buffer schema. Extra JSON members
// are carried in a reserved field and unknown binary fields are re-emitted as
// read, so FromBinary(ToBinary(d)) reproduces d exactly.
//
// # Files
//
// [WriteFile] replaces its target atomically. [LoadBinaryFile] reports a
// missing or unreadable file as absent rather than as an error, so callers
// can tell "no previous BOM" from "corrupt BOM".
package cdx
