// Package extract defines the boundary between per-ecosystem manifest
// parsers and the normalization core.
//
// # Overview
//
// An [Extractor] turns the bytes of one manifest or lockfile into a [Result]:
//
//   - Packages: raw package records ([Record])
//   - Dependencies: raw edge lists keyed by package URL ([RawDependency])
//   - Roots: the direct dependencies of the project, when the format says so
//   - Parent: the project itself, when the format names it
//
// Extractors never fail on nil content; they return an empty Result. A
// failing extractor is treated by the pipeline as having produced an empty
// graph, so one broken lockfile never aborts a run.
//
// # Records
//
// [RawPackage] uses pointer fields for values whose absence must survive
// normalization (version, license, author, description). Extractors that
// keep richer typed records implement [Record] themselves.
//
// # Built-in extractors
//
// The subpackages npm, golang, cargo, python, cocoapods and composer each
// export an extractor; package builtin wires them into a [Registry].
package extract
