// Package bom defines the in-memory dependency graph: components keyed by
// their bom-ref, dependency edges between refs, and an optional parent
// component describing the project root.
//
// Empty slices are canonically nil. Edge ref sets are ordered but carry set
// semantics; use [RefSet], [Dedupe] and [Union] to maintain them.
package bom
