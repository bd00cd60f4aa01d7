// Package builtin wires the bundled extractors into a registry.
package builtin

import (
	"github.com/matzehuels/stackbom/pkg/extract"
	"github.com/matzehuels/stackbom/pkg/extract/cargo"
	"github.com/matzehuels/stackbom/pkg/extract/cocoapods"
	"github.com/matzehuels/stackbom/pkg/extract/composer"
	"github.com/matzehuels/stackbom/pkg/extract/golang"
	"github.com/matzehuels/stackbom/pkg/extract/npm"
	"github.com/matzehuels/stackbom/pkg/extract/python"
)

// Extractors returns one instance of every bundled extractor.
func Extractors() []extract.Extractor {
	return []extract.Extractor{
		&npm.PackageLock{},
		&golang.GoMod{},
		&cargo.CargoLock{},
		&python.PoetryLock{},
		&cocoapods.PodfileLock{},
		&composer.ComposerLock{},
	}
}

// Registry returns a registry over [Extractors].
func Registry() *extract.Registry {
	return extract.NewRegistry(Extractors()...)
}
