package normalize_test

import (
	"fmt"

	"github.com/matzehuels/stackbom/pkg/bom"
	"github.com/matzehuels/stackbom/pkg/extract"
	"github.com/matzehuels/stackbom/pkg/normalize"
	"github.com/matzehuels/stackbom/pkg/purl"
)

func ExampleNormalize() {
	records := []extract.Record{
		extract.RawPackage{Namespace: "@babel", Name: "core", Version: extract.String("7.23.0")},
		extract.RawPackage{
			Namespace:  "@babel",
			Name:       "core",
			Version:    extract.String("7.23.0"),
			Properties: []bom.Property{{Name: "Integrity", Value: "sha512-abc"}},
		},
	}

	comps, _ := normalize.Normalize(records, "web/package-lock.json", purl.Npm, normalize.Config{})
	for _, c := range comps {
		fmt.Println(c.BomRef)
		for _, p := range c.Properties {
			fmt.Printf("  %s=%s\n", p.Name, p.Value)
		}
	}
	// Output:
	// pkg:npm/%40babel/core@7.23.0
	//   SrcFile=web/package-lock.json
	//   Integrity=sha512-abc
}
