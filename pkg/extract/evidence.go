package extract

import "github.com/matzehuels/stackbom/pkg/bom"

// Identification techniques.
const (
	TechniqueManifest = "manifest-analysis"
)

// ManifestEvidence returns identity evidence for a package read from a
// manifest at sourceFile with the given confidence.
func ManifestEvidence(sourceFile string, confidence float64) *bom.Evidence {
	return &bom.Evidence{Identity: []bom.Identity{{
		Field:      "purl",
		Confidence: bom.Float(confidence),
		Methods: []bom.Method{{
			Technique:  TechniqueManifest,
			Confidence: bom.Float(confidence),
			Value:      sourceFile,
		}},
	}}}
}
