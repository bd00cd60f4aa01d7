package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/stackbom/pkg/assemble"
	"github.com/matzehuels/stackbom/pkg/bom"
	"github.com/matzehuels/stackbom/pkg/cdx"
	errs "github.com/matzehuels/stackbom/pkg/errors"
	"github.com/matzehuels/stackbom/pkg/purl"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, cdx.LatestSpecVersion, cfg.SpecVersion)
	assert.Equal(t, cdx.FormatJSON, cfg.OutputFormat())
	assert.Equal(t, "file", cfg.Cache.Backend)
	assert.Equal(t, 7*24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, assemble.DefaultConfig(), cfg.AssembleConfig())
	assert.Equal(t, []string{"oci", "generic"}, cfg.Validate.ContainerTypes)
	assert.Empty(t, cfg.File)
}

func TestLoad_TOML(t *testing.T) {
	isolate(t)
	path := writeFile(t, "stackbom.toml", `
spec_version = "1.5"
format = "binary"

[normalize]
merge_subspecs = true

[assemble]
partial_threshold = 0.8
link_subprojects = true

[validate]
container_types = ["oci", "generic", "npm"]

[cache]
backend = "memory"
ttl = "1h"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "1.5", cfg.SpecVersion)
	assert.Equal(t, cdx.FormatBinary, cfg.OutputFormat())
	assert.True(t, cfg.NormalizeConfig("/src").MergeSubspecs)
	assert.Equal(t, "/src", cfg.NormalizeConfig("/src").ProjectRoot)
	assert.Equal(t, bom.TypeLibrary, cfg.NormalizeConfig("").DefaultType)

	ac := cfg.AssembleConfig()
	assert.Equal(t, 0.8, ac.PartialThreshold)
	assert.Equal(t, assemble.DefaultPartialMinComponents, ac.PartialMinComponents)
	assert.True(t, ac.LinkSubprojects)

	assert.Equal(t, []purl.Ecosystem{purl.OCI, purl.Generic, purl.Npm}, cfg.ValidateOptions().ContainerTypes)
	assert.Equal(t, "memory", cfg.CacheOptions().Backend)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
}

func TestLoad_YAML(t *testing.T) {
	isolate(t)
	path := writeFile(t, "stackbom.yaml", "store:\n  backend: mongo\n  mongo_uri: mongodb://db:27017\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	so := cfg.StoreOptions()
	assert.Equal(t, "mongo", so.Backend)
	assert.Equal(t, "mongodb://db:27017", so.Mongo.URI)
	assert.Equal(t, "stackbom", so.Mongo.Database)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	isolate(t)
	path := writeFile(t, "stackbom.toml", "[assemble]\npartial_threshold = 0.8\n")
	t.Setenv("STACKBOM_ASSEMBLE_PARTIAL_THRESHOLD", "0.3")
	t.Setenv("STACKBOM_VALIDATE_EVIDENCE_ECOSYSTEMS", "npm,pypi,cargo")
	t.Setenv("STACKBOM_WORKERS", "4")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.3, cfg.Assemble.PartialThreshold)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, []purl.Ecosystem{purl.Npm, purl.PyPI, purl.Cargo}, cfg.ValidateOptions().EvidenceEcosystems)
}

func TestLoad_Invalid(t *testing.T) {
	isolate(t)
	tests := []struct {
		name    string
		content string
	}{
		{"spec version", `spec_version = "1.2"`},
		{"format", `format = "xml"`},
		{"threshold", "[assemble]\npartial_threshold = 1.5"},
		{"workers", "workers = -1"},
		{"ecosystem", "[validate]\ncontainer_types = [\"Not Valid\"]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "stackbom.toml", tt.content))
			assert.True(t, errs.Is(err, errs.ErrCodeInvalidConfig), "got %v", err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.True(t, errs.Is(err, errs.ErrCodeInvalidConfig))
}

func TestLoadDotEnv(t *testing.T) {
	const key = "STACKBOM_TEST_DOTENV_VALUE"
	t.Cleanup(func() { os.Unsetenv(key) })

	require.NoError(t, loadDotEnv(filepath.Join(t.TempDir(), "absent.env")))

	path := writeFile(t, ".env", key+"=from-dotenv\n")
	require.NoError(t, loadDotEnv(path))
	assert.Equal(t, "from-dotenv", os.Getenv(key))

	// Existing variables win over the file.
	t.Setenv(key, "from-env")
	require.NoError(t, loadDotEnv(path))
	assert.Equal(t, "from-env", os.Getenv(key))
}

func TestKeyer(t *testing.T) {
	cfg := Default()
	plain := cfg.Keyer().DocumentKey("/src/app")

	cfg.Cache.Namespace = "team-a"
	scoped := cfg.Keyer().DocumentKey("/src/app")
	assert.Equal(t, "team-a:"+plain, scoped)
}
