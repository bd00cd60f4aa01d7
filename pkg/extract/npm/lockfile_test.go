package npm

import (
	"context"
	"reflect"
	"testing"

	"github.com/matzehuels/stackbom/pkg/bom"
	errs "github.com/matzehuels/stackbom/pkg/errors"
)

func TestPackageLock_Supports(t *testing.T) {
	e := &PackageLock{}

	tests := []struct {
		filename string
		want     bool
	}{
		{"package-lock.json", true},
		{"npm-shrinkwrap.json", true},
		{"package.json", false},
		{"yarn.lock", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if got := e.Supports(tt.filename); got != tt.want {
				t.Errorf("Supports(%q) = %v, want %v", tt.filename, got, tt.want)
			}
		})
	}
}

func TestPackageLock_NilContent(t *testing.T) {
	res, err := (&PackageLock{}).Extract(context.Background(), nil, "package-lock.json")
	if err != nil {
		t.Fatalf("Extract(nil) error = %v", err)
	}
	if !res.IsEmpty() {
		t.Errorf("Extract(nil) = %+v, want empty result", res)
	}
}

func TestPackageLock_Invalid(t *testing.T) {
	_, err := (&PackageLock{}).Extract(context.Background(), []byte("{"), "package-lock.json")
	if !errs.Is(err, errs.ErrCodeInvalidManifest) {
		t.Errorf("Extract(invalid) error = %v, want %s", err, errs.ErrCodeInvalidManifest)
	}
}

const lockV3 = `{
  "name": "app",
  "version": "1.0.0",
  "lockfileVersion": 3,
  "packages": {
    "": {
      "name": "app",
      "version": "1.0.0",
      "dependencies": {"a": "^1.0.0", "@scope/c": "^3.0.0"},
      "devDependencies": {"d": "^1.0.0"}
    },
    "node_modules/a": {
      "version": "1.0.0",
      "resolved": "https://registry.npmjs.org/a/-/a-1.0.0.tgz",
      "integrity": "sha512-aaa",
      "license": "MIT",
      "dependencies": {"b": "^2.0.0"}
    },
    "node_modules/a/node_modules/b": {
      "version": "2.0.0"
    },
    "node_modules/b": {
      "version": "1.0.0"
    },
    "node_modules/@scope/c": {
      "version": "3.1.0",
      "dependencies": {"b": "^1.0.0"}
    },
    "node_modules/d": {
      "version": "1.2.0",
      "dev": true
    }
  }
}`

func TestPackageLock_ExtractV3(t *testing.T) {
	res, err := (&PackageLock{}).Extract(context.Background(), []byte(lockV3), "web/package-lock.json")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if res.Parent == nil {
		t.Fatal("Parent = nil, want app")
	}
	if got := res.Parent.Package().Name; got != "app" {
		t.Errorf("Parent name = %q, want app", got)
	}

	if len(res.Packages) != 5 {
		t.Fatalf("len(Packages) = %d, want 5", len(res.Packages))
	}

	edges := make(map[string][]string)
	for _, d := range res.Dependencies {
		edges[d.Ref] = d.DependsOn
	}

	want := map[string][]string{
		"pkg:npm/app@1.0.0":        {"pkg:npm/%40scope/c@3.1.0", "pkg:npm/a@1.0.0", "pkg:npm/d@1.2.0"},
		"pkg:npm/a@1.0.0":          {"pkg:npm/b@2.0.0"},
		"pkg:npm/b@2.0.0":          nil,
		"pkg:npm/b@1.0.0":          nil,
		"pkg:npm/%40scope/c@3.1.0": {"pkg:npm/b@1.0.0"},
		"pkg:npm/d@1.2.0":          nil,
	}
	if !reflect.DeepEqual(edges, want) {
		t.Errorf("edges = %v\nwant %v", edges, want)
	}

	if len(res.Roots) != 3 {
		t.Errorf("len(Roots) = %d, want 3", len(res.Roots))
	}

	for _, r := range res.Packages {
		p := r.Package()
		switch p.Name {
		case "a":
			if p.License == nil || *p.License != "MIT" {
				t.Errorf("a license = %v, want MIT", p.License)
			}
			if p.Scope != bom.ScopeRequired {
				t.Errorf("a scope = %q, want required", p.Scope)
			}
		case "d":
			if p.Scope != bom.ScopeOptional {
				t.Errorf("d scope = %q, want optional", p.Scope)
			}
		case "c":
			if p.Namespace != "@scope" {
				t.Errorf("c namespace = %q, want @scope", p.Namespace)
			}
		}
		if p.Evidence == nil {
			t.Errorf("%s: missing evidence", p.Name)
		}
	}
}

const lockV1 = `{
  "name": "legacy",
  "version": "0.1.0",
  "lockfileVersion": 1,
  "dependencies": {
    "x": {
      "version": "1.0.0",
      "requires": {"y": "^1.0.0"},
      "dependencies": {
        "y": {"version": "1.5.0"}
      }
    },
    "y": {"version": "2.0.0"}
  }
}`

func TestPackageLock_ExtractV1(t *testing.T) {
	res, err := (&PackageLock{}).Extract(context.Background(), []byte(lockV1), "package-lock.json")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	edges := make(map[string][]string)
	for _, d := range res.Dependencies {
		edges[d.Ref] = d.DependsOn
	}

	if got := edges["pkg:npm/x@1.0.0"]; !reflect.DeepEqual(got, []string{"pkg:npm/y@1.5.0"}) {
		t.Errorf("x dependsOn = %v, want nested y@1.5.0", got)
	}
	if got := edges["pkg:npm/legacy@0.1.0"]; !reflect.DeepEqual(got, []string{"pkg:npm/x@1.0.0", "pkg:npm/y@2.0.0"}) {
		t.Errorf("root dependsOn = %v", got)
	}
}

func TestParentDir(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"node_modules/a", ""},
		{"node_modules/a/node_modules/b", "node_modules/a"},
		{"node_modules/@s/a/node_modules/b", "node_modules/@s/a"},
	}
	for _, tt := range tests {
		if got := parentDir(tt.in); got != tt.want {
			t.Errorf("parentDir(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
