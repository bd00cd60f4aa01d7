package golang

import (
	"context"
	"reflect"
	"testing"
)

const goMod = `module github.com/example/app

go 1.22

require (
	github.com/spf13/cobra v1.10.1
	gopkg.in/yaml.v3 v3.0.1
	github.com/redis/go-redis/v9 v9.17.2
	golang.org/x/sys v0.36.0 // indirect
	github.com/old/thing v1.0.0
	example.com/local v0.0.0
)

replace github.com/old/thing => github.com/new/thing v1.2.0

replace example.com/local => ../local
`

func TestGoMod_Extract(t *testing.T) {
	res, err := (&GoMod{}).Extract(context.Background(), []byte(goMod), "go.mod")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if res.Parent == nil {
		t.Fatal("Parent = nil")
	}
	parent := res.Parent.Package()
	if parent.Namespace != "github.com/example" || parent.Name != "app" {
		t.Errorf("Parent = %s/%s, want github.com/example/app", parent.Namespace, parent.Name)
	}

	if len(res.Packages) != 6 {
		t.Fatalf("len(Packages) = %d, want 6", len(res.Packages))
	}
	if len(res.Roots) != 5 {
		t.Errorf("len(Roots) = %d, want 5", len(res.Roots))
	}

	if len(res.Dependencies) != 1 {
		t.Fatalf("len(Dependencies) = %d, want 1", len(res.Dependencies))
	}
	want := []string{
		"pkg:golang/github.com/spf13/cobra@v1.10.1",
		"pkg:golang/gopkg.in/yaml.v3@v3.0.1",
		"pkg:golang/github.com/redis/go-redis%2Fv9@v9.17.2",
		"pkg:golang/github.com/new/thing@v1.2.0",
		"pkg:golang/example.com/local@v0.0.0",
	}
	dep := res.Dependencies[0]
	if dep.Ref != "pkg:golang/github.com/example/app" {
		t.Errorf("Ref = %q", dep.Ref)
	}
	if !reflect.DeepEqual(dep.DependsOn, want) {
		t.Errorf("DependsOn = %v\nwant %v", dep.DependsOn, want)
	}

	for _, r := range res.Packages {
		p := r.Package()
		switch p.Name {
		case "sys":
			if p.Evidence == nil || *p.Evidence.Identity[0].Confidence != 0.8 {
				t.Errorf("indirect confidence = %v, want 0.8", p.Evidence)
			}
		case "thing":
			if len(p.Properties) != 1 || p.Properties[0].Name != PropReplacedFrom {
				t.Errorf("replaced properties = %v", p.Properties)
			}
		case "local":
			if len(p.Properties) != 1 || p.Properties[0].Name != PropLocalReplace {
				t.Errorf("local replace properties = %v", p.Properties)
			}
		}
	}
}

func TestGoMod_NilAndInvalid(t *testing.T) {
	res, err := (&GoMod{}).Extract(context.Background(), nil, "go.mod")
	if err != nil || !res.IsEmpty() {
		t.Errorf("Extract(nil) = %+v, %v; want empty, nil", res, err)
	}

	if _, err := (&GoMod{}).Extract(context.Background(), []byte("require github.com/x\n"), "go.mod"); err == nil {
		t.Error("Extract(invalid) error = nil, want error")
	}
}

func TestSplitPath(t *testing.T) {
	tests := []struct {
		path, ns, name string
	}{
		{"github.com/spf13/cobra", "github.com/spf13", "cobra"},
		{"github.com/redis/go-redis/v9", "github.com/redis", "go-redis/v9"},
		{"gopkg.in/yaml.v3", "gopkg.in", "yaml.v3"},
		{"rsc.io", "", "rsc.io"},
	}
	for _, tt := range tests {
		ns, name := SplitPath(tt.path)
		if ns != tt.ns || name != tt.name {
			t.Errorf("SplitPath(%q) = %q, %q; want %q, %q", tt.path, ns, name, tt.ns, tt.name)
		}
	}
}
