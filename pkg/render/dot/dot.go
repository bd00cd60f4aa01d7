package dot

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/stackbom/pkg/bom"
	errs "github.com/matzehuels/stackbom/pkg/errors"
)

// Options configures diagram generation.
type Options struct {
	// Detailed adds the ecosystem, scope and source file to node labels.
	// When false, only name and version are shown.
	Detailed bool
	// Direct limits the diagram to the parent and its direct dependencies.
	Direct bool
}

// ToDOT converts g to Graphviz DOT. Nodes and edges are emitted in graph
// order, so equal graphs yield equal output.
func ToDOT(g *bom.Graph, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	if g == nil {
		buf.WriteString("}\n")
		return buf.String()
	}
	buf.WriteString("\n")

	keep := func(string) bool { return true }
	if opts.Direct && g.Parent != nil {
		direct := map[string]bool{g.Parent.BomRef: true}
		if e := g.Edge(g.Parent.BomRef); e != nil {
			for _, r := range e.DependsOn {
				direct[r] = true
			}
		}
		keep = func(ref string) bool { return direct[ref] }
	}

	known := make(map[string]bool, len(g.Components)+1)
	if g.Parent != nil {
		known[g.Parent.BomRef] = true
		fmt.Fprintf(&buf, "  %q [%s];\n", g.Parent.BomRef, strings.Join(nodeAttrs(g.Parent, true, opts.Detailed), ", "))
	}
	for _, c := range g.Components {
		if known[c.BomRef] || !keep(c.BomRef) {
			continue
		}
		known[c.BomRef] = true
		fmt.Fprintf(&buf, "  %q [%s];\n", c.BomRef, strings.Join(nodeAttrs(c, false, opts.Detailed), ", "))
	}

	var missing []string
	seen := make(map[string]bool)
	for _, e := range g.Dependencies {
		if !keep(e.Ref) {
			continue
		}
		for _, ref := range append([]string{e.Ref}, e.DependsOn...) {
			if !known[ref] && !seen[ref] && keep(ref) {
				seen[ref] = true
				missing = append(missing, ref)
			}
		}
	}
	for _, ref := range missing {
		fmt.Fprintf(&buf, "  %q [label=%q, style=\"rounded,dashed\", color=red, fontcolor=red];\n", ref, ref)
	}

	buf.WriteString("\n")
	for _, e := range g.Dependencies {
		if !keep(e.Ref) {
			continue
		}
		for _, to := range e.DependsOn {
			if keep(to) {
				fmt.Fprintf(&buf, "  %q -> %q;\n", e.Ref, to)
			}
		}
		for _, to := range e.Provides {
			if keep(to) {
				fmt.Fprintf(&buf, "  %q -> %q [style=dotted, arrowhead=empty];\n", e.Ref, to)
			}
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

// Label returns the node label of c.
func Label(c *bom.Component, detailed bool) string {
	label := c.Name
	if c.Group != "" {
		label = c.Group + "/" + c.Name
	}
	if label == "" {
		label = c.BomRef
	}
	if c.Version != "" {
		label += "@" + c.Version
	}
	if !detailed {
		return label
	}

	var parts []string
	if eco := c.Ecosystem(); eco != "" {
		parts = append(parts, "ecosystem: "+string(eco))
	}
	if c.Scope != bom.ScopeUnset {
		parts = append(parts, "scope: "+string(c.Scope))
	}
	if src, ok := c.Property(bom.PropSrcFile); ok {
		parts = append(parts, "source: "+src)
	}
	if len(parts) == 0 {
		return label
	}
	return label + "\n" + strings.Join(parts, "\n")
}

func nodeAttrs(c *bom.Component, parent, detailed bool) []string {
	attrs := []string{fmt.Sprintf("label=%q", Label(c, detailed))}
	switch {
	case parent:
		attrs = append(attrs, "penwidth=2", "fillcolor=lightyellow")
	case c.Scope == bom.ScopeOptional || c.Scope == bom.ScopeExcluded:
		attrs = append(attrs, "style=\"rounded,filled,dashed\"", "fillcolor=lightgrey")
	}
	return attrs
}

// RenderSVG renders DOT source to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInternal, err, "init graphviz")
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidInput, err, "parse DOT")
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, errs.Wrap(errs.ErrCodeInternal, err, "render")
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces Graphviz's point-based svg header with one whose
// viewBox starts at the origin and whose size matches it.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	header := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`, w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(header))
}
