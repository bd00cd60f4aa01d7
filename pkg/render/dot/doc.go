// Package dot renders an assembled dependency graph as a node-link diagram.
//
// # Usage
//
// Convert a graph to Graphviz DOT, then render it to SVG:
//
//	src := dot.ToDOT(g, dot.Options{Detailed: true})
//	svg, err := dot.RenderSVG(ctx, src)
//
// The DOT source can also be written out and processed with external
// Graphviz tools.
//
// # Styling
//
// The project parent is drawn bold at the top. Optional and excluded
// components get dashed outlines, and refs that an edge mentions without a
// matching component are drawn red so dangling references stand out.
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for in-process SVG
// rendering. No Graphviz installation is required.
package dot
