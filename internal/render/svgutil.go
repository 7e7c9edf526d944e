package render

import "bytes"

// svgStyleFixes repairs style spellings that oksvg rejects or misreads.
var svgStyleFixes = []struct{ from, to string }{
	{"fill:000000", "fill:#000000"},
	{"fill: 000000", "fill:#000000"},
	{"stroke: 000000", "stroke:#000000"},
	{"fill: #", "fill:#"},
	{"stroke: #", "stroke:#"},
	{"stop-color: #", "stop-color:#"},
}

func sanitizeSVG(svg []byte) []byte {
	out := svg
	for _, fix := range svgStyleFixes {
		out = bytes.ReplaceAll(out, []byte(fix.from), []byte(fix.to))
	}
	return out
}
