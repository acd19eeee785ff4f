// Package chart draws the small cash-flow sparkline used on the dashboard.
package chart

import (
	"fmt"
	"html/template"
	"math"
	"strconv"
	"strings"
)

const (
	// Width is the fixed viewBox width; the element scales to its container.
	Width = 320
	// DefaultHeight is used when Render is given a non-positive height.
	DefaultHeight = 96

	pad = 10

	// Placeholder is shown instead of a line when there is nothing to draw.
	Placeholder = "Belum ada data tren"
)

// Point is one labelled sample, e.g. a month and its net cash flow.
type Point struct {
	Label string
	Value float64
}

// Chart holds the computed geometry. Path and Area are empty unless HasData.
type Chart struct {
	Height  int
	Path    string
	Area    string
	MinY    float64
	MaxY    float64
	Marker  [2]float64
	HasData bool
}

// Render normalizes values to floor(min)..ceil(max) (range at least 1) and
// spreads points evenly across the width. Fewer than two points produce a
// placeholder chart.
func Render(points []Point, height int) Chart {
	if height <= 0 {
		height = DefaultHeight
	}
	c := Chart{Height: height}
	if len(points) < 2 {
		return c
	}

	lo, hi := points[0].Value, points[0].Value
	for _, p := range points[1:] {
		lo = math.Min(lo, p.Value)
		hi = math.Max(hi, p.Value)
	}
	c.MinY = math.Floor(lo)
	c.MaxY = math.Ceil(hi)
	yRange := math.Max(1, c.MaxY-c.MinY)

	usableW := float64(Width - pad*2)
	usableH := float64(height - pad*2)
	last := float64(len(points) - 1)

	var b strings.Builder
	for i, p := range points {
		x := pad + (float64(i)/last)*usableW
		y := pad + (1-(p.Value-c.MinY)/yRange)*usableH
		if i == 0 {
			b.WriteString("M ")
		} else {
			b.WriteString(" L ")
		}
		b.WriteString(coord(x))
		b.WriteByte(' ')
		b.WriteString(coord(y))
	}
	c.Path = b.String()
	c.Area = c.Path +
		" L " + coord(pad+usableW) + " " + coord(pad+usableH) +
		" L " + coord(pad) + " " + coord(pad+usableH) + " Z"

	norm := clamp((points[len(points)-1].Value-c.MinY)/yRange, 0, 1)
	c.Marker = [2]float64{pad + usableW, pad + (1-norm)*usableH}
	c.HasData = true
	return c
}

// SVG returns the chart as an inline element. gradientID must be unique per page.
func (c Chart) SVG(gradientID string) template.HTML {
	var b strings.Builder
	fmt.Fprintf(&b, `<svg width="100%%" height="%d" viewBox="0 0 %d %d" class="chart" role="img" aria-label="chart">`, c.Height, Width, c.Height)
	fmt.Fprintf(&b, `<defs><linearGradient id="%s" x1="0" x2="0" y1="0" y2="1">`+
		`<stop offset="0%%" stop-color="var(--accent)" stop-opacity="0.22"/>`+
		`<stop offset="80%%" stop-color="var(--accent)" stop-opacity="0"/></linearGradient></defs>`,
		template.HTMLEscapeString(gradientID))
	fmt.Fprintf(&b, `<rect x="0" y="0" width="%d" height="%d" rx="14" fill="rgba(255,255,255,0.55)" stroke="rgba(0,0,0,0.07)"/>`, Width, c.Height)
	if c.HasData {
		fmt.Fprintf(&b, `<path d="%s" fill="url(#%s)"/>`, c.Area, template.HTMLEscapeString(gradientID))
		fmt.Fprintf(&b, `<path d="%s" fill="none" stroke="var(--accent)" stroke-width="2.4" stroke-linecap="round"/>`, c.Path)
		fmt.Fprintf(&b, `<circle cx="%s" cy="%s" r="5.8" fill="white" stroke="var(--accent)" stroke-width="2"/>`, coord(c.Marker[0]), coord(c.Marker[1]))
	} else {
		fmt.Fprintf(&b, `<text x="50%%" y="52%%" text-anchor="middle" font-size="12" fill="rgba(0,0,0,0.45)">%s</text>`, Placeholder)
	}
	b.WriteString(`</svg>`)
	return template.HTML(b.String())
}

func coord(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func clamp(n, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, n))
}
