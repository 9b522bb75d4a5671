// Package plot renders a bpm series as a PNG on CTG-style chart paper.
package plot

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	gonumplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/ironsheep/ctg-digitizer-mcp/internal/bpm"
	"github.com/ironsheep/ctg-digitizer-mcp/internal/storage"
)

// Labels drawn on every plot.
const (
	Title  = "Extracted Fetal Heart Rate"
	XLabel = "Time"
	YLabel = "Heart Rate (bpm)"
)

// MinSize is the smallest width or height, in pixels, that leaves room for
// the axes and labels.
const MinSize = 120

// Options controls the plot appearance. Width and Height are in pixels.
// Colours are hex strings such as "#1f77b4"; invalid values fall back to
// the defaults.
type Options struct {
	Width          int    `toml:"width"`
	Height         int    `toml:"height"`
	LineColor      string `toml:"line_color"`
	GridColor      string `toml:"grid_color"`
	MajorGridColor string `toml:"major_grid_color"`
}

// DefaultOptions returns an 800x400 plot on pink chart paper.
func DefaultOptions() Options {
	return Options{
		Width:          800,
		Height:         400,
		LineColor:      "#1f77b4",
		GridColor:      "#f6d5d5",
		MajorGridColor: "#e59a9a",
	}
}

// Renderer draws bpm series.
type Renderer struct {
	opts                  Options
	line, grid, majorGrid color.Color
}

// NewRenderer parses the colours in opts.
func NewRenderer(opts Options) (*Renderer, error) {
	if opts.Width < MinSize || opts.Height < MinSize {
		return nil, fmt.Errorf("plot size %dx%d is too small", opts.Width, opts.Height)
	}
	def := DefaultOptions()
	return &Renderer{
		opts:      opts,
		line:      parseColor(opts.LineColor, def.LineColor),
		grid:      parseColor(opts.GridColor, def.GridColor),
		majorGrid: parseColor(opts.MajorGridColor, def.MajorGridColor),
	}, nil
}

func parseColor(hex, fallback string) color.Color {
	c, err := colorful.Hex(hex)
	if err != nil {
		c, _ = colorful.Hex(fallback)
	}
	return c
}

// Render draws series, sample index on x against bpm on y. The y axis is
// fixed to the bpm scale so plots are comparable.
func (r *Renderer) Render(series []int) (image.Image, error) {
	if len(series) == 0 {
		return nil, errors.New("cannot plot an empty series")
	}

	p, err := r.build(series)
	if err != nil {
		return nil, err
	}

	// At 72 dpi one point is one pixel.
	c := vgimg.NewWith(
		vgimg.UseWH(vg.Points(float64(r.opts.Width)), vg.Points(float64(r.opts.Height))),
		vgimg.UseDPI(72),
	)
	p.Draw(draw.New(c))
	return c.Image(), nil
}

func (r *Renderer) build(series []int) (*gonumplot.Plot, error) {
	p := gonumplot.New()
	p.Title.Text = Title
	p.X.Label.Text = XLabel
	p.Y.Label.Text = YLabel

	n := len(series)
	p.X.Min, p.X.Max = 0, float64(max(n-1, 1))
	p.Y.Min, p.Y.Max = bpm.Min, bpm.Max
	p.Y.Tick.Marker = bpmTicks()

	pts := make(plotter.XYs, n)
	for i, v := range series {
		pts[i] = plotter.XY{X: float64(i), Y: float64(v)}
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("plot line: %w", err)
	}
	line.LineStyle.Color = r.line
	line.LineStyle.Width = vg.Points(1.5)

	p.Add(paper{minor: r.grid, major: r.majorGrid}, line)

	if n == 1 {
		dot, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, fmt.Errorf("plot point: %w", err)
		}
		dot.GlyphStyle.Color = r.line
		dot.GlyphStyle.Shape = draw.CircleGlyph{}
		dot.GlyphStyle.Radius = vg.Points(3)
		p.Add(dot)
	}
	return p, nil
}

// bpmTicks labels every 30 bpm and marks every 10 bpm.
func bpmTicks() gonumplot.ConstantTicks {
	var ticks gonumplot.ConstantTicks
	for v := bpm.Min; v <= bpm.Max; v += 10 {
		t := gonumplot.Tick{Value: float64(v)}
		if (v-bpm.Min)%30 == 0 {
			t.Label = strconv.Itoa(v)
		}
		ticks = append(ticks, t)
	}
	return ticks
}

// paperColumns is the number of vertical divisions ruled on the paper.
const paperColumns = 20

// paper rules chart paper: a minor line every 10 bpm, a major line every
// 30 bpm, and evenly spaced vertical lines with every fifth one major.
type paper struct {
	minor, major color.Color
}

func (g paper) Plot(c draw.Canvas, plt *gonumplot.Plot) {
	_, trY := plt.Transforms(&c)
	minor := draw.LineStyle{Color: g.minor, Width: vg.Points(0.5)}
	major := draw.LineStyle{Color: g.major, Width: vg.Points(1)}

	for v := bpm.Min; v <= bpm.Max; v += 10 {
		sty := minor
		if (v-bpm.Min)%30 == 0 {
			sty = major
		}
		y := trY(float64(v))
		c.StrokeLine2(sty, c.Min.X, y, c.Max.X, y)
	}

	w := c.Max.X - c.Min.X
	for i := 0; i <= paperColumns; i++ {
		sty := minor
		if i%5 == 0 {
			sty = major
		}
		x := c.Min.X + w*vg.Length(i)/paperColumns
		c.StrokeLine2(sty, x, c.Min.Y, x, c.Max.Y)
	}
}

// Write renders series and stores it as a PNG at path.
func (r *Renderer) Write(path string, series []int) error {
	img, err := r.Render(series)
	if err != nil {
		return err
	}
	return storage.WriteAtomic(path, func(w io.Writer) error {
		return imaging.Encode(w, img, imaging.PNG)
	})
}
