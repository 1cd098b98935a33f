// Package render draws ground truth strokes, predicted strokes and their
// alignment into a PDF.
package render

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/pkg/errors"
	"github.com/unidoc/unipdf/v3/contentstream"
	"github.com/unidoc/unipdf/v3/contentstream/draw"
	"github.com/unidoc/unipdf/v3/creator"

	"github.com/juruen/strokerecovery/dtw"
	"github.com/juruen/strokerecovery/gt"
	"github.com/juruen/strokerecovery/log"
)

// A4 landscape in points.
var DefaultPageSize = creator.PageSize{842, 595}

type Options struct {
	PageSize creator.PageSize
	Margin   float64
	// LineWidth of the strokes; links are drawn at a quarter of it.
	LineWidth   float64
	Links       bool
	PageNumbers bool
}

func DefaultOptions() Options {
	return Options{PageSize: DefaultPageSize, Margin: 36, LineWidth: 1.5, Links: true}
}

// Page is one plot. Pred and Alignment are optional.
type Page struct {
	Title     string
	GT        *gt.Sequence
	Pred      *gt.Sequence
	Alignment *dtw.Path
}

type rgb struct{ r, g, b float64 }

var (
	gtColor   = rgb{0, 0, 0}
	predColor = rgb{.85, .1, .1}
	linkColor = rgb{.6, .6, .6}
)

type point struct{ X, Y float64 }

// box is the extent of the plotted data.
type box struct{ minX, minY, maxX, maxY float64 }

func emptyBox() box {
	return box{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}
}

func (b *box) add(seq *gt.Sequence) {
	if seq == nil {
		return
	}
	xi, yi := seq.Format.Index(gt.X), seq.Format.Index(gt.Y)
	for _, r := range seq.Rows {
		b.minX = math.Min(b.minX, r[xi])
		b.maxX = math.Max(b.maxX, r[xi])
		b.minY = math.Min(b.minY, r[yi])
		b.maxY = math.Max(b.maxY, r[yi])
	}
}

// transform maps data coordinates to page coordinates with one scale for
// both axes. Data y grows upwards like PDF space.
type transform struct {
	scale, dx, dy float64
}

func fit(b box, size creator.PageSize, margin float64) transform {
	w, h := size[0]-2*margin, size[1]-2*margin
	sx, sy := w/(b.maxX-b.minX), h/(b.maxY-b.minY)
	scale := math.Min(sx, sy)
	if math.IsInf(scale, 0) || math.IsNaN(scale) || scale <= 0 {
		scale = 1
	}
	return transform{scale: scale, dx: margin - b.minX*scale, dy: margin - b.minY*scale}
}

func (t transform) apply(x, y float64) point {
	return point{X: x*t.scale + t.dx, Y: y*t.scale + t.dy}
}

// strokes splits a sequence at its start of stroke flags.
func strokes(seq *gt.Sequence, t transform) [][]point {
	xi, yi, si := seq.Format.Index(gt.X), seq.Format.Index(gt.Y), seq.Format.Index(gt.SOS)
	var out [][]point
	for i, r := range seq.Rows {
		if i == 0 || (si >= 0 && r[si] > .5) {
			out = append(out, nil)
		}
		k := len(out) - 1
		out[k] = append(out[k], t.apply(r[xi], r[yi]))
	}
	return out
}

// links pairs every aligned prediction with its target.
func links(p *dtw.Path, gtSeq, pred *gt.Sequence, t transform) [][2]point {
	gx, gy := gtSeq.Format.Index(gt.X), gtSeq.Format.Index(gt.Y)
	px, py := pred.Format.Index(gt.X), pred.Format.Index(gt.Y)
	out := make([][2]point, 0, p.Len())
	for q := range p.A {
		a, b := pred.Rows[p.A[q]], gtSeq.Rows[p.B[q]]
		out = append(out, [2]point{t.apply(a[px], a[py]), t.apply(b[gx], b[gy])})
	}
	return out
}

func drawStrokes(cc *contentstream.ContentCreator, paths [][]point, c rgb, width float64) {
	cc.Add_q()
	cc.Add_w(width)
	cc.Add_RG(c.r, c.g, c.b)
	for _, s := range paths {
		if len(s) == 1 {
			// a lone point is drawn as a dot
			s = append(s, point{s[0].X + width/2, s[0].Y})
		}
		path := draw.NewPath()
		for _, p := range s {
			path = path.AppendPoint(draw.NewPoint(p.X, p.Y))
		}
		draw.DrawPathWithCreator(path, cc)
		cc.Add_S()
	}
	cc.Add_Q()
}

func drawLinks(cc *contentstream.ContentCreator, ls [][2]point, width float64) {
	cc.Add_q()
	cc.Add_w(width)
	cc.Add_RG(linkColor.r, linkColor.g, linkColor.b)
	for _, l := range ls {
		cc.Add_m(l[0].X, l[0].Y)
		cc.Add_l(l[1].X, l[1].Y)
		cc.Add_S()
	}
	cc.Add_Q()
}

// Write renders every page to w.
func Write(w io.Writer, pages []Page, opts Options) error {
	if len(pages) == 0 {
		return errors.New("nothing to render")
	}
	if opts.PageSize[0] == 0 {
		opts.PageSize = DefaultPageSize
	}
	c := creator.New()
	c.SetPageSize(opts.PageSize)
	if opts.PageNumbers {
		c.DrawFooter(func(block *creator.Block, args creator.FooterFunctionArgs) {
			p := c.NewParagraph(fmt.Sprintf("%d / %d", args.PageNum, args.TotalPages))
			p.SetFontSize(8)
			p.SetPos(block.Width()-opts.Margin-20, block.Height()-opts.Margin/2)
			block.Draw(p)
		})
	}

	for i, pg := range pages {
		if pg.GT == nil {
			return errors.Errorf("page %d has no ground truth", i)
		}
		b := emptyBox()
		b.add(pg.GT)
		b.add(pg.Pred)
		t := fit(b, opts.PageSize, opts.Margin)

		page := c.NewPage()
		if pg.Title != "" {
			p := c.NewParagraph(pg.Title)
			p.SetFontSize(10)
			p.SetPos(opts.Margin, opts.Margin/3)
			if err := c.Draw(p); err != nil {
				return errors.Wrapf(err, "page %d title", i)
			}
		}

		cc := contentstream.NewContentCreator()
		if opts.Links && pg.Pred != nil && pg.Alignment != nil {
			drawLinks(cc, links(pg.Alignment, pg.GT, pg.Pred, t), opts.LineWidth/4)
		}
		drawStrokes(cc, strokes(pg.GT, t), gtColor, opts.LineWidth)
		if pg.Pred != nil {
			drawStrokes(cc, strokes(pg.Pred, t), predColor, opts.LineWidth)
		}
		if err := page.AppendContentStream(string(cc.Operations().Bytes())); err != nil {
			return errors.Wrapf(err, "page %d", i)
		}
	}
	log.Trace.Printf("render: %d pages", len(pages))
	return c.Write(w)
}

// WriteFile renders every page to the PDF at path.
func WriteFile(path string, pages []Page, opts Options) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, pages, opts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
