package figure

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/paperdeck/researcher/pkg/logger"
)

// Scanner extracts per-page primitives from a PDF file.
type Scanner interface {
	Scan(ctx context.Context, pdfPath string) ([]Primitives, error)
}

// PDFScanner reads primitives straight from the PDF object model: text
// runs grouped into blocks, rectangle paths as drawings, and image XObject
// placements recovered from the content stream transform matrix.
type PDFScanner struct {
	log logger.Logger
}

// NewPDFScanner creates a Scanner.
func NewPDFScanner(log logger.Logger) *PDFScanner {
	return &PDFScanner{log: log.Named("pdfscan")}
}

// Scan implements Scanner. Pages that cannot be parsed are skipped; a
// single bad page never fails the whole document.
func (s *PDFScanner) Scan(ctx context.Context, pdfPath string) ([]Primitives, error) {
	f, reader, err := pdf.Open(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	numPages := reader.NumPage()
	pages := make([]Primitives, 0, numPages)
	for n := 1; n <= numPages; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		prims, err := s.scanPage(reader, n)
		if err != nil {
			s.log.Warn("skipping unparseable page",
				logger.String("file", pdfPath),
				logger.Int("page", n),
				logger.Error(err),
			)
			continue
		}
		pages = append(pages, prims)
	}
	return pages, nil
}

func (s *PDFScanner) scanPage(reader *pdf.Reader, n int) (prims Primitives, err error) {
	// The pdf package panics on some malformed object graphs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page parse panic: %v", r)
		}
	}()

	page := reader.Page(n)
	if page.V.IsNull() {
		return prims, fmt.Errorf("page %d is null", n)
	}

	w, h := mediaBox(page)
	prims = Primitives{PageNumber: n, PageWidth: w, PageHeight: h}

	content := page.Content()
	for _, r := range content.Rect {
		prims.Drawings = append(prims.Drawings, Rect{
			X0: r.Min.X, Y0: r.Min.Y, X1: r.Max.X, Y1: r.Max.Y,
		})
	}
	prims.TextBlocks = groupTextBlocks(content.Text)
	prims.Images = imagePlacements(page)
	return prims, nil
}

// mediaBox resolves the page size, walking up the page tree since the
// MediaBox entry is inheritable. Defaults to US letter.
func mediaBox(page pdf.Page) (w, h float64) {
	v := page.V
	for i := 0; i < 16 && !v.IsNull(); i++ {
		if mb := v.Key("MediaBox"); mb.Len() == 4 {
			x0, y0 := mb.Index(0).Float64(), mb.Index(1).Float64()
			x1, y1 := mb.Index(2).Float64(), mb.Index(3).Float64()
			if x1 > x0 && y1 > y0 {
				return x1 - x0, y1 - y0
			}
		}
		v = v.Key("Parent")
	}
	return 612, 792
}

// groupTextBlocks folds individual text runs into lines by baseline, then
// lines into blocks by vertical proximity.
func groupTextBlocks(texts []pdf.Text) []TextBlock {
	if len(texts) == 0 {
		return nil
	}

	sorted := append([]pdf.Text(nil), texts...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y > sorted[j].Y // top of page first
		}
		return sorted[i].X < sorted[j].X
	})

	type line struct {
		rect Rect
		text strings.Builder
		size float64
	}

	var lines []*line
	var cur *line
	for _, t := range sorted {
		size := t.FontSize
		if size <= 0 {
			size = 10
		}
		r := Rect{X0: t.X, Y0: t.Y, X1: t.X + t.W, Y1: t.Y + size}
		if cur != nil && abs(t.Y-cur.rect.Y0) <= cur.size/2 {
			cur.rect = cur.rect.Union(r)
			cur.text.WriteString(t.S)
			continue
		}
		cur = &line{rect: r, size: size}
		cur.text.WriteString(t.S)
		lines = append(lines, cur)
	}

	var blocks []TextBlock
	var block *TextBlock
	var lastSize float64
	for _, ln := range lines {
		if block != nil && block.Rect.Y0-ln.rect.Y1 <= lastSize*1.8 &&
			horizontalOverlap(block.Rect, ln.rect) {
			block.Rect = block.Rect.Union(ln.rect)
			block.Text += "\n" + ln.text.String()
			lastSize = ln.size
			continue
		}
		blocks = append(blocks, TextBlock{Rect: ln.rect, Text: ln.text.String()})
		block = &blocks[len(blocks)-1]
		lastSize = ln.size
	}
	return blocks
}

func horizontalOverlap(a, b Rect) bool {
	return a.X0 <= b.X1 && b.X0 <= a.X1
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// matrix is a PDF transform [a b c d e f].
type matrix [6]float64

var identity = matrix{1, 0, 0, 1, 0, 0}

func (m matrix) mul(n matrix) matrix {
	return matrix{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

func (m matrix) apply(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// unitSquareBounds maps the unit square through m and returns its bounding
// box. Image XObjects are drawn into the unit square, so this is the
// placed image's page rect.
func (m matrix) unitSquareBounds() Rect {
	xs := [4]float64{}
	ys := [4]float64{}
	xs[0], ys[0] = m.apply(0, 0)
	xs[1], ys[1] = m.apply(1, 0)
	xs[2], ys[2] = m.apply(0, 1)
	xs[3], ys[3] = m.apply(1, 1)

	r := Rect{X0: xs[0], Y0: ys[0], X1: xs[0], Y1: ys[0]}
	for i := 1; i < 4; i++ {
		if xs[i] < r.X0 {
			r.X0 = xs[i]
		}
		if xs[i] > r.X1 {
			r.X1 = xs[i]
		}
		if ys[i] < r.Y0 {
			r.Y0 = ys[i]
		}
		if ys[i] > r.Y1 {
			r.Y1 = ys[i]
		}
	}
	return r
}

// imagePlacements walks the page content stream tracking the current
// transformation matrix and records the bounds of every image XObject
// drawn with Do.
func imagePlacements(page pdf.Page) []Rect {
	images := imageXObjectNames(page)
	if len(images) == 0 {
		return nil
	}

	tokens := contentTokens(page)
	if len(tokens) == 0 {
		return nil
	}

	var rects []Rect
	ctm := identity
	var stack []matrix
	for i, tok := range tokens {
		switch tok {
		case "q":
			stack = append(stack, ctm)
		case "Q":
			if n := len(stack); n > 0 {
				ctm = stack[n-1]
				stack = stack[:n-1]
			}
		case "cm":
			if m, ok := floats6(tokens, i); ok {
				ctm = m.mul(ctm)
			}
		case "Do":
			if i > 0 && strings.HasPrefix(tokens[i-1], "/") {
				if images[strings.TrimPrefix(tokens[i-1], "/")] {
					if r := ctm.unitSquareBounds(); !r.Empty() {
						rects = append(rects, r)
					}
				}
			}
		}
	}
	return rects
}

// imageXObjectNames returns the resource names of the page's image
// XObjects, so form XObjects drawn with Do are not mistaken for pictures.
func imageXObjectNames(page pdf.Page) map[string]bool {
	xobj := page.Resources().Key("XObject")
	if xobj.Kind() != pdf.Dict {
		return nil
	}
	names := make(map[string]bool)
	for _, name := range xobj.Keys() {
		if xobj.Key(name).Key("Subtype").Name() == "Image" {
			names[name] = true
		}
	}
	return names
}

// contentTokens reads and whitespace-splits the page's (possibly chained)
// content streams. String literals are elided so their bytes cannot be
// mistaken for operators.
func contentTokens(page pdf.Page) []string {
	contents := page.V.Key("Contents")
	var raw []byte
	appendStream := func(v pdf.Value) {
		if v.Kind() != pdf.Stream {
			return
		}
		data, err := io.ReadAll(v.Reader())
		if err != nil {
			return
		}
		raw = append(raw, data...)
		raw = append(raw, '\n')
	}
	if contents.Kind() == pdf.Array {
		for i := 0; i < contents.Len(); i++ {
			appendStream(contents.Index(i))
		}
	} else {
		appendStream(contents)
	}
	return strings.Fields(stripStrings(string(raw)))
}

// stripStrings blanks out (...) string literals, honoring escapes and
// nested parentheses.
func stripStrings(s string) string {
	out := []byte(s)
	depth := 0
	for i := 0; i < len(out); i++ {
		switch out[i] {
		case '\\':
			if depth > 0 && i+1 < len(out) {
				out[i] = ' '
				out[i+1] = ' '
				i++
			}
		case '(':
			depth++
			out[i] = ' '
		case ')':
			if depth > 0 {
				depth--
			}
			out[i] = ' '
		default:
			if depth > 0 {
				out[i] = ' '
			}
		}
	}
	return string(out)
}

// floats6 parses the six operands preceding a cm operator.
func floats6(tokens []string, opIndex int) (matrix, bool) {
	if opIndex < 6 {
		return identity, false
	}
	var m matrix
	for i := 0; i < 6; i++ {
		f, err := strconv.ParseFloat(tokens[opIndex-6+i], 64)
		if err != nil {
			return identity, false
		}
		m[i] = f
	}
	return m, true
}
