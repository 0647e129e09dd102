package figure

import (
	"context"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/disintegration/imaging"
)

// Renderer turns a page region into a raster image.
type Renderer interface {
	RenderRegion(ctx context.Context, pdfPath string, page Primitives, region Rect) (image.Image, error)
}

// PopplerRenderer rasterizes whole pages with pdftoppm and crops the
// requested region out of the page image.
type PopplerRenderer struct {
	pdftoppm string
	dpi      int
}

// NewPopplerRenderer creates a Renderer using the given pdftoppm binary
// and render resolution.
func NewPopplerRenderer(pdftoppm string, dpi int) *PopplerRenderer {
	if pdftoppm == "" {
		pdftoppm = "pdftoppm"
	}
	if dpi <= 0 {
		dpi = 300
	}
	return &PopplerRenderer{pdftoppm: pdftoppm, dpi: dpi}
}

// RenderRegion implements Renderer. Page coordinates are bottom-up PDF
// points; the raster is top-down pixels, so the crop flips the y axis.
func (r *PopplerRenderer) RenderRegion(ctx context.Context, pdfPath string, page Primitives, region Rect) (image.Image, error) {
	if region.Empty() {
		return nil, fmt.Errorf("empty region")
	}

	tmpDir, err := os.MkdirTemp("", "figrender")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	pageNum := strconv.Itoa(page.PageNumber)
	prefix := filepath.Join(tmpDir, "page")
	cmd := exec.CommandContext(ctx, r.pdftoppm,
		"-png",
		"-r", strconv.Itoa(r.dpi),
		"-f", pageNum,
		"-l", pageNum,
		"-singlefile",
		pdfPath,
		prefix,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, string(out))
	}

	img, err := imaging.Open(prefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("open rendered page: %w", err)
	}

	scale := float64(r.dpi) / 72.0
	bounds := img.Bounds()
	x0 := clamp(int(region.X0*scale), 0, bounds.Dx())
	x1 := clamp(int(region.X1*scale+0.5), 0, bounds.Dx())
	y0 := clamp(int((page.PageHeight-region.Y1)*scale), 0, bounds.Dy())
	y1 := clamp(int((page.PageHeight-region.Y0)*scale+0.5), 0, bounds.Dy())
	if x1 <= x0 || y1 <= y0 {
		return nil, fmt.Errorf("region %v lies outside the rendered page", region)
	}

	return imaging.Crop(img, image.Rect(x0, y0, x1, y1)), nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
