// Package figure turns raw PDF page graphics into analyzable figure
// regions: a geometric detector groups fragmented primitives into candidate
// boxes, a classifier filters out non-figures, and survivors are rendered
// and described by the multimodal model.
package figure

// Merge thresholds and classifier limits, in PDF points.
const (
	graphicMergeThreshold = 15
	textSearchRadius      = 50
	finalMergeThreshold   = 25

	minRegionSide   = 50
	minAspectRatio  = 0.1
	maxAspectRatio  = 10
	maxTextCoverage = 0.7
)

// TextBlock is a positioned block of page text.
type TextBlock struct {
	Rect Rect
	Text string
}

// Primitives is everything the detector needs from one rendered page.
type Primitives struct {
	PageNumber int
	PageWidth  float64
	PageHeight float64

	Images     []Rect
	Drawings   []Rect
	TextBlocks []TextBlock
}

// MergeNearby repeatedly merges any two rects whose threshold-inflated
// forms intersect, replacing the pair with their bounding union, until no
// merge applies. Each merge removes a rect, so the loop terminates. The
// resulting region set does not depend on input order.
func MergeNearby(rects []Rect, threshold float64) []Rect {
	if len(rects) == 0 {
		return nil
	}

	merged := append([]Rect(nil), rects...)
	for {
		changed := false
	scan:
		for i := len(merged) - 1; i >= 0; i-- {
			for j := i - 1; j >= 0; j-- {
				if merged[i].Inflate(threshold).Intersects(merged[j]) {
					merged[j] = merged[i].Union(merged[j])
					merged = append(merged[:i], merged[i+1:]...)
					changed = true
					break scan
				}
			}
		}
		if !changed {
			return merged
		}
	}
}

// DetectRegions runs the three detection passes over a page's primitives
// and returns the candidate regions that pass the figure classifier.
//
// Pass 1 merges the graphic primitives (raster images and vector drawings)
// into core regions. Pass 2 inflates each core region and absorbs every
// text block touching that zone, so captions and axis labels travel with
// their figure. Pass 3 re-merges the combined set with a looser threshold.
func DetectRegions(p Primitives) []Rect {
	graphics := make([]Rect, 0, len(p.Images)+len(p.Drawings))
	graphics = append(graphics, p.Images...)
	graphics = append(graphics, p.Drawings...)

	cores := MergeNearby(graphics, graphicMergeThreshold)
	if len(cores) == 0 {
		return nil
	}

	components := append([]Rect(nil), cores...)
	for _, core := range cores {
		zone := core.Inflate(textSearchRadius)
		for _, tb := range p.TextBlocks {
			if zone.Intersects(tb.Rect) {
				components = append(components, tb.Rect)
			}
		}
	}

	candidates := MergeNearby(components, finalMergeThreshold)

	regions := make([]Rect, 0, len(candidates))
	for _, c := range candidates {
		if isLikelyFigure(c, p) {
			regions = append(regions, c)
		}
	}
	return regions
}

// isLikelyFigure applies the acceptance heuristics to one candidate box.
func isLikelyFigure(r Rect, p Primitives) bool {
	if r.Empty() || r.Width() < minRegionSide || r.Height() < minRegionSide {
		return false
	}

	aspect := r.Width() / r.Height()
	if aspect > maxAspectRatio || aspect < minAspectRatio {
		return false
	}

	// A figure must contain at least one graphic primitive; pure text
	// regions never qualify no matter how box-like they look.
	hasGraphic := false
	for _, img := range p.Images {
		if r.Intersects(img) {
			hasGraphic = true
			break
		}
	}
	if !hasGraphic {
		for _, d := range p.Drawings {
			if r.Intersects(d) {
				hasGraphic = true
				break
			}
		}
	}
	if !hasGraphic {
		return false
	}

	// Regions dominated by text blocks are prose columns, not figures.
	var textArea float64
	for _, tb := range p.TextBlocks {
		if r.Intersects(tb.Rect) {
			textArea += tb.Rect.Area()
		}
	}
	return textArea/r.Area() <= maxTextCoverage
}
