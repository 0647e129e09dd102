package figure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRect_Basics(t *testing.T) {
	r := Rect{X0: 10, Y0: 20, X1: 110, Y1: 70}
	assert.Equal(t, 100.0, r.Width())
	assert.Equal(t, 50.0, r.Height())
	assert.Equal(t, 5000.0, r.Area())
	assert.False(t, r.Empty())

	assert.True(t, Rect{X0: 5, Y0: 5, X1: 5, Y1: 50}.Empty())
	assert.Equal(t, 0.0, Rect{X0: 5, Y0: 5, X1: 5, Y1: 50}.Area())
}

func TestRect_IntersectsAndUnion(t *testing.T) {
	a := Rect{X0: 0, Y0: 0, X1: 10, Y1: 10}
	b := Rect{X0: 5, Y0: 5, X1: 15, Y1: 15}
	c := Rect{X0: 20, Y0: 20, X1: 30, Y1: 30}

	assert.True(t, a.Intersects(b))
	assert.False(t, a.Intersects(c))
	// Touching edges intersect.
	assert.True(t, a.Intersects(Rect{X0: 10, Y0: 0, X1: 20, Y1: 10}))

	u := a.Union(c)
	assert.Equal(t, Rect{X0: 0, Y0: 0, X1: 30, Y1: 30}, u)
}

func TestMergeNearby_MergesCloseRects(t *testing.T) {
	rects := []Rect{
		{X0: 0, Y0: 0, X1: 10, Y1: 10},
		{X0: 15, Y0: 0, X1: 25, Y1: 10}, // 5pt gap, within threshold 15
		{X0: 200, Y0: 200, X1: 210, Y1: 210},
	}
	merged := MergeNearby(rects, 15)
	require.Len(t, merged, 2)

	assert.Contains(t, merged, Rect{X0: 0, Y0: 0, X1: 25, Y1: 10})
	assert.Contains(t, merged, Rect{X0: 200, Y0: 200, X1: 210, Y1: 210})
}

func TestMergeNearby_ChainMerge(t *testing.T) {
	// a is far from c, but b bridges them.
	rects := []Rect{
		{X0: 0, Y0: 0, X1: 10, Y1: 10},
		{X0: 20, Y0: 0, X1: 30, Y1: 10},
		{X0: 40, Y0: 0, X1: 50, Y1: 10},
	}
	merged := MergeNearby(rects, 15)
	require.Len(t, merged, 1)
	assert.Equal(t, Rect{X0: 0, Y0: 0, X1: 50, Y1: 10}, merged[0])
}

func TestMergeNearby_OrderIndependent(t *testing.T) {
	rects := []Rect{
		{X0: 0, Y0: 0, X1: 10, Y1: 10},
		{X0: 12, Y0: 0, X1: 22, Y1: 10},
		{X0: 300, Y0: 0, X1: 310, Y1: 10},
		{X0: 305, Y0: 20, X1: 315, Y1: 40},
	}
	reversed := []Rect{rects[3], rects[2], rects[1], rects[0]}

	asSet := func(rs []Rect) map[Rect]bool {
		m := make(map[Rect]bool)
		for _, r := range rs {
			m[r] = true
		}
		return m
	}
	assert.Equal(t, asSet(MergeNearby(rects, 15)), asSet(MergeNearby(reversed, 15)))
}

func TestMergeNearby_Empty(t *testing.T) {
	assert.Nil(t, MergeNearby(nil, 15))
}

func TestDetectRegions_NoGraphics(t *testing.T) {
	p := Primitives{
		PageNumber: 1, PageWidth: 612, PageHeight: 792,
		TextBlocks: []TextBlock{
			{Rect: Rect{X0: 50, Y0: 600, X1: 550, Y1: 750}, Text: "A page of prose."},
		},
	}
	assert.Empty(t, DetectRegions(p))
}

func TestDetectRegions_ImageWithCaption(t *testing.T) {
	p := Primitives{
		PageNumber: 1, PageWidth: 612, PageHeight: 792,
		Images: []Rect{{X0: 100, Y0: 400, X1: 400, Y1: 600}},
		TextBlocks: []TextBlock{
			// Caption just below the image, inside the 50pt search zone.
			{Rect: Rect{X0: 100, Y0: 370, X1: 400, Y1: 390}, Text: "Figure 1: results"},
			// Body text far away on the page.
			{Rect: Rect{X0: 100, Y0: 50, X1: 500, Y1: 150}, Text: "Body paragraph."},
		},
	}
	regions := DetectRegions(p)
	require.Len(t, regions, 1)

	// The region absorbs the caption but not the distant body text.
	r := regions[0]
	assert.LessOrEqual(t, r.Y0, 370.0)
	assert.GreaterOrEqual(t, r.Y1, 600.0)
	assert.Greater(t, r.Y0, 150.0)
}

func TestDetectRegions_FragmentedDrawingsMerge(t *testing.T) {
	// A chart drawn as many small vector strokes should come out as one
	// region.
	p := Primitives{
		PageNumber: 1, PageWidth: 612, PageHeight: 792,
		Drawings: []Rect{
			{X0: 100, Y0: 500, X1: 160, Y1: 560},
			{X0: 165, Y0: 500, X1: 225, Y1: 560},
			{X0: 230, Y0: 500, X1: 290, Y1: 560},
		},
	}
	regions := DetectRegions(p)
	require.Len(t, regions, 1)
	assert.Equal(t, Rect{X0: 100, Y0: 500, X1: 290, Y1: 560}, regions[0])
}

func TestDetectRegions_RejectsTinyRegions(t *testing.T) {
	p := Primitives{
		PageNumber: 1, PageWidth: 612, PageHeight: 792,
		Images: []Rect{{X0: 100, Y0: 100, X1: 130, Y1: 130}}, // 30x30, under min side
	}
	assert.Empty(t, DetectRegions(p))
}

func TestDetectRegions_RejectsExtremeAspect(t *testing.T) {
	// A long thin rule across the page: aspect ratio far above 10.
	p := Primitives{
		PageNumber: 1, PageWidth: 612, PageHeight: 792,
		Drawings: []Rect{{X0: 0, Y0: 300, X1: 612, Y1: 355}},
	}
	assert.Empty(t, DetectRegions(p))
}

func TestDetectRegions_RejectsTextDominatedRegion(t *testing.T) {
	// A small decorative graphic buried in a large block of text: the
	// text covers well over 70% of the merged region.
	p := Primitives{
		PageNumber: 1, PageWidth: 612, PageHeight: 792,
		Drawings: []Rect{{X0: 100, Y0: 395, X1: 160, Y1: 455}},
		TextBlocks: []TextBlock{
			{Rect: Rect{X0: 90, Y0: 100, X1: 520, Y1: 390}, Text: "Column of prose."},
			{Rect: Rect{X0: 90, Y0: 460, X1: 520, Y1: 700}, Text: "More prose."},
		},
	}
	assert.Empty(t, DetectRegions(p))
}
