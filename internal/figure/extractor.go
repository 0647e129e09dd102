package figure

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/paperdeck/researcher/internal/models"
	"github.com/paperdeck/researcher/pkg/jsonx"
	"github.com/paperdeck/researcher/pkg/logger"
	"github.com/paperdeck/researcher/pkg/paths"
)

const analysisPrompt = `You are an expert research assistant. Your task is to analyze the provided image, which is a figure from a technical document, and provide a structured analysis in JSON format.

Carefully examine the image and respond with ONLY a single, valid JSON object.

Your JSON response must contain these exact keys:
- "name": A name of the figure. If there is accompanying text with a figure number such as "Figure 2", use that. Otherwise, come up with a short, descriptive name.
- "description": A concise, one-to-two-sentence string describing what the figure depicts.
- "analysis": A string explaining the main scientific takeaway or conclusion from the figure.
- "extracted_text": A string containing all text transcribed from the image (axis labels, legends, etc.).

Do not include any text or explanations outside of the JSON object. Base your entire analysis on the content of the image provided.`

// VisionAnalyzer is the multimodal capability the extractor needs.
type VisionAnalyzer interface {
	AnalyzeImage(ctx context.Context, prompt string, img image.Image) (string, error)
}

// analysis is the model's reply for one figure.
type analysis struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	Analysis      string `json:"analysis"`
	ExtractedText string `json:"extracted_text"`
}

// Extractor runs detection, rendering and multimodal analysis over a PDF
// and yields persistable figure records. A failed candidate is discarded,
// its rendered image removed, and processing continues; one bad figure
// never aborts a page or document.
type Extractor struct {
	scanner  Scanner
	renderer Renderer
	vision   VisionAnalyzer
	layout   *paths.Layout
	log      logger.Logger
}

// NewExtractor wires up an Extractor.
func NewExtractor(scanner Scanner, renderer Renderer, vision VisionAnalyzer, layout *paths.Layout, log logger.Logger) *Extractor {
	return &Extractor{
		scanner:  scanner,
		renderer: renderer,
		vision:   vision,
		layout:   layout,
		log:      log.Named("figure"),
	}
}

// Extract processes every page of the document's PDF.
func (e *Extractor) Extract(ctx context.Context, projectID, documentID int64, pdfPath string) ([]models.Figure, error) {
	pages, err := e.scanner.Scan(ctx, pdfPath)
	if err != nil {
		return nil, fmt.Errorf("scan pdf: %w", err)
	}

	if err := os.MkdirAll(e.layout.FiguresDir(projectID), 0755); err != nil {
		return nil, fmt.Errorf("create figures dir: %w", err)
	}

	var figures []models.Figure
	for _, page := range pages {
		regions := DetectRegions(page)
		for i, region := range regions {
			if err := ctx.Err(); err != nil {
				return figures, err
			}
			fig, err := e.analyzeCandidate(ctx, projectID, documentID, pdfPath, page, region, i)
			if err != nil {
				e.log.Warn("discarding figure candidate",
					logger.Int64("documentId", documentID),
					logger.Int("page", page.PageNumber),
					logger.Int("candidate", i),
					logger.Error(err),
				)
				continue
			}
			figures = append(figures, fig)
		}
	}
	return figures, nil
}

// analyzeCandidate renders one region, saves it and asks the vision model
// for the four analysis fields. Whatever goes wrong after the image file
// exists, the file is removed on the way out.
func (e *Extractor) analyzeCandidate(ctx context.Context, projectID, documentID int64, pdfPath string, page Primitives, region Rect, idx int) (models.Figure, error) {
	img, err := e.renderer.RenderRegion(ctx, pdfPath, page, region)
	if err != nil {
		return models.Figure{}, fmt.Errorf("render region: %w", err)
	}

	imgPath := e.layout.FigureImagePath(projectID, documentID, page.PageNumber, idx)
	if err := imaging.Save(img, imgPath); err != nil {
		return models.Figure{}, fmt.Errorf("save figure image: %w", err)
	}

	ok := false
	defer func() {
		if !ok {
			os.Remove(imgPath)
		}
	}()

	raw, err := e.vision.AnalyzeImage(ctx, analysisPrompt, img)
	if err != nil {
		return models.Figure{}, fmt.Errorf("vision analysis: %w", err)
	}

	var a analysis
	if err := jsonx.ExtractObject(raw, &a); err != nil {
		return models.Figure{}, fmt.Errorf("parse analysis reply: %w", err)
	}
	if a.Name == "" {
		a.Name = "Unknown"
	}

	ok = true
	return models.Figure{
		DocumentID:    documentID,
		PageNumber:    page.PageNumber,
		ImagePath:     filepath.Join("figures", filepath.Base(imgPath)),
		Name:          a.Name,
		Description:   a.Description,
		Analysis:      a.Analysis,
		ExtractedText: a.ExtractedText,
	}, nil
}
