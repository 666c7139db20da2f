package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/core/ports"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/resilience"
)

const ProviderName = "ollama"

type Client struct {
	baseURL     string
	model       string
	visionModel string
	httpClient  *http.Client
	executor    *resilience.Executor
}

type Options struct {
	// VisionModel handles image uploads; empty disables image analysis.
	VisionModel        string
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(baseURL, model string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		visionModel: options.VisionModel,
		httpClient:  &http.Client{Timeout: timeout},
		executor:    options.ResilienceExecutor,
	}
}

// Analyzer asks a local LLM to extract business entities. Text documents
// go through the extractor first; images go to the vision model as-is.
type Analyzer struct {
	client    *Client
	extractor ports.TextExtractor
}

func NewAnalyzer(client *Client, extractor ports.TextExtractor) *Analyzer {
	return &Analyzer{client: client, extractor: extractor}
}

type entityResponse struct {
	RawText    string          `json:"raw_text"`
	Entities   []domain.Entity `json:"entities"`
	Confidence float64         `json:"confidence"`
}

func (a *Analyzer) Analyze(ctx context.Context, fileBytes []byte, mimeType string) (*domain.ContentAnalysis, error) {
	if domain.IsImageRepresentable(mimeType) {
		return a.analyzeImage(ctx, fileBytes)
	}

	text, err := a.extractor.Extract(ctx, fileBytes, mimeType)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, domain.WrapError(domain.ErrContentAnalysisUnavailable, "ollama analyze", fmt.Errorf("%s has no text layer", mimeType))
	}

	raw, err := a.client.generateJSON(ctx, a.client.model, buildEntityPrompt(text), nil)
	if err != nil {
		return nil, err
	}
	resp, err := parseEntityResponse(raw)
	if err != nil {
		return nil, err
	}
	return resp.toAnalysis(text), nil
}

func (a *Analyzer) analyzeImage(ctx context.Context, fileBytes []byte) (*domain.ContentAnalysis, error) {
	if a.client.visionModel == "" {
		return nil, domain.WrapError(domain.ErrContentAnalysisUnavailable, "ollama analyze", fmt.Errorf("no vision model configured"))
	}
	images := []string{base64.StdEncoding.EncodeToString(fileBytes)}
	raw, err := a.client.generateJSON(ctx, a.client.visionModel, buildVisionPrompt(), images)
	if err != nil {
		return nil, err
	}
	resp, err := parseEntityResponse(raw)
	if err != nil {
		return nil, err
	}
	return resp.toAnalysis(resp.RawText), nil
}

func parseEntityResponse(raw string) (entityResponse, error) {
	var resp entityResponse
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &resp); err != nil {
		return entityResponse{}, fmt.Errorf("parse entity json: %w", err)
	}
	return resp, nil
}

// toAnalysis drops unknown entity types and clamps model-reported scores.
func (r entityResponse) toAnalysis(text string) *domain.ContentAnalysis {
	entities := make([]domain.Entity, 0, len(r.Entities))
	for _, e := range r.Entities {
		e.Type = domain.EntityType(strings.ToLower(strings.TrimSpace(string(e.Type))))
		e.Value = strings.TrimSpace(e.Value)
		if !e.Type.Valid() || e.Value == "" {
			continue
		}
		e.Confidence = clampUnit(e.Confidence)
		entities = append(entities, e)
	}
	return &domain.ContentAnalysis{
		RawText:    strings.TrimSpace(text),
		Entities:   entities,
		Confidence: clampUnit(r.Confidence),
		Provider:   ProviderName,
	}
}

func (c *Client) generateJSON(ctx context.Context, model, prompt string, images []string) (string, error) {
	reqBody := map[string]any{
		"model":  model,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	}
	if len(images) > 0 {
		reqBody["images"] = images
	}

	out, err := resilience.Do(ctx, c.executor, "ollama.generate", func(ctx context.Context) (string, error) {
		var response struct {
			Response string `json:"response"`
		}
		if err := c.postJSON(ctx, "/api/generate", model, reqBody, &response, "generate"); err != nil {
			return "", err
		}
		return strings.TrimSpace(response.Response), nil
	}, classifyGenerateError)
	if err != nil {
		return "", contentUnavailable(model, err)
	}
	return out, nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
