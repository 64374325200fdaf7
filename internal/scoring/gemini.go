// Package scoring grades a finished roleplay call with the Gemini
// generateContent API and returns a structured analysis.
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultModel is the reasoning model used for post-call analysis.
const DefaultModel = "gemini-3-pro-preview"

// ErrInvalidAnalysis marks a response the model produced in a shape we
// could not parse, as opposed to transport or quota failures.
var ErrInvalidAnalysis = errors.New("a IA forneceu uma análise em formato inválido")

// AnalysisResult is the structured grade of one call.
type AnalysisResult struct {
	Score        int      `json:"score"`
	IsQualified  bool     `json:"isQualified"`
	Summary      string   `json:"summary"`
	FailedPoints []string `json:"failedPoints"`
	NextSteps    []string `json:"nextSteps"`
}

// EmptyCallResult is the fixed grade for a call with no interaction at all.
// No model call is made for those.
func EmptyCallResult() AnalysisResult {
	return AnalysisResult{
		Score:        0,
		IsQualified:  false,
		Summary:      "A chamada terminou sem nenhuma interação. Não foi possível realizar a análise.",
		FailedPoints: []string{"Nenhuma interação detetada"},
		NextSteps:    []string{"Tente falar algo na próxima chamada"},
	}
}

type GeminiClient struct {
	HTTPClient *http.Client
	APIKey     string
	Model      string
}

type generateContentRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMIMEType string `json:"responseMimeType"`
}

type generateContentResponse struct {
	Candidates []candidate `json:"candidates"`
}

type candidate struct {
	Content content `json:"content"`
}

func NewGeminiClient(apiKey, model string) *GeminiClient {
	if model == "" {
		model = DefaultModel
	}
	return &GeminiClient{
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		APIKey:     apiKey,
		Model:      model,
	}
}

// Analyze sends the analysis prompt and parses the JSON grade. Transport
// and API failures come back as plain errors; a malformed model answer
// wraps ErrInvalidAnalysis so callers can tell the two apart.
func (c *GeminiClient) Analyze(ctx context.Context, prompt string) (AnalysisResult, error) {
	var zero AnalysisResult
	if c.APIKey == "" {
		return zero, fmt.Errorf("gemini api key missing")
	}
	endpoint := fmt.Sprintf(
		"https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent?key=%s",
		c.Model, c.APIKey,
	)

	reqBody, _ := json.Marshal(generateContentRequest{
		Contents:         []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{ResponseMIMEType: "application/json"},
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return zero, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return zero, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return zero, fmt.Errorf("gemini error: status=%d body=%s", resp.StatusCode, string(b))
	}

	var gr generateContentResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return zero, err
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return zero, fmt.Errorf("gemini: empty candidates")
	}

	text := strings.TrimSpace(gr.Candidates[0].Content.Parts[0].Text)
	text = stripCodeFence(text)

	var result AnalysisResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrInvalidAnalysis, err)
	}
	return result, nil
}

// stripCodeFence removes a surrounding ```json fence if the model added one
// despite the JSON response type.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
