package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

// HTTPStageConfig configures an HTTPStage, grounded on the teacher's
// MLXRerankerConfig (internal/search/mlx_reranker.go) — same local
// inference server internal/embed's OllamaEmbedder already talks to.
type HTTPStageConfig struct {
	Endpoint string
	Model    string
	Timeout  time.Duration
}

// DefaultHTTPStageConfig mirrors the teacher's MLX reranker defaults,
// pointed at Ollama's default port instead of the teacher's dedicated
// MLX sidecar.
func DefaultHTTPStageConfig() HTTPStageConfig {
	return HTTPStageConfig{
		Endpoint: "http://localhost:11434",
		Model:    "qwen3-reranker",
		Timeout:  5 * time.Second,
	}
}

// HTTPStage is a Stage backed by a local cross-encoder inference server,
// grounded on the teacher's MLXReranker HTTP client shape (health check
// and a single POST-and-decode round trip).
type HTTPStage struct {
	client *http.Client
	cfg    HTTPStageConfig
}

// NewHTTPStage returns a Stage talking to cfg.Endpoint.
func NewHTTPStage(cfg HTTPStageConfig) *HTTPStage {
	defaults := DefaultHTTPStageConfig()
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaults.Endpoint
	}
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	return &HTTPStage{client: &http.Client{Timeout: cfg.Timeout}, cfg: cfg}
}

// IsAvailable pings the inference server's tag-listing endpoint, the same
// GET-and-check-200 liveness shape as the teacher's MLXReranker.healthCheck.
func (s *HTTPStage) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.Endpoint+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank scores candidates[i].Document against query and, for any result
// whose sigmoid-normalized relevance clears cfg.MinScoreThreshold, adds
// weight*score to that candidate's CrossEncoderBoost.
func (s *HTTPStage) Rerank(ctx context.Context, query string, candidates []*Candidate, cfg StageConfig) (int, error) {
	if len(candidates) == 0 {
		return 0, nil
	}
	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = c.Document
	}

	body, err := json.Marshal(rerankRequest{Model: s.cfg.Model, Query: query, Documents: docs})
	if err != nil {
		return 0, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint+"/api/rerank", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("rerank request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("rerank failed (status %d): %s", resp.StatusCode, string(b))
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("decode rerank response: %w", err)
	}

	var applied int
	for _, r := range parsed.Results {
		if r.Index < 0 || r.Index >= len(candidates) {
			continue
		}
		score := sigmoid(r.RelevanceScore)
		if score < cfg.MinScoreThreshold {
			continue
		}
		candidates[r.Index].CrossEncoderBoost += score * cfg.Weight
		applied++
	}
	return applied, nil
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
