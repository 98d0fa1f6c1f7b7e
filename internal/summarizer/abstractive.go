package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fyrsmithlabs/compressd/internal/critical"
	"github.com/fyrsmithlabs/compressd/internal/textutil"
)

const (
	defaultAnthropicURL = "https://api.anthropic.com/v1/messages"
	anthropicVersion    = "2023-06-01"
	maxResponseTokens   = 1024
)

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []anthropicContent `json:"content"`
	Error   *anthropicError    `json:"error,omitempty"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Abstractive generates a free-form paraphrase bounded by the target length
// via the Claude Messages API. It cannot guarantee verbatim retention of
// critical sentences; the critical-fact fallback keeps the retention
// invariant regardless of paraphrase fidelity.
type Abstractive struct {
	cfg      Config
	detector *critical.Detector
	client   *http.Client
}

// NewAbstractive creates the abstractive strategy.
func NewAbstractive(cfg Config, detector *critical.Detector) *Abstractive {
	if detector == nil {
		detector = critical.NewDetector(nil)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultConfig().Model
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultConfig().RequestTimeout
	}
	return &Abstractive{
		cfg:      cfg,
		detector: detector,
		client:   &http.Client{Timeout: cfg.RequestTimeout},
	}
}

// Strategy implements Summarizer.
func (a *Abstractive) Strategy() Strategy { return StrategyAbstractive }

// Summarize implements Summarizer.
func (a *Abstractive) Summarize(ctx context.Context, req Request) (*Result, error) {
	sentences := textutil.SplitSentences(req.Text)
	if len(sentences) == 0 {
		return nil, ErrEmptyUnit
	}

	var criticalSentences []string
	for _, s := range sentences {
		if a.detector.Detect(s).Any() {
			criticalSentences = append(criticalSentences, s)
		}
	}

	sourceWords := textutil.CountWords(req.Text)
	target := targetWords(sourceWords, req)
	if returnUnchanged(sourceWords, target, req.MaxWords) {
		return &Result{
			SummaryText:       req.Text,
			StrategyUsed:      StrategyAbstractive,
			WhyIncluded:       "unit shorter than target length; returned unchanged",
			RemovalReason:     "nothing removed",
			Confidence:        1.0,
			CriticalSentences: criticalSentences,
		}, nil
	}

	if a.cfg.AnthropicAPIKey == "" {
		return nil, &FailureError{Strategy: StrategyAbstractive, Err: fmt.Errorf("%w: API key not configured", ErrModelUnavailable)}
	}

	summary, err := a.callModel(ctx, a.buildPrompt(req.Text, target, criticalSentences))
	if err != nil {
		return nil, &FailureError{Strategy: StrategyAbstractive, Err: err}
	}

	if textutil.CountWords(summary) > target {
		summary = textutil.TruncateWords(summary, target)
	}

	return &Result{
		SummaryText:       summary,
		StrategyUsed:      StrategyAbstractive,
		WhyIncluded:       "model paraphrase conditioned on the unit with critical sentences boosted into the prompt",
		RemovedContent:    []string{"paraphrased prose; source wording not preserved"},
		RemovalReason:     "free-form paraphrase bounded by the target length; critical retention backed by the fact list",
		Confidence:        a.coverageConfidence(req.Text, summary),
		CriticalSentences: criticalSentences,
	}, nil
}

// buildPrompt conditions the model on the unit, surfacing critical sentences
// so they are more likely retained.
func (a *Abstractive) buildPrompt(text string, target int, criticalSentences []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Summarize the following text in at most %d words. Preserve every exception, risk, deadline, and figure exactly as stated.\n", target)
	if len(criticalSentences) > 0 {
		sb.WriteString("\nThese sentences are decision-critical and must be reflected in the summary:\n")
		for _, s := range criticalSentences {
			fmt.Fprintf(&sb, "- %s\n", s)
		}
	}
	sb.WriteString("\nText:\n")
	sb.WriteString(text)
	sb.WriteString("\n\nProvide only the summary without meta-commentary.")
	return sb.String()
}

// callModel posts one message to the Claude API and extracts the reply text.
func (a *Abstractive) callModel(ctx context.Context, prompt string) (string, error) {
	reqBody := anthropicRequest{
		Model:     a.cfg.Model,
		MaxTokens: maxResponseTokens,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := a.cfg.BaseURL
	if url == "" {
		url = defaultAnthropicURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.cfg.AnthropicAPIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if apiResp.Error != nil {
		return "", fmt.Errorf("API error: %s - %s", apiResp.Error.Type, apiResp.Error.Message)
	}
	if len(apiResp.Content) == 0 {
		return "", fmt.Errorf("API returned no content")
	}

	return strings.TrimSpace(apiResp.Content[0].Text), nil
}

// coverageConfidence estimates fluency/coverage from keyword overlap between
// source and summary, mapped into the 0.3-0.9 range the paraphrase can claim.
func (a *Abstractive) coverageConfidence(original, summary string) float64 {
	origWords := textutil.Words(original)
	if len(origWords) == 0 {
		return 0.3
	}
	inSummary := make(map[string]struct{})
	for _, w := range textutil.Words(summary) {
		inSummary[w] = struct{}{}
	}

	covered := 0
	seen := make(map[string]struct{}, len(origWords))
	distinct := 0
	for _, w := range origWords {
		if len(w) <= 3 {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		distinct++
		if _, ok := inSummary[w]; ok {
			covered++
		}
	}
	if distinct == 0 {
		return 0.3
	}
	return 0.3 + 0.6*float64(covered)/float64(distinct)
}

func targetWords(sourceWords int, req Request) int {
	ratio := req.TargetRatio
	if ratio <= 0 || ratio > 1 {
		ratio = DefaultConfig().TargetRatio
	}
	target := int(float64(sourceWords) * ratio)
	if req.MaxWords > 0 && target > req.MaxWords {
		target = req.MaxWords
	}
	if target < 1 {
		target = 1
	}
	return target
}

var _ Summarizer = (*Abstractive)(nil)
