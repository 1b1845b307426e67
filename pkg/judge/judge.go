package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Verdict is the judge's classification of a headline.
type Verdict string

const (
	VerdictPositive Verdict = "POSITIVE"
	VerdictNegative Verdict = "NEGATIVE"
	VerdictNeutral  Verdict = "NEUTRAL"
)

// Client calls an external model endpoint to triage news headlines. The
// endpoint accepts a JSON body and answers with a verdict plus a short
// reason. It is used as a second opinion on headlines whose lexicon score
// sits near zero; scoring never blocks on it.
type Client struct {
	endpoint string
	apiKey   string
	httpc    *http.Client
}

type classifyRequest struct {
	Ticker   string `json:"ticker"`
	Headline string `json:"headline"`
	URL      string `json:"url,omitempty"`
}

type classifyResponse struct {
	Verdict string `json:"verdict"`
	Reason  string `json:"reason"`
}

// Result carries the verdict and the model's one-line justification.
type Result struct {
	Verdict Verdict
	Reason  string
}

// NewClient creates a judge client. An empty endpoint disables the client;
// ClassifyNews then always answers NEUTRAL.
func NewClient(endpoint, apiKey string) *Client {
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpc:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Enabled reports whether an endpoint is configured.
func (c *Client) Enabled() bool {
	return c.endpoint != ""
}

// ClassifyNews asks the judge whether a headline is positive, negative or
// neutral for the ticker. The article URL is passed along so the judge can
// read past the headline when it wants to.
func (c *Client) ClassifyNews(ctx context.Context, ticker, headline, url string) (*Result, error) {
	if !c.Enabled() {
		return &Result{Verdict: VerdictNeutral, Reason: "judge disabled"}, nil
	}

	body, err := json.Marshal(classifyRequest{Ticker: ticker, Headline: headline, URL: url})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal judge request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build judge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call judge endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("judge endpoint returned status %d", resp.StatusCode)
	}

	var out classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode judge response: %w", err)
	}

	switch Verdict(out.Verdict) {
	case VerdictPositive, VerdictNegative, VerdictNeutral:
		return &Result{Verdict: Verdict(out.Verdict), Reason: out.Reason}, nil
	default:
		return nil, fmt.Errorf("judge returned unknown verdict %q", out.Verdict)
	}
}
