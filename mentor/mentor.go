// Package mentor turns a user's active objectives into short motivational
// advice via an external language-model service.
package mentor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	defaultEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent"
	requestTimeout  = 30 * time.Second

	promptTemplate = `You are an AI mentor providing advice and motivation to the user based on their objectives.

Objectives: %s

Provide personalized advice and motivation to help the user stay on track and achieve their goals. Focus on actionable strategies and positive reinforcement.`
)

// ErrEmptyObjectives is returned before any network call when there is
// nothing to ask about.
var ErrEmptyObjectives = errors.New("mentor: no active objectives")

// ErrUnavailable is the generic failure every provider-side problem maps to;
// provider payloads and status codes stay inside this package.
var ErrUnavailable = errors.New("mentor: service unavailable")

// Client calls the generateContent endpoint over plain HTTP.
type Client struct {
	apiKey   string
	endpoint string
	http     *http.Client
	logger   *log.Logger
}

// NewClient creates a mentorship client. The logger is used for diagnostics
// only; callers never see provider detail.
func NewClient(apiKey string, logger *log.Logger) *Client {
	return &Client{
		apiKey:   apiKey,
		endpoint: defaultEndpoint,
		http:     &http.Client{Timeout: requestTimeout},
		logger:   logger,
	}
}

type generateRequest struct {
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
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Advise requests advice for the comma-joined active objective titles.
// Empty input short-circuits locally with ErrEmptyObjectives.
func (c *Client) Advise(ctx context.Context, objectives string) (string, error) {
	if strings.TrimSpace(objectives) == "" {
		return "", ErrEmptyObjectives
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: fmt.Sprintf(promptTemplate, objectives)}}}},
		GenerationConfig: generationConfig{
			Temperature:     0.3,
			MaxOutputTokens: 1000,
		},
	})
	if err != nil {
		return "", fmt.Errorf("mentor: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"?key="+c.apiKey, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("mentor: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.warn("request failed", err)
		return "", ErrUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.warn(fmt.Sprintf("status %d", resp.StatusCode), nil)
		return "", ErrUnavailable
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		c.warn("decode response", err)
		return "", ErrUnavailable
	}

	advice := extractText(decoded)
	if advice == "" {
		c.warn("empty candidate text", nil)
		return "", ErrUnavailable
	}
	return advice, nil
}

func extractText(resp generateResponse) string {
	if len(resp.Candidates) == 0 {
		return ""
	}
	parts := resp.Candidates[0].Content.Parts
	if len(parts) == 0 {
		return ""
	}
	return strings.TrimSpace(parts[0].Text)
}

func (c *Client) warn(msg string, err error) {
	if c.logger == nil {
		return
	}
	fields := log.Fields{"component": "mentor"}
	if err != nil {
		fields["error"] = err.Error()
	}
	c.logger.WithFields(fields).Warn(msg)
}
