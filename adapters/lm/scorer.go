// Package lm computes per-word surprisal by calling out to a language model,
// either as a local command or as an HTTP scoring service.
package lm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"brainlm/internal/errors"
	"brainlm/ports"

	"github.com/tidwall/gjson"
)

// CommandScorer runs an external scoring program. Words are written to its
// stdin one per line; it must print one surprisal value per line.
// The model name and context length are appended as --model and --context.
type CommandScorer struct {
	Command string
	Args    []string
}

var _ ports.CovariateSource = (*CommandScorer)(nil)

// NewCommandScorer creates a scorer for the given program.
func NewCommandScorer(command string, args ...string) *CommandScorer {
	return &CommandScorer{Command: command, Args: args}
}

// Surprisal implements ports.CovariateSource.
func (c *CommandScorer) Surprisal(ctx context.Context, model string, words []string, contextLength int) ([]float64, error) {
	if strings.TrimSpace(c.Command) == "" {
		return nil, errors.ConfigInvalid("surprisal command is not set")
	}
	start := time.Now()

	args := append(append([]string(nil), c.Args...),
		"--model", model, "--context", strconv.Itoa(contextLength))
	cmd := exec.CommandContext(ctx, c.Command, args...)
	cmd.Stdin = strings.NewReader(strings.Join(words, "\n") + "\n")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, errors.ExternalServiceError("surprisal command",
			fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String())))
	}

	values, err := parseLines(&stdout)
	if err != nil {
		return nil, errors.ExternalServiceError("surprisal command", err)
	}
	if len(values) != len(words) {
		return nil, errors.ShapeMismatchError("surprisal command returned %d values for %d words", len(values), len(words))
	}
	log.Printf("[CommandScorer] Scored %d words with %s (context %d) in %v", len(words), model, contextLength, time.Since(start))
	return values, nil
}

func parseLines(r io.Reader) ([]float64, error) {
	var out []float64
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return nil, fmt.Errorf("parse surprisal %q: %w", line, err)
		}
		out = append(out, v)
	}
	return out, sc.Err()
}

// HTTPScorer posts words to a scoring service and reads the values at
// ResultPath (a gjson path) of the JSON reply.
type HTTPScorer struct {
	BaseURL    string
	ResultPath string
	Timeout    time.Duration
	client     *http.Client
}

var _ ports.CovariateSource = (*HTTPScorer)(nil)

// NewHTTPScorer creates a scorer for a service at baseURL.
func NewHTTPScorer(baseURL string, timeout time.Duration) *HTTPScorer {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &HTTPScorer{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		ResultPath: "surprisal",
		Timeout:    timeout,
		client:     &http.Client{Timeout: timeout},
	}
}

// Surprisal implements ports.CovariateSource.
func (h *HTTPScorer) Surprisal(ctx context.Context, model string, words []string, contextLength int) ([]float64, error) {
	type reqBody struct {
		Model         string   `json:"model"`
		ContextLength int      `json:"context_length"`
		Words         []string `json:"words"`
	}
	raw, err := json.Marshal(reqBody{Model: model, ContextLength: contextLength, Words: words})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+"/surprisal", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, errors.ExternalServiceError("surprisal service", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.ExternalServiceError("surprisal service",
			fmt.Errorf("http %d: %s", resp.StatusCode, string(body)))
	}

	result := gjson.GetBytes(body, h.ResultPath)
	if !result.Exists() || !result.IsArray() {
		return nil, errors.ExternalServiceError("surprisal service",
			fmt.Errorf("response has no array at %q", h.ResultPath))
	}
	items := result.Array()
	if len(items) != len(words) {
		return nil, errors.ShapeMismatchError("surprisal service returned %d values for %d words", len(items), len(words))
	}
	out := make([]float64, len(items))
	for i, item := range items {
		if item.Type != gjson.Number {
			return nil, errors.ExternalServiceError("surprisal service",
				fmt.Errorf("value %d is %s, not a number", i, item.Type))
		}
		out[i] = item.Float()
	}
	return out, nil
}
