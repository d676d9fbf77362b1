// Package engine implements the reasoning-engine client over an
// OpenAI-compatible chat-completions API. It enforces a per-project call
// quota and a circuit breaker on consecutive transport errors, so a dead or
// exhausted backend degrades the run instead of stalling it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-hclog"

	"github.com/massaudit/massaudit/pkg/shared/config"
	"github.com/massaudit/massaudit/pkg/shared/httpclient"
)

var (
	// ErrCircuitOpen is returned once the consecutive-error threshold has
	// been reached; no further requests are attempted for the run.
	ErrCircuitOpen = errors.New("reasoning engine circuit breaker tripped")
	// ErrQuotaExhausted is returned when a project has consumed its call
	// budget.
	ErrQuotaExhausted = errors.New("reasoning engine call quota exhausted for project")
)

// Client talks to the reasoning engine. Safe for concurrent use; the circuit
// breaker and quotas are shared across all callers.
type Client struct {
	httpc       *resty.Client
	logger      hclog.Logger
	model       string
	maxTokens   int
	temperature float64

	mu                sync.Mutex
	consecutiveErrors int
	errorThreshold    int
	tripped           bool
	callsPerProject   int
	callsByProject    map[string]int
}

// New builds a Client from configuration. The API token is read from the
// MASSAUDIT_ENGINE_TOKEN environment variable, never from the config file.
func New(cfg *config.Config, logger hclog.Logger) *Client {
	httpc := httpclient.InitializeRestyClient(logger, cfg)
	httpc.SetBaseURL(cfg.Engine.BaseURL)
	if token := cfg.Engine.Token(); token != "" {
		httpc.SetHeader("Authorization", fmt.Sprintf("Bearer %s", token))
	}
	httpc.SetTimeout(cfg.Engine.Timeout)

	return &Client{
		httpc:           httpc,
		logger:          logger.Named("engine"),
		model:           cfg.Engine.Model,
		maxTokens:       cfg.Engine.MaxTokens,
		temperature:     cfg.Engine.Temperature,
		errorThreshold:  cfg.Engine.ErrorThreshold,
		callsPerProject: cfg.Engine.CallsPerProject,
		callsByProject:  make(map[string]int),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	MaxTokens      int           `json:"max_tokens"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// reserveCall checks the breaker and the project quota before a request goes
// out. The quota slot is consumed even if the request later fails.
func (c *Client) reserveCall(project string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tripped {
		return ErrCircuitOpen
	}
	if c.callsPerProject > 0 && c.callsByProject[project] >= c.callsPerProject {
		return fmt.Errorf("%w: %s", ErrQuotaExhausted, project)
	}
	c.callsByProject[project]++
	return nil
}

func (c *Client) recordSuccess() {
	c.mu.Lock()
	c.consecutiveErrors = 0
	c.mu.Unlock()
}

func (c *Client) recordError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.consecutiveErrors++
	c.logger.Error("reasoning engine call failed", "err", err, "consecutive", c.consecutiveErrors)
	if c.errorThreshold > 0 && c.consecutiveErrors >= c.errorThreshold && !c.tripped {
		c.tripped = true
		c.logger.Error("circuit breaker tripped, no further engine calls this run", "threshold", c.errorThreshold)
	}
}

// CallsUsed reports how many calls a project has consumed so far.
func (c *Client) CallsUsed(project string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.callsByProject[project]
}

// chat performs one chat-completions request and returns the raw message
// content. Transport and HTTP-level failures count toward the breaker;
// malformed content does not, that is the caller's protocol problem.
func (c *Client) chat(ctx context.Context, project, systemPrompt, userPrompt string) (string, error) {
	if err := c.reserveCall(project); err != nil {
		return "", err
	}

	request := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}
	request.ResponseFormat.Type = "json_object"

	var result chatResponse
	resp, err := c.httpc.R().
		SetContext(ctx).
		SetBody(request).
		SetResult(&result).
		Post("/chat/completions")
	if err != nil {
		c.recordError(err)
		return "", fmt.Errorf("engine request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		statusErr := fmt.Errorf("engine returned status %d", resp.StatusCode())
		if result.Error != nil {
			statusErr = fmt.Errorf("engine returned status %d: %s", resp.StatusCode(), result.Error.Message)
		}
		c.recordError(statusErr)
		return "", statusErr
	}
	if len(result.Choices) == 0 {
		emptyErr := errors.New("engine response has no choices")
		c.recordError(emptyErr)
		return "", emptyErr
	}

	c.recordSuccess()
	return result.Choices[0].Message.Content, nil
}
