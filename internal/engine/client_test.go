package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/massaudit/massaudit/internal/findings"
	"github.com/massaudit/massaudit/internal/verify"
	"github.com/massaudit/massaudit/pkg/shared/config"
)

func testFinding() findings.Finding {
	return findings.Finding{
		ID:       "f-1",
		Project:  "demo",
		RuleID:   "go/sql-injection",
		Title:    "SQL injection",
		Severity: "high",
		FilePath: "db/query.go",
		Snippet:  `db.Query("SELECT ..." + name)`,
		Class:    findings.ClassLogic,
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.Config{}
	cfg.HTTPClient.RetryCount = 1
	cfg.HTTPClient.RetryWaitTime = time.Millisecond
	cfg.HTTPClient.RetryMaxWaitTime = 2 * time.Millisecond
	cfg.Engine.BaseURL = server.URL
	cfg.Engine.Model = "deepseek-chat"
	cfg.Engine.MaxTokens = 2048
	cfg.Engine.Timeout = 5 * time.Second
	cfg.Engine.CallsPerProject = 5
	cfg.Engine.ErrorThreshold = 2

	return New(cfg, hclog.NewNullLogger()), server
}

func chatReply(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	reply := map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"content": content}},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(reply))
}

func TestJudgeVerdict(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		chatReply(t, w, `{"action": "verdict", "risk": "high", "rationale": "user input reaches the query"}`)
	})

	reply, err := client.Judge(context.Background(), "demo", testFinding(), nil)
	require.NoError(t, err)
	require.NotNil(t, reply.Verdict)
	assert.Nil(t, reply.NeedContext)
	assert.Equal(t, verify.RiskHigh, reply.Verdict.Risk)
	assert.Equal(t, "user input reaches the query", reply.Verdict.Rationale)
}

func TestJudgeNeedContext(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, `{"action": "need_context", "symbols": ["checkAuth", "Session"]}`)
	})

	reply, err := client.Judge(context.Background(), "demo", testFinding(), nil)
	require.NoError(t, err)
	require.NotNil(t, reply.NeedContext)
	assert.Equal(t, []string{"checkAuth", "Session"}, reply.NeedContext.Symbols)
}

func TestJudgeUnknownRiskNormalized(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, `{"action": "verdict", "risk": "catastrophic", "rationale": "x"}`)
	})

	reply, err := client.Judge(context.Background(), "demo", testFinding(), nil)
	require.NoError(t, err)
	assert.Equal(t, verify.RiskUnknown, reply.Verdict.Risk)
}

func TestJudgeMalformedResponse(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, `not json at all`)
	})

	_, err := client.Judge(context.Background(), "demo", testFinding(), nil)
	assert.Error(t, err)
}

func TestJudgeMalformedReplyReaskedWithReminder(t *testing.T) {
	var calls int
	var secondPrompt string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		if calls == 1 {
			chatReply(t, w, `not json at all`)
			return
		}
		require.Len(t, req.Messages, 2)
		secondPrompt = req.Messages[1].Content
		chatReply(t, w, `{"action": "verdict", "risk": "low", "rationale": "fine"}`)
	})

	reply, err := client.Judge(context.Background(), "demo", testFinding(), nil)
	require.NoError(t, err)
	require.NotNil(t, reply.Verdict)
	assert.Equal(t, verify.RiskLow, reply.Verdict.Risk)
	assert.Equal(t, 2, calls)
	assert.Contains(t, secondPrompt, "exactly one JSON object")
}

func TestSynthesizeFencedJSON(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, "```json\n{\"script\": \"package main\\n\\nfunc main() {}\\n\"}\n```")
	})

	script, err := client.Synthesize(context.Background(), "demo", testFinding(), nil)
	require.NoError(t, err)
	assert.Contains(t, script, "func main()")
}

func TestClassify(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, `{"outcome": "SAFE_PASS", "reason": "validation rejected the payload"}`)
	})

	classification, err := client.Classify(context.Background(), "demo", testFinding(), "PASS, no panic")
	require.NoError(t, err)
	assert.Equal(t, verify.OutcomeSafePass, classification.Outcome)
	assert.Equal(t, "validation rejected the payload", classification.Reason)
}

func TestClassifyRejectsUnknownOutcome(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, `{"outcome": "MAYBE", "reason": "?"}`)
	})

	_, err := client.Classify(context.Background(), "demo", testFinding(), "output")
	assert.Error(t, err)
}

func TestQuotaExhausted(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		chatReply(t, w, `{"action": "verdict", "risk": "low", "rationale": "x"}`)
	})
	client.callsPerProject = 2

	for i := 0; i < 2; i++ {
		_, err := client.Judge(context.Background(), "demo", testFinding(), nil)
		require.NoError(t, err)
	}

	_, err := client.Judge(context.Background(), "demo", testFinding(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQuotaExhausted)
	assert.Equal(t, 2, calls)

	// a different project still has budget
	_, err = client.Judge(context.Background(), "other", testFinding(), nil)
	assert.NoError(t, err)
}

func TestCircuitBreakerTrips(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error": {"message": "backend down"}}`)
	})

	for i := 0; i < 2; i++ {
		_, err := client.Judge(context.Background(), "demo", testFinding(), nil)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCircuitOpen)
	}

	_, err := client.Judge(context.Background(), "demo", testFinding(), nil)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestSuccessResetsErrorCount(t *testing.T) {
	fail := true
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		chatReply(t, w, `{"action": "verdict", "risk": "low", "rationale": "x"}`)
	})

	_, err := client.Judge(context.Background(), "demo", testFinding(), nil)
	require.Error(t, err)

	fail = false
	_, err = client.Judge(context.Background(), "demo", testFinding(), nil)
	require.NoError(t, err)

	fail = true
	_, err = client.Judge(context.Background(), "demo", testFinding(), nil)
	require.Error(t, err)

	// breaker must not trip: errors were not consecutive
	fail = false
	_, err = client.Judge(context.Background(), "demo", testFinding(), nil)
	assert.NoError(t, err)
}
