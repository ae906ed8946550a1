package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/probeworks/apiprobe/internal/domain/model"
)

// JMESPathEvaluator abstracts JMESPath operations for testability.
type JMESPathEvaluator interface {
	Validate(expr string) error
	Evaluate(expr string, data any) (any, error)
}

// jmespathLibEvaluator implements JMESPathEvaluator using go-jmespath.
type jmespathLibEvaluator struct{}

func (j jmespathLibEvaluator) Validate(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	_, err := jmespath.Compile(expr)
	return err
}

func (j jmespathLibEvaluator) Evaluate(expr string, data any) (any, error) {
	return jmespath.Search(expr, data)
}

// WebhookConfig captures the webhook delivery settings.
type WebhookConfig struct {
	URL string
	// BodyExpr optionally reshapes the summary payload with a JMESPath
	// expression before posting.
	BodyExpr   string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
	Evaluator  JMESPathEvaluator
	Logger     *slog.Logger
}

// WebhookNotifier posts report summaries to a configured URL.
type WebhookNotifier struct {
	url        string
	bodyExpr   string
	retryLimit int
	client     *http.Client
	evaluator  JMESPathEvaluator
	logger     *slog.Logger
}

// NewWebhookNotifier builds a webhook notifier. The body expression is
// validated here so a malformed one fails at startup rather than on the
// first delivery.
func NewWebhookNotifier(cfg WebhookConfig) (*WebhookNotifier, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, errors.New("webhook url is required")
	}

	evaluator := cfg.Evaluator
	if evaluator == nil {
		evaluator = jmespathLibEvaluator{}
	}
	bodyExpr := strings.TrimSpace(cfg.BodyExpr)
	if err := evaluator.Validate(bodyExpr); err != nil {
		return nil, fmt.Errorf("invalid report body expression: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	retries := cfg.RetryLimit
	if retries < 0 {
		retries = 0
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &WebhookNotifier{
		url:        url,
		bodyExpr:   bodyExpr,
		retryLimit: retries,
		client:     client,
		evaluator:  evaluator,
		logger:     logger,
	}, nil
}

// NotifyReport posts the report summary, retrying transient failures
// with a linear backoff.
func (n *WebhookNotifier) NotifyReport(ctx context.Context, report *model.TestReport, recipients []string) error {
	body, err := n.buildBody(report, recipients)
	if err != nil {
		return err
	}

	attempts := n.retryLimit + 1
	var lastErr error
	for attempt := range attempts {
		err = n.post(ctx, body)
		if err == nil {
			n.logger.DebugContext(ctx, "report delivered",
				slog.Int64("report_id", report.ID), slog.Int("recipients", len(recipients)))
			return nil
		}
		lastErr = err
		if attempt < attempts-1 {
			delay := time.Duration(attempt+1) * 200 * time.Millisecond
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				if !timer.Stop() {
					<-timer.C
				}
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	return lastErr
}

// buildBody marshals the summary, reshaped through the body expression
// when one is configured.
func (n *WebhookNotifier) buildBody(report *model.TestReport, recipients []string) ([]byte, error) {
	raw, err := json.Marshal(payloadFor(report, recipients))
	if err != nil {
		return nil, fmt.Errorf("encode report payload: %w", err)
	}
	if n.bodyExpr == "" {
		return raw, nil
	}

	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode report payload: %w", err)
	}
	res, err := n.evaluator.Evaluate(n.bodyExpr, data)
	if err != nil {
		return nil, fmt.Errorf("evaluate report body expression: %w", err)
	}
	body, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("encode reshaped payload: %w", err)
	}
	return body, nil
}

func (n *WebhookNotifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if readErr != nil {
			return fmt.Errorf("webhook %s: read error response: %w", resp.Status, readErr)
		}
		return fmt.Errorf("webhook %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}

	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return fmt.Errorf("drain webhook response: %w", err)
	}
	return nil
}

var _ ReportNotifier = (*WebhookNotifier)(nil)
