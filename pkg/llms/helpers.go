package llms

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/0x00000002/multi-ai/pkg/aierrors"
	"github.com/0x00000002/multi-ai/pkg/config"
	"github.com/0x00000002/multi-ai/pkg/httpclient"
	"github.com/0x00000002/multi-ai/pkg/observability"
)

// recordLLMCall mirrors per-call latency and token counts to the global
// metrics recorder.
func recordLLMCall(ctx context.Context, model string, d time.Duration, reply *Reply, err error) {
	m := observability.GetGlobalMetrics()
	if m == nil {
		return
	}
	var in, out int
	if reply != nil {
		in, out = reply.InputTokens, reply.OutputTokens
	}
	m.RecordLLMCall(ctx, model, d, in, out, err)
}

func createHTTPClient(cfg *config.ProviderConfig, parser httpclient.RateLimitHeaderParser) *httpclient.Client {
	return httpclient.New(
		httpclient.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		}),
		httpclient.WithMaxRetries(cfg.MaxRetries),
		httpclient.WithBaseDelay(time.Duration(cfg.RetryDelay)*time.Second),
		httpclient.WithHeaderParser(parser),
	)
}

func buildJSONRequest(ctx context.Context, method, url string, headers map[string]string, payload interface{}) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	// GetBody lets the retry layer replay the payload.
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req, nil
}

// postJSON sends a JSON payload and reads the whole response body.
func postJSON(ctx context.Context, hc *httpclient.Client, provider, url string, headers map[string]string, payload interface{}) ([]byte, error) {
	req, err := buildJSONRequest(ctx, http.MethodPost, url, headers, payload)
	if err != nil {
		return nil, err
	}

	resp, err := hc.Do(req)
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return nil, classifyTransportError(provider, statusOf(resp), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, aierrors.Wrap(aierrors.KindProviderBadResponse,
			fmt.Sprintf("%s: failed to read response body", provider), err)
	}

	return body, nil
}

// postJSONStream sends a JSON payload and hands the caller the open body.
func postJSONStream(ctx context.Context, hc *httpclient.Client, provider, url string, headers map[string]string, payload interface{}) (io.ReadCloser, error) {
	req, err := buildJSONRequest(ctx, http.MethodPost, url, headers, payload)
	if err != nil {
		return nil, err
	}

	resp, err := hc.Do(req)
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return nil, classifyTransportError(provider, statusOf(resp), err)
	}

	return resp.Body, nil
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

// classifyTransportError maps transport and HTTP status failures onto the
// provider error taxonomy.
func classifyTransportError(provider string, status int, err error) error {
	var retryable *httpclient.RetryableError
	if errors.As(err, &retryable) && retryable.StatusCode != 0 {
		status = retryable.StatusCode
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return aierrors.Wrap(aierrors.KindProviderAuth,
			fmt.Sprintf("%s: authentication failed", provider), err)

	case status == http.StatusTooManyRequests:
		e := aierrors.Wrap(aierrors.KindProviderRateLimited,
			fmt.Sprintf("%s: rate limited", provider), err)
		if retryable != nil {
			e.RetryAfter = retryable.RetryAfter
		}
		return e

	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return aierrors.Wrap(aierrors.KindProviderTimeout,
			fmt.Sprintf("%s: request timed out", provider), err)

	case status >= 500:
		return aierrors.Wrap(aierrors.KindProviderUnavailable,
			fmt.Sprintf("%s: server error (HTTP %d)", provider, status), err)

	case status >= 400:
		return aierrors.Wrap(aierrors.KindProviderBadResponse,
			fmt.Sprintf("%s: request rejected (HTTP %d)", provider, status), err)
	}

	if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		return aierrors.Wrap(aierrors.KindProviderTimeout,
			fmt.Sprintf("%s: request timed out", provider), err)
	}

	return aierrors.Wrap(aierrors.KindProviderUnavailable,
		fmt.Sprintf("%s: request failed", provider), err)
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// badResponse builds a ProviderBadResponse error with a body excerpt.
func badResponse(provider, detail string, body []byte) error {
	excerpt := string(body)
	if len(excerpt) > 200 {
		excerpt = excerpt[:200] + "..."
	}
	return aierrors.Newf(aierrors.KindProviderBadResponse, "%s: %s: %s", provider, detail, excerpt)
}

// scanSSE reads server-sent events and calls handle with each data payload.
// handle returning false stops the scan.
func scanSSE(r io.Reader, handle func(data string) bool) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" || data == "[DONE]" {
			if data == "[DONE]" {
				return nil
			}
			continue
		}
		if !handle(data) {
			return nil
		}
	}
	return scanner.Err()
}

// scanNDJSON reads newline-delimited JSON objects and calls handle with each
// line. handle returning false stops the scan.
func scanNDJSON(r io.Reader, handle func(line string) bool) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !handle(line) {
			return nil
		}
	}
	return scanner.Err()
}
