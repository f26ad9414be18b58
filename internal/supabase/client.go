package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/audiobrew/web/internal/metrics"
	"github.com/audiobrew/web/internal/upstream"
	"github.com/audiobrew/web/pkg/logger"
)

const target = "supabase"

// Config holds the public project settings.
type Config struct {
	URL       string
	AnonKey   string
	JWTSecret string
	Timeout   time.Duration
}

// Client speaks the GoTrue auth and storage REST APIs.
type Client struct {
	http    upstream.Doer
	baseURL string
	anonKey string
	timeout time.Duration
	claims  *ClaimsParser
	logger  *zap.Logger
}

// New builds a Supabase client. A nil doer gets a default fasthttp.Client.
func New(cfg Config, doer upstream.Doer, log *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if doer == nil {
		doer = upstream.NewHTTPClient(cfg.Timeout)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		http:    doer,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		anonKey: cfg.AnonKey,
		timeout: cfg.Timeout,
		claims:  NewClaimsParser(cfg.JWTSecret),
		logger:  log,
	}
}

// APIError is an error reply from Supabase.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("supabase: %d %s", e.Status, e.Message)
}

// IsAPIError reports whether err carries a Supabase error reply.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

type call struct {
	method      string
	path        string
	bearer      string
	contentType string
	body        []byte
	jsonBody    interface{}
	extraHeader map[string]string
}

func (c *Client) do(ctx context.Context, in call, out interface{}) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + in.path)
	req.Header.SetMethod(in.method)
	req.Header.Set("apikey", c.anonKey)
	bearer := in.bearer
	if bearer == "" {
		bearer = c.anonKey
	}
	req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+bearer)
	for k, v := range in.extraHeader {
		req.Header.Set(k, v)
	}

	switch {
	case in.jsonBody != nil:
		payload, err := json.Marshal(in.jsonBody)
		if err != nil {
			return err
		}
		req.Header.SetContentType("application/json")
		req.SetBody(payload)
	case in.body != nil:
		req.Header.SetContentType(in.contentType)
		req.SetBody(in.body)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	start := time.Now()
	err := c.http.DoDeadline(req, resp, deadline)
	metrics.UpstreamRequestDuration.WithLabelValues(target).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(target, "network_error").Inc()
		logger.WithRequestID(ctx, c.logger).Warn("supabase request failed",
			zap.String("method", in.method),
			zap.String("path", in.path),
			zap.Error(err))
		return err
	}

	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		metrics.UpstreamRequestsTotal.WithLabelValues(target, "http_error").Inc()
		return parseAPIError(status, resp.Body())
	}
	metrics.UpstreamRequestsTotal.WithLabelValues(target, "ok").Inc()

	if out == nil || len(resp.Body()) == 0 {
		return nil
	}
	return json.Unmarshal(resp.Body(), out)
}

// parseAPIError understands both GoTrue and storage error bodies.
func parseAPIError(status int, body []byte) *APIError {
	var payload struct {
		Error            string `json:"error"`
		ErrorCode        string `json:"error_code"`
		ErrorDescription string `json:"error_description"`
		Msg              string `json:"msg"`
		Message          string `json:"message"`
	}
	_ = json.Unmarshal(body, &payload)

	apiErr := &APIError{Status: status, Code: payload.ErrorCode}
	for _, candidate := range []string{payload.ErrorDescription, payload.Msg, payload.Message, payload.Error} {
		if candidate != "" {
			apiErr.Message = candidate
			break
		}
	}
	if apiErr.Code == "" {
		apiErr.Code = payload.Error
	}
	if apiErr.Message == "" {
		apiErr.Message = fasthttp.StatusMessage(status)
	}
	return apiErr
}
