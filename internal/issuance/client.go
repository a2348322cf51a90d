package issuance

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/issuance-engine/internal/domain"
	"github.com/kursadbilgin/issuance-engine/internal/proxy"
	"github.com/kursadbilgin/issuance-engine/internal/ratelimit"
	"go.uber.org/zap"
)

const (
	defaultTimeout     = 15 * time.Second
	maxErrorBodyLength = 256
)

type Options struct {
	Endpoint string
	OfferID  string
	Origin   string
	Timeout  time.Duration
	Rotator  proxy.Rotator
	Limiter  ratelimit.RateLimiter
}

// Client performs exactly one issuance exchange per Attempt call.
type Client struct {
	endpoint string
	offerID  string
	headers  http.Header
	timeout  time.Duration
	rotator  proxy.Rotator
	limiter  ratelimit.RateLimiter
	logger   *zap.Logger
	randIntn func(n int) int

	mu      sync.Mutex
	direct  *resty.Client
	proxied map[string]*resty.Client
}

func NewClient(opts Options, logger *zap.Logger) (*Client, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("%w: issuance endpoint is required", domain.ErrConfig)
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("%w: invalid issuance endpoint: %v", domain.ErrConfig, err)
	}
	offerID := strings.TrimSpace(opts.OfferID)
	if offerID == "" {
		return nil, fmt.Errorf("%w: offer id is required", domain.ErrConfig)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Rotator == nil {
		opts.Rotator = proxy.Direct{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		endpoint: endpoint,
		offerID:  offerID,
		headers:  fingerprintHeaders(strings.TrimRight(strings.TrimSpace(opts.Origin), "/")),
		timeout:  opts.Timeout,
		rotator:  opts.Rotator,
		limiter:  opts.Limiter,
		logger:   logger,
		randIntn: rand.Intn,
		proxied:  make(map[string]*resty.Client),
	}, nil
}

// Attempt acquires a fresh proxy, sends the issuance mutation authenticated by
// cred and returns the issued code.
func (c *Client) Attempt(ctx context.Context, cred domain.Credential) (string, error) {
	if c == nil {
		return "", fmt.Errorf("issuance client is not initialized")
	}
	if cred.IsZero() {
		return "", fmt.Errorf("%w: credential is required", domain.ErrValidation)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, ratelimit.ScopeIssuance); err != nil {
			return "", &TransportError{Message: "rate limiter wait failed", Cause: err}
		}
	}

	descriptor, viaProxy := c.rotator.Acquire()
	client := c.clientFor(descriptor, viaProxy)

	req := client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+cred.Secret()).
		SetHeader("User-Agent", c.pickUserAgent()).
		SetBody(newMutationRequest(c.offerID))
	for key := range c.headers {
		req.SetHeader(key, c.headers.Get(key))
	}

	if ce := c.logger.Check(zap.DebugLevel, "issuance exchange"); ce != nil {
		route := "direct"
		if viaProxy {
			route = descriptor.String()
		}
		ce.Write(zap.Stringer("credential", cred), zap.String("route", route))
	}

	response, err := req.Post(c.endpoint)
	if err != nil {
		return "", &TransportError{Message: "request failed", Cause: err}
	}
	if response == nil {
		return "", &TransportError{Message: "empty response"}
	}

	statusCode := response.StatusCode()
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return "", &TransportError{
			StatusCode: statusCode,
			Message:    truncate(strings.TrimSpace(response.String()), maxErrorBodyLength),
		}
	}

	code, err := parseCode(response.Body())
	if err != nil {
		var parseErr *ParseError
		if errors.As(err, &parseErr) {
			return "", parseErr
		}
		return "", &ParseError{Cause: err}
	}
	return code, nil
}

func (c *Client) clientFor(descriptor proxy.Descriptor, viaProxy bool) *resty.Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !viaProxy {
		if c.direct == nil {
			c.direct = c.newRestyClient()
		}
		return c.direct
	}

	client, ok := c.proxied[descriptor.URL]
	if !ok {
		client = c.newRestyClient()
		client.SetProxy(descriptor.URL)
		c.proxied[descriptor.URL] = client
	}
	return client
}

func (c *Client) newRestyClient() *resty.Client {
	client := resty.New()
	client.SetTimeout(c.timeout)
	client.SetRetryCount(0)
	return client
}

func (c *Client) pickUserAgent() string {
	return userAgents[c.randIntn(len(userAgents))]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
