package proxy

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math/rand"
	"net/url"
	"os"
	"strings"
	"sync/atomic"

	"github.com/kursadbilgin/issuance-engine/internal/domain"
)

// Descriptor identifies one network intermediary.
type Descriptor struct {
	URL string
}

func (d Descriptor) String() string {
	parsed, err := url.Parse(d.URL)
	if err != nil {
		return "<invalid proxy>"
	}
	return parsed.Redacted()
}

// Rotator supplies zero or one proxy per call. ok=false means connect directly.
type Rotator interface {
	Acquire() (Descriptor, bool)
}

// Direct never returns a proxy.
type Direct struct{}

func (Direct) Acquire() (Descriptor, bool) { return Descriptor{}, false }

var _ Rotator = Direct{}

// RoundRobin cycles through a fixed proxy list starting at a random offset.
type RoundRobin struct {
	proxies []Descriptor
	next    atomic.Uint64
}

var _ Rotator = (*RoundRobin)(nil)

func NewRoundRobin(proxies []Descriptor) (*RoundRobin, error) {
	if len(proxies) == 0 {
		return nil, fmt.Errorf("%w: at least one proxy is required", domain.ErrConfig)
	}

	r := &RoundRobin{proxies: append([]Descriptor(nil), proxies...)}
	r.next.Store(uint64(rand.Intn(len(proxies))))
	return r, nil
}

func (r *RoundRobin) Acquire() (Descriptor, bool) {
	idx := (r.next.Add(1) - 1) % uint64(len(r.proxies))
	return r.proxies[idx], true
}

func (r *RoundRobin) Len() int { return len(r.proxies) }

// ParseDescriptor accepts http, https and socks5 URLs; a bare host:port is treated as http.
func ParseDescriptor(raw string) (Descriptor, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Descriptor{}, fmt.Errorf("%w: proxy is empty", domain.ErrValidation)
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return Descriptor{}, fmt.Errorf("%w: invalid proxy url: %v", domain.ErrValidation, err)
	}
	switch parsed.Scheme {
	case "http", "https", "socks5":
	default:
		return Descriptor{}, fmt.Errorf("%w: unsupported proxy scheme %q", domain.ErrValidation, parsed.Scheme)
	}
	if parsed.Host == "" {
		return Descriptor{}, fmt.Errorf("%w: proxy host is required", domain.ErrValidation)
	}

	return Descriptor{URL: parsed.String()}, nil
}

func ParseList(r io.Reader) ([]Descriptor, error) {
	scanner := bufio.NewScanner(r)
	proxies := make([]Descriptor, 0)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		d, err := ParseDescriptor(raw)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		proxies = append(proxies, d)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read proxy list: %w", err)
	}
	return proxies, nil
}

// FromFile builds a rotator from a proxy list. An empty path yields Direct.
func FromFile(path string) (Rotator, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return Direct{}, nil
	}

	f, err := os.Open(trimmed)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: proxy list %q not found", domain.ErrConfig, trimmed)
		}
		return nil, fmt.Errorf("%w: failed to open proxy list: %v", domain.ErrConfig, err)
	}
	defer f.Close()

	proxies, err := ParseList(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfig, err)
	}
	if len(proxies) == 0 {
		return Direct{}, nil
	}
	return NewRoundRobin(proxies)
}
