package health

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"
)

// Prober issues a response-opaque reachability check. Only transport
// success or failure is observable; status codes and bodies are not
// inspected, so a completed probe says nothing beyond "a server spoke".
type Prober interface {
	Probe(ctx context.Context, url string) error
}

// HTTPProber probes URLs with a HEAD request, falling back to GET for
// servers that reject HEAD.
type HTTPProber struct {
	client *http.Client
}

// NewHTTPProber creates a prober with the given transport timeout.
func NewHTTPProber(timeout time.Duration) *HTTPProber {
	return &HTTPProber{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// Probe implements Prober. A returned error means DNS failure,
// connection refused, or a transport-level timeout; any completed
// response, whatever its status, counts as reachable. The GET fallback
// only fires when the HEAD failure looks like the server mishandling
// HEAD, not when the host itself is unreachable.
func (p *HTTPProber) Probe(ctx context.Context, url string) error {
	resp, err := p.request(ctx, http.MethodHead, url)
	if err != nil {
		if !headSpecificFailure(err) {
			return err
		}
		resp, err = p.request(ctx, http.MethodGet, url)
		if err != nil {
			return err
		}
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
	_ = resp.Body.Close()
	return nil
}

// headSpecificFailure reports whether a failed HEAD is worth retrying
// as GET. DNS failures, timeouts, refused or unreachable hosts, and
// TLS verification failures would fail a GET identically; a dropped
// connection or protocol error can mean the server rejects HEAD.
func headSpecificFailure(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH) {
		return false
	}
	var certErr *tls.CertificateVerificationError
	return !errors.As(err, &certErr)
}

func (p *HTTPProber) request(ctx context.Context, method, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	return p.client.Do(req)
}

// normalizeProbeError simplifies verbose transport errors into readable
// categories for the report.
func normalizeProbeError(err error) string {
	lower := strings.ToLower(err.Error())

	switch {
	case strings.Contains(lower, "no such host"):
		return "DNS failure"
	case strings.Contains(lower, "context deadline exceeded"),
		strings.Contains(lower, "timeout"):
		return "Timeout"
	case strings.Contains(lower, "connection refused"):
		return "Connection refused"
	case strings.Contains(lower, "certificate"):
		return "TLS/certificate error"
	case strings.Contains(lower, "network is unreachable"):
		return "Network unreachable"
	case strings.Contains(lower, "tls:"):
		return "TLS error"
	default:
		return err.Error()
	}
}
