package health

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

func TestHeadSpecificFailure(t *testing.T) {
	wrap := func(err error) error {
		return &url.Error{Op: "Head", URL: "https://example.test", Err: err}
	}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"dns failure", wrap(&net.DNSError{Err: "no such host", IsNotFound: true}), false},
		{"connection refused", wrap(syscall.ECONNREFUSED), false},
		{"network unreachable", wrap(syscall.ENETUNREACH), false},
		{"deadline exceeded", wrap(context.DeadlineExceeded), false},
		{"certificate failure", wrap(&tls.CertificateVerificationError{Err: errors.New("x509: certificate has expired")}), false},
		{"dropped connection", wrap(errors.New("EOF")), true},
		{"malformed response", wrap(errors.New("malformed HTTP response")), true},
	}

	for _, tt := range tests {
		if got := headSpecificFailure(tt.err); got != tt.want {
			t.Errorf("%s: headSpecificFailure = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestHTTPProber_RetriesHeadRejectionWithGET(t *testing.T) {
	var gets atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			// Drop the connection without a response.
			conn, _, err := w.(http.Hijacker).Hijack()
			if err == nil {
				_ = conn.Close()
			}
			return
		}
		gets.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	prober := NewHTTPProber(2 * time.Second)
	if err := prober.Probe(context.Background(), srv.URL); err != nil {
		t.Fatalf("expected the GET fallback to succeed: %v", err)
	}
	if got := gets.Load(); got != 1 {
		t.Errorf("expected exactly one GET, got %d", got)
	}
}

func TestHTTPProber_NoFallbackAfterTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer func() {
		close(release)
		srv.Close()
	}()

	prober := NewHTTPProber(200 * time.Millisecond)
	start := time.Now()
	err := prober.Probe(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	// A second request would roughly double the elapsed time.
	if elapsed := time.Since(start); elapsed > 350*time.Millisecond {
		t.Errorf("timed-out probe took %v, suggesting a pointless fallback", elapsed)
	}
}
