package document

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

// defaultMaxBufferedBytes bounds FetchBytes
const defaultMaxBufferedBytes = 100 << 20

// ProxyOptions configures a ProxyStreamer
type ProxyOptions struct {
	// VerifyTLS enables certificate verification for upstream fetches.
	// Government sources frequently present invalid certificates, so it
	// is off unless configured.
	VerifyTLS bool
	Timeout   time.Duration
	UserAgent string
	// MaxBufferedBytes bounds documents read fully into memory
	MaxBufferedBytes int64
}

// Recorder receives document pipeline observations
type Recorder interface {
	AddProxyBytes(n int64)
	ObserveResolve(kind, outcome string)
	ObserveConversion(outcome string, elapsed time.Duration)
}

// ProxyStreamer fetches remote documents and relays them to a sink
type ProxyStreamer struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
	recorder  Recorder
}

// NewProxyStreamer creates a ProxyStreamer. Redirects are followed.
func NewProxyStreamer(opts ProxyOptions, recorder Recorder) *ProxyStreamer {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxBufferedBytes <= 0 {
		opts.MaxBufferedBytes = defaultMaxBufferedBytes
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   opts.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: !opts.VerifyTLS}, //nolint:gosec
		TLSHandshakeTimeout:   opts.Timeout,
		ResponseHeaderTimeout: opts.Timeout,
		MaxIdleConnsPerHost:   4,
	}

	return &ProxyStreamer{
		client:    &http.Client{Transport: transport},
		userAgent: opts.UserAgent,
		maxBytes:  opts.MaxBufferedBytes,
		recorder:  recorder,
	}
}

// Upstream is an open remote document
type Upstream struct {
	URL           string
	ContentType   string
	ContentLength int64
	Body          io.ReadCloser

	recorder Recorder
}

// Open issues the GET and returns once upstream headers arrive
func (p *ProxyStreamer) Open(ctx context.Context, rawURL string) (*Upstream, error) {
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &UpstreamFetchError{URL: rawURL, Err: err}
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}
	req.Header.Set("Accept", "*/*")

	log.Infof("proxying document: %s", rawURL)
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &UpstreamFetchError{URL: rawURL, Err: err}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		resp.Body.Close()
		return nil, &UpstreamFetchError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" || strings.HasPrefix(contentType, "application/octet-stream") {
		contentType = ContentTypeFor(rawURL)
	}

	return &Upstream{
		URL:           rawURL,
		ContentType:   contentType,
		ContentLength: resp.ContentLength,
		Body:          resp.Body,
		recorder:      p.recorder,
	}, nil
}

// Headers returns the response headers to send before the body. No-cache
// headers are always included. The length travels with the body.
func (u *Upstream) Headers() map[string]string {
	return map[string]string{
		"Content-Type":  u.ContentType,
		"Cache-Control": "no-cache, no-store, must-revalidate",
		"Pragma":        "no-cache",
		"Expires":       "0",
	}
}

// CountingBody returns the body for handing to a response writer that pulls
// from a reader. Bytes read are recorded when it is closed; a read error
// after the first byte is logged since the response is already committed.
func (u *Upstream) CountingBody() io.ReadCloser {
	return &countingBody{ReadCloser: u.Body, url: u.URL, recorder: u.recorder}
}

type countingBody struct {
	io.ReadCloser
	url      string
	recorder Recorder
	n        int64
	closed   bool
}

func (b *countingBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	b.n += int64(n)
	if err != nil && err != io.EOF {
		log.Errorf("stream of %s interrupted after %d bytes: %v", b.url, b.n, err)
	}
	return n, err
}

func (b *countingBody) Close() error {
	if !b.closed {
		b.closed = true
		if b.recorder != nil {
			b.recorder.AddProxyBytes(b.n)
		}
	}
	return b.ReadCloser.Close()
}

// Sink receives a proxied document: headers first, then a body the sink
// reads and closes. size is -1 when upstream did not send a length.
type Sink interface {
	SetHeader(key, value string)
	SetBodyStream(body io.Reader, size int)
}

// Stream relays rawURL to sink. Errors before upstream answered are returned
// and nothing reaches the sink. A read failure after that is logged and cuts
// the body short.
func (p *ProxyStreamer) Stream(ctx context.Context, rawURL string, sink Sink) error {
	up, err := p.Open(ctx, rawURL)
	if err != nil {
		return err
	}

	for k, v := range up.Headers() {
		sink.SetHeader(k, v)
	}
	sink.SetBodyStream(up.CountingBody(), int(up.ContentLength))
	return nil
}

// FetchBytes downloads the whole document into memory
func (p *ProxyStreamer) FetchBytes(ctx context.Context, rawURL string) ([]byte, error) {
	up, err := p.Open(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer up.Body.Close()

	data, err := io.ReadAll(io.LimitReader(up.Body, p.maxBytes+1))
	if err != nil {
		return nil, &UpstreamFetchError{URL: rawURL, Err: err}
	}
	if int64(len(data)) > p.maxBytes {
		return nil, &UpstreamFetchError{URL: rawURL, Err: fmt.Errorf("document exceeds %d bytes", p.maxBytes)}
	}
	return data, nil
}
