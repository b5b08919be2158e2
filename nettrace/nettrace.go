package nettrace

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptrace"
	"sync"
	"time"

	"dictate/log"
)

type Metrics struct {
	DNS         time.Duration
	ConnWait    time.Duration
	TCP         time.Duration
	TLS         time.Duration
	ReqHeaders  time.Duration
	ReqBody     time.Duration
	TTFB        time.Duration
	Download    time.Duration
	Total       time.Duration
	ConnReused  bool
	TLSProtocol string
	UploadBytes int64
}

// Log writes the metrics to the diagnostics log under provider.
func (m *Metrics) Log(provider string) {
	ms := func(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }
	log.Network(log.NetworkMetrics{
		Provider:   provider,
		DNSMs:      ms(m.DNS),
		ConnMs:     ms(m.TCP),
		TLSMs:      ms(m.TLS),
		TTFBMs:     ms(m.TTFB),
		TotalMs:    ms(m.Total),
		ConnReused: m.ConnReused,
		TLSProto:   m.TLSProtocol,
		UploadKB:   float64(m.UploadBytes) / 1024,
	})
}

// Client is an http.Client that records connection timing per request.
type Client struct {
	client  *http.Client
	warmURL string
}

func New(warmURL string, timeout time.Duration) *Client {
	return &Client{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        4,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		},
		warmURL: warmURL,
	}
}

type Response struct {
	Body       []byte
	StatusCode int
	Header     http.Header
	Metrics    *Metrics
}

type tracer struct {
	mu      sync.Mutex
	metrics Metrics

	getConnStart, dnsStart, tcpStart, tlsStart time.Time
	gotConn, wroteHeaders, wroteRequest        time.Time
	firstByte, start                           time.Time
}

func (t *tracer) clientTrace() *httptrace.ClientTrace {
	lock := func(fn func()) {
		t.mu.Lock()
		fn()
		t.mu.Unlock()
	}
	return &httptrace.ClientTrace{
		GetConn: func(_ string) { lock(func() { t.getConnStart = time.Now() }) },
		GotConn: func(info httptrace.GotConnInfo) {
			lock(func() {
				t.gotConn = time.Now()
				t.metrics.ConnWait = t.gotConn.Sub(t.getConnStart)
				t.metrics.ConnReused = info.Reused
			})
		},
		DNSStart:          func(_ httptrace.DNSStartInfo) { lock(func() { t.dnsStart = time.Now() }) },
		DNSDone:           func(_ httptrace.DNSDoneInfo) { lock(func() { t.metrics.DNS = time.Since(t.dnsStart) }) },
		ConnectStart:      func(_, _ string) { lock(func() { t.tcpStart = time.Now() }) },
		ConnectDone:       func(_, _ string, _ error) { lock(func() { t.metrics.TCP = time.Since(t.tcpStart) }) },
		TLSHandshakeStart: func() { lock(func() { t.tlsStart = time.Now() }) },
		TLSHandshakeDone: func(cs tls.ConnectionState, _ error) {
			lock(func() {
				t.metrics.TLS = time.Since(t.tlsStart)
				t.metrics.TLSProtocol = cs.NegotiatedProtocol
			})
		},
		WroteHeaders: func() {
			lock(func() {
				t.wroteHeaders = time.Now()
				t.metrics.ReqHeaders = t.wroteHeaders.Sub(t.gotConn)
			})
		},
		WroteRequest: func(_ httptrace.WroteRequestInfo) {
			lock(func() {
				t.wroteRequest = time.Now()
				t.metrics.ReqBody = t.wroteRequest.Sub(t.wroteHeaders)
			})
		},
		GotFirstResponseByte: func() {
			lock(func() {
				t.firstByte = time.Now()
				t.metrics.TTFB = t.firstByte.Sub(t.wroteRequest)
			})
		},
	}
}

func (t *tracer) finish() *Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.firstByte.IsZero() {
		t.metrics.Download = time.Since(t.firstByte)
	}
	t.metrics.Total = time.Since(t.start)
	m := t.metrics
	return &m
}

func (c *Client) begin(req *http.Request) (*http.Request, *tracer) {
	tr := &tracer{start: time.Now()}
	tr.metrics.UploadBytes = req.ContentLength
	return req.WithContext(httptrace.WithClientTrace(req.Context(), tr.clientTrace())), tr
}

// Do sends req and reads the whole body.
func (c *Client) Do(req *http.Request) (*Response, error) {
	req, tr := c.begin(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Response{
		Body:       body,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Metrics:    tr.finish(),
	}, nil
}

// Stream sends req and hands back the open response. The metrics function
// must be called after the body is consumed.
func (c *Client) Stream(req *http.Request) (*http.Response, func() *Metrics, error) {
	req, tr := c.begin(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	return resp, tr.finish, nil
}

// Warm opens a connection ahead of the first real request and returns the
// TLS handshake time.
func (c *Client) Warm() time.Duration {
	if c.warmURL == "" {
		return 0
	}
	var tlsStart time.Time
	var tlsDuration time.Duration

	trace := &httptrace.ClientTrace{
		TLSHandshakeStart: func() { tlsStart = time.Now() },
		TLSHandshakeDone:  func(_ tls.ConnectionState, _ error) { tlsDuration = time.Since(tlsStart) },
	}

	req, err := http.NewRequest(http.MethodHead, c.warmURL, nil)
	if err != nil {
		return 0
	}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))
	resp, err := c.client.Do(req)
	if err != nil {
		return 0
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return tlsDuration
}
