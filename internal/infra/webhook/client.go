// Package webhook relays a CSV document and a question to a remote HTTP
// endpoint as multipart/form-data and returns the text it answers with.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/bryanwahyu/csvask/internal/domain/relay"
)

const (
	// DefaultTimeout bounds a whole webhook exchange unless configured otherwise.
	DefaultTimeout = 120 * time.Second
	// DefaultMaxResponseBytes caps how much of the answer body is read.
	DefaultMaxResponseBytes = 4 << 20

	fieldFile     = "file"
	fieldQuestion = "question"

	maxErrorBody = 512
)

// Config describes the remote endpoint.
type Config struct {
	URL string
	// Timeout applies to the whole exchange. Zero means no client-side
	// timeout; the caller's context still applies.
	Timeout          time.Duration
	MaxResponseBytes int64
	UserAgent        string
	// RequestIDHeader names the header carrying RequestID(ctx). Empty disables it.
	RequestIDHeader string
	RequestID       func(ctx context.Context) string
}

// Client is a relay.Analyzer that talks to a webhook.
type Client struct {
	httpClient *http.Client
	url        string
	maxBody    int64
	userAgent  string
	ridHeader  string
	rid        func(ctx context.Context) string
}

// Option customizes a Client.
type Option func(*Client)

// WithTransport replaces the HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.httpClient.Transport = rt }
}

// New validates cfg and builds a Client.
func New(cfg Config, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("parsing webhook url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("webhook url must be absolute http(s), got %q", cfg.URL)
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("webhook timeout must not be negative")
	}

	maxBody := cfg.MaxResponseBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxResponseBytes
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
		},
		url:       u.String(),
		maxBody:   maxBody,
		userAgent: cfg.UserAgent,
		ridHeader: cfg.RequestIDHeader,
		rid:       cfg.RequestID,
	}
	for _, o := range opts {
		if o != nil {
			o(c)
		}
	}
	return c, nil
}

// Analyze posts doc and question and returns the raw response body.
// The multipart body is streamed; the writer goroutine always finishes
// before Analyze returns, so doc.Body is no longer in use afterwards.
func (c *Client) Analyze(ctx context.Context, doc relay.Document, question string) (string, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	done := make(chan error, 1)
	go func() {
		err := writeForm(mw, doc, question)
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
		done <- err
	}()

	resp, err := c.send(ctx, pr, mw.FormDataContentType())
	// unblocks the writer if the transport stopped reading early
	pr.Close()
	werr := <-done

	// a payload that failed half way is never treated as delivered,
	// even if the remote already answered
	if werr != nil && !errors.Is(werr, io.ErrClosedPipe) {
		if resp != nil {
			resp.Body.Close()
		}
		return "", fmt.Errorf("building multipart payload: %w", werr)
	}
	if err != nil {
		return "", fmt.Errorf("posting to webhook: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return "", fmt.Errorf("reading webhook response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), maxErrorBody)}
	}
	if int64(len(body)) > c.maxBody {
		return "", fmt.Errorf("webhook response exceeds %d bytes", c.maxBody)
	}
	return string(body), nil
}

func (c *Client) send(ctx context.Context, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "text/plain, */*")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.ridHeader != "" && c.rid != nil {
		if id := c.rid(ctx); id != "" {
			req.Header.Set(c.ridHeader, id)
		}
	}
	return c.httpClient.Do(req)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writeForm(mw *multipart.Writer, doc relay.Document, question string) error {
	contentType := doc.File.ContentType
	if contentType == "" {
		contentType = relay.ContentTypeCSV
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		fieldFile, quoteEscaper.Replace(doc.File.Name)))
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, doc.Body); err != nil {
		return fmt.Errorf("copying %s: %w", doc.File.Name, err)
	}
	return mw.WriteField(fieldQuestion, question)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
