package fetcher

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html/charset"

	"stagecrawl/internal/models"
)

// FetchResult is the typed outcome of one fetch attempt. Exactly one of
// HTML (on success) or ErrorCode/ErrorMessage is populated.
type FetchResult struct {
	Success      bool
	HTML         string
	FinalURL     string
	StatusCode   int
	ContentType  string
	ErrorCode    models.ErrorCode
	ErrorMessage string
}

type Options struct {
	Timeout     time.Duration
	DialTimeout time.Duration
	SizeCap     int64
	UserAgent   string
}

type Fetcher struct {
	client    *http.Client
	sizeCap   int64
	userAgent string
	timeout   time.Duration
}

func New(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}
	if opts.SizeCap <= 0 {
		opts.SizeCap = 5 * 1024 * 1024
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "stagecrawl/1.0 (+https://stagecrawl.example)"
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   opts.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &Fetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		sizeCap:   opts.SizeCap,
		userAgent: opts.UserAgent,
		timeout:   opts.Timeout,
	}
}

func fail(code models.ErrorCode, msg string) FetchResult {
	return FetchResult{Success: false, ErrorCode: code, ErrorMessage: msg}
}

// Fetch retrieves one HTML page. URL validation happens before any network
// call; the timeout is enforced via context cancellation so a hung server
// yields FetchTimeout rather than a generic network error. No retries:
// a failed fetch is one unit of failure reported upward.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) FetchResult {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return fail(models.ErrInvalidURL, "malformed url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fail(models.ErrUnsupportedProtocol, fmt.Sprintf("unsupported scheme %q", u.Scheme))
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fail(models.ErrInvalidURL, err.Error())
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isClientTimeout(err) {
			return fail(models.ErrFetchTimeout, fmt.Sprintf("fetch exceeded %s", f.timeout))
		}
		return fail(models.ErrNetworkError, err.Error())
	}
	defer resp.Body.Close()

	res := FetchResult{
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		res.ErrorCode = models.ErrHTTPError
		res.ErrorMessage = fmt.Sprintf("http status %d", resp.StatusCode)
		return res
	}

	mediaType, _, _ := mime.ParseMediaType(res.ContentType)
	// some servers omit Content-Type entirely; only reject a declared non-html type
	if mediaType != "" && !strings.Contains(mediaType, "text/html") && !strings.Contains(mediaType, "application/xhtml+xml") {
		res.ErrorCode = models.ErrUnsupportedContentType
		res.ErrorMessage = fmt.Sprintf("unsupported content type %q", mediaType)
		return res
	}

	var body io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			res.ErrorCode = models.ErrNetworkError
			res.ErrorMessage = "gzip decode: " + err.Error()
			return res
		}
		defer gz.Close()
		body = gz
	}

	data, err := io.ReadAll(io.LimitReader(body, f.sizeCap))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isClientTimeout(err) {
			res.ErrorCode = models.ErrFetchTimeout
			res.ErrorMessage = fmt.Sprintf("fetch exceeded %s", f.timeout)
			return res
		}
		res.ErrorCode = models.ErrNetworkError
		res.ErrorMessage = err.Error()
		return res
	}
	if len(bytes.TrimSpace(data)) == 0 {
		res.ErrorCode = models.ErrEmptyResponse
		res.ErrorMessage = "empty response body"
		return res
	}

	html, err := decodeToUTF8(data, res.ContentType)
	if err != nil {
		res.ErrorCode = models.ErrUnsupportedContentType
		res.ErrorMessage = "charset decode: " + err.Error()
		return res
	}

	res.Success = true
	res.HTML = html
	return res
}

// decodeToUTF8 converts legacy encodings (Korean ticketing pages are
// frequently EUC-KR) using the declared content type and sniffed bytes.
func decodeToUTF8(data []byte, contentType string) (string, error) {
	enc, _, _ := charset.DetermineEncoding(data, contentType)
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		if utf8.Valid(data) {
			return string(data), nil
		}
		return "", err
	}
	return string(decoded), nil
}

func isClientTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	// http.Client wraps its deadline in a url.Error with a timeout message
	return strings.Contains(err.Error(), "Client.Timeout")
}
