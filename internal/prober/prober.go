// Package prober issues metadata-only probes against candidate stream URLs
// and classifies the result. It never relays or stores audio: the response
// body is closed as soon as the headers are in.
package prober

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/radiodex/radiodex/internal/models"
)

// DefaultTimeout bounds a single probe. Streams that cannot produce headers
// in this window are treated as offline.
const DefaultTimeout = 5 * time.Second

// defaultUserAgent identifies the crawler to stream operators.
const defaultUserAgent = "Radiodex/1.0 (+https://github.com/radiodex/radiodex)"

// Result is the outcome of probing a single stream URL.
type Result struct {
	OK    bool
	URL   string
	Error string

	Name        models.Field
	Description models.Field
	Genre       models.Field
	Homepage    models.Field
	ContentType string
	Bitrate     *int
	IsLive      bool
}

// Client probes stream URLs with a shared HTTP client and an outbound rate
// limiter so batch jobs stay polite toward remote origins.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
}

// NewClient returns a probe client. A non-positive timeout falls back to
// DefaultTimeout; an empty userAgent falls back to the crawler default.
func NewClient(timeout time.Duration, userAgent string) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		// 10 probes/second sustained keeps even the full daily revalidation
		// pass gentle on the network.
		limiter:   rate.NewLimiter(rate.Every(100*time.Millisecond), 5),
		userAgent: userAgent,
	}
}

// Probe checks the liveness and metadata of a stream URL. The URL is expected
// to be normalized already (see NormalizeURL). Probe never returns an error:
// every failure mode is folded into a Result with OK=false.
func (c *Client) Probe(ctx context.Context, streamURL string) Result {
	if !validProbeURL(streamURL) {
		return Result{URL: streamURL, Error: "invalid URL"}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return Result{URL: streamURL, Error: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return Result{URL: streamURL, Error: "invalid URL"}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Icy-MetaData", "1")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{URL: streamURL, Error: err.Error()}
	}
	// Metadata only: everything needed lives in the response headers.
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{URL: streamURL, Error: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}

	contentType := strings.TrimSpace(resp.Header.Get("Content-Type"))
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	if !strings.HasPrefix(contentType, "audio/") {
		return Result{URL: streamURL, Error: fmt.Sprintf("invalid content-type: %s", contentType)}
	}

	res := Result{
		OK:          true,
		URL:         streamURL,
		IsLive:      true,
		ContentType: contentType,
		Name:        models.KnownField(resp.Header.Get("icy-name")),
		Description: models.KnownField(resp.Header.Get("icy-description")),
		Genre:       models.KnownField(resp.Header.Get("icy-genre")),
		Homepage:    models.KnownField(resp.Header.Get("icy-url")),
		Bitrate:     parseBitrate(resp.Header.Get("icy-br")),
	}

	// Display fallback only: a homepage standing in for a missing name is
	// not a semantic equivalence and must not be persisted as one elsewhere.
	if !res.Name.IsKnown() && res.Homepage.IsKnown() {
		res.Name = res.Homepage
	}

	return res
}

// parseBitrate reads an icy-br header value. Some servers send a
// comma-separated list; only the first entry counts. Unparsable or negative
// values map to nil (unknown), which is distinct from a reported zero.
func parseBitrate(raw string) *int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if i := strings.IndexByte(raw, ','); i >= 0 {
		raw = strings.TrimSpace(raw[:i])
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}
