package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog"

	"github.com/umnovI/poke-project/internal/fingerprint"
)

// Headers forwarded from upstream data responses to relay clients.
var forwardHeaders = []string{"cache-control", "age", "etag"}

// Client wraps the outbound HTTP client with response memoization.
// Successful GET payloads are kept for the configured TTL and replayed
// with FromCache set, so the layers above can decide whether to reuse
// their own derived state.
type Client struct {
	http  *http.Client
	log   zerolog.Logger
	data  *ttlcache.Cache[string, Response]
	media *ttlcache.Cache[string, Media]
}

// NewClient builds a Client whose response cache holds entries for ttl.
func NewClient(httpClient *http.Client, ttl time.Duration, log zerolog.Logger) *Client {
	c := &Client{
		http: httpClient,
		log:  log,
		data: ttlcache.New[string, Response](
			ttlcache.WithTTL[string, Response](ttl),
			ttlcache.WithDisableTouchOnHit[string, Response](),
		),
		media: ttlcache.New[string, Media](
			ttlcache.WithTTL[string, Media](ttl),
			ttlcache.WithDisableTouchOnHit[string, Media](),
		),
	}
	go c.data.Start()
	go c.media.Start()
	return c
}

// Stop shuts down the cache janitors.
func (c *Client) Stop() {
	c.data.Stop()
	c.media.Stop()
}

func requestURL(rawurl string, query fingerprint.Query) string {
	vals := queryValues(query)
	if len(vals) == 0 {
		return rawurl
	}
	return rawurl + "?" + vals.Encode()
}

// Get fetches a data payload. Non-2xx responses come back as a
// *RemoteError carrying the upstream status.
func (c *Client) Get(ctx context.Context, rawurl string, query fingerprint.Query) (*Response, error) {
	target := requestURL(rawurl, query)
	if item := c.data.Get(target); item != nil {
		resp := item.Value()
		resp.FromCache = true
		return &resp, nil
	}

	c.log.Debug().Str("url", target).Msg("requesting body")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", target, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", target, err)
	}
	defer resp.Body.Close()
	c.log.Debug().Str("url", target).Dur("elapsed", time.Since(start)).Int("status", resp.StatusCode).Msg("upstream response")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RemoteError{
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("Error %d occurred while requesting %s", resp.StatusCode, target),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body %s: %w", target, err)
	}

	out := Response{
		Status:  resp.StatusCode,
		Body:    string(body),
		Headers: filterHeaders(resp.Header, forwardHeaders),
	}
	c.data.Set(target, out, ttlcache.DefaultTTL)
	return &out, nil
}

// Head issues a HEAD probe, optionally conditional. 4xx/5xx becomes a
// *RemoteError; 2xx and 304 pass through so the caller can interpret
// the validator exchange.
func (c *Client) Head(ctx context.Context, rawurl string, query fingerprint.Query, headers map[string]string) (*Headers, error) {
	target := requestURL(rawurl, query)
	c.log.Debug().Str("url", target).Msg("requesting headers")

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", target, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HEAD %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, &RemoteError{
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("Error %d occurred while requesting %s", resp.StatusCode, target),
		}
	}

	return &Headers{
		Status:  resp.StatusCode,
		Success: resp.StatusCode >= 200 && resp.StatusCode < 300,
		Etag:    resp.Header.Get("Etag"),
	}, nil
}

// GetMedia fetches a media file. The upstream must name a content type;
// a response without one is a configuration error, not a cache miss.
func (c *Client) GetMedia(ctx context.Context, rawurl string) (*Media, error) {
	if item := c.media.Get(rawurl); item != nil {
		m := item.Value()
		m.FromCache = true
		return &m, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", rawurl, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", rawurl, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RemoteError{
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("Error %d occurred while requesting media file.", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read media body: %w", err)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		return nil, fmt.Errorf("media response for %s carries no content-type header", rawurl)
	}

	out := Media{
		Body:        body,
		ContentType: contentType,
		Etag:        resp.Header.Get("Etag"),
	}
	c.media.Set(rawurl, out, ttlcache.DefaultTTL)
	return &out, nil
}

func filterHeaders(h http.Header, want []string) map[string]string {
	out := make(map[string]string)
	for _, name := range want {
		if v := h.Get(name); v != "" {
			out[name] = v
		}
	}
	return out
}
