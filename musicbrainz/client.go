// Package musicbrainz queries the MusicBrainz web service and turns its
// responses into match candidates for local tracks.
package musicbrainz

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"tagmatch/clientutil"
)

type StatusError int

func (se StatusError) Error() string {
	return fmt.Sprintf("%d: %s", int(se), http.StatusText(int(se)))
}

// Client is a minimal MusicBrainz ws/2 client. The zero value is not usable,
// use DefaultClient or fill in BaseURL.
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
	UserAgent  string
	RateLimit  time.Duration

	initOnce sync.Once
}

func DefaultClient() *Client {
	return &Client{
		BaseURL:   "https://musicbrainz.org/ws/2/",
		RateLimit: 1 * time.Second,
	}
}

func (c *Client) init() {
	c.HTTPClient = clientutil.Wrap(c.HTTPClient, clientutil.Chain(
		clientutil.WithCache(),
		clientutil.WithRateLimit(c.RateLimit),
		clientutil.WithAccept("application/xml"),
		clientutil.WithUserAgent(c.UserAgent),
		clientutil.WithLogging(slog.Default()),
	))
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	c.initOnce.Do(c.init)

	u, err := url.Parse(joinPath(c.BaseURL, path))
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request mb: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, StatusError(resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

// SearchRecordings runs a Lucene recording search and returns the raw XML
// document.
func (c *Client) SearchRecordings(ctx context.Context, query string) ([]byte, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("limit", "10")
	return c.get(ctx, "recording", params)
}

// GetRecording looks up a single recording by MBID, with enough includes to
// score it against local metadata.
func (c *Client) GetRecording(ctx context.Context, mbid string) ([]byte, error) {
	params := url.Values{}
	params.Set("inc", "artist-credits+releases+release-groups+media")
	return c.get(ctx, "recording/"+mbid, params)
}

// GetReleaseGroup looks up a release group by MBID.
func (c *Client) GetReleaseGroup(ctx context.Context, mbid string) ([]byte, error) {
	params := url.Values{}
	params.Set("inc", "artist-credits")
	return c.get(ctx, "release-group/"+mbid, params)
}

func joinPath(base string, p ...string) string {
	r, _ := url.JoinPath(base, p...)
	r, _ = url.PathUnescape(r)
	return r
}
