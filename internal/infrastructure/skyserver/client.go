package skyserver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

const (
	imageFormat = "image/fits"
	userAgent   = "skycutout"
	// error bodies are only quoted in messages
	maxErrorBody = 512
)

// Client represents the SDSS SkyServer SIAP client
type Client struct {
	httpClient *http.Client
	siapURL    string
}

// NewClient creates a new SkyServer client. A zero timeout leaves requests unbounded
// except by their context.
func NewClient(siapURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		siapURL: siapURL,
	}
}

// QueryURL builds the SIAP query for a square field of sizeDeg degrees centered on (ra, dec).
func (c *Client) QueryURL(ra, dec, sizeDeg float64) (string, error) {
	u, err := url.Parse(c.siapURL)
	if err != nil {
		return "", errors.Wrap(err, "invalid SIAP URL")
	}
	query := fmt.Sprintf("POS=%s,%s&SIZE=%s&FORMAT=%s",
		formatFloat(ra), formatFloat(dec), formatFloat(sizeDeg), imageFormat)
	if u.RawQuery != "" {
		u.RawQuery += "&" + query
	} else {
		u.RawQuery = query
	}
	return u.String(), nil
}

// QueryImages issues the SIAP request and returns the raw VOTable body.
func (c *Client) QueryImages(ctx context.Context, ra, dec, sizeDeg float64) ([]byte, error) {
	queryURL, err := c.QueryURL(ra, dec, sizeDeg)
	if err != nil {
		return nil, err
	}
	body, err := c.get(ctx, queryURL)
	if err != nil {
		return nil, errors.Wrap(err, "SIAP request failed")
	}
	return body, nil
}

// Download fetches the bytes behind an image access URL.
func (c *Client) Download(ctx context.Context, imageURL string) ([]byte, error) {
	body, err := c.get(ctx, imageURL)
	if err != nil {
		return nil, errors.Wrap(err, "image download failed")
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
