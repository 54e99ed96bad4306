package coze

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
)

// MaxImageBytes caps how much of a remote image is downloaded.
const MaxImageBytes = 20 << 20

// FetchImage downloads a remote image so it can be uploaded.
func (c *Client) FetchImage(ctx context.Context, rawURL string) (Image, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return Image{}, fmt.Errorf("coze fetch: invalid image url %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Image{}, err
	}
	resp, err := c.fetch.Do(req)
	if err != nil {
		return Image{}, fmt.Errorf("coze fetch: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return Image{}, &APIError{Op: "fetch", HTTPStatus: resp.StatusCode, Msg: "failed to fetch image"}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageBytes+1))
	if err != nil {
		return Image{}, fmt.Errorf("coze fetch: read body: %w", err)
	}
	if len(data) > MaxImageBytes {
		return Image{}, fmt.Errorf("coze fetch: image larger than %d bytes", MaxImageBytes)
	}

	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		name = "image.jpg"
	}
	return Image{Name: name, ContentType: resp.Header.Get("Content-Type"), Data: data}, nil
}
