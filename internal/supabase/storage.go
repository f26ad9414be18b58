package supabase

import (
	"context"
	"net/url"
	"strings"

	"github.com/valyala/fasthttp"
)

// Upload stores data at bucket/path on behalf of the signed-in user.
func (c *Client) Upload(ctx context.Context, accessToken, bucket, path, contentType string, data []byte) error {
	return c.do(ctx, call{
		method:      fasthttp.MethodPost,
		path:        "/storage/v1/object/" + bucket + "/" + escapePath(path),
		bearer:      accessToken,
		contentType: contentType,
		body:        data,
		extraHeader: map[string]string{
			"x-upsert":      "false",
			"cache-control": "max-age=3600",
		},
	}, nil)
}

// PublicURL returns the object's URL in a public bucket.
func (c *Client) PublicURL(bucket, path string) string {
	return c.baseURL + "/storage/v1/object/public/" + bucket + "/" + escapePath(path)
}

func escapePath(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
