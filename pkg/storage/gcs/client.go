package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/supplyhub-backend/pkg/config"
	"github.com/angelmondragon/supplyhub-backend/pkg/logger"
)

const (
	defaultAPIBase   = "https://storage.googleapis.com"
	defaultPublicURL = "https://storage.googleapis.com"
	pingTimeout      = 5 * time.Second
	errorBodyLimit   = 2048
)

// ErrNotFound is returned by Delete when the object does not exist.
var ErrNotFound = errors.New("gcs object not found")

// APIError is a non-success answer from the JSON API.
type APIError struct {
	Op     string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("gcs %s failed: %d %s", e.Op, e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("gcs %s failed: %d %s: %s", e.Op, e.Status, http.StatusText(e.Status), e.Body)
}

// Client stores product media in one bucket through the Cloud Storage JSON
// API. Objects are addressed by name; Upload hands back the public URL.
type Client struct {
	http       *http.Client
	bucket     string
	apiBase    string
	publicBase string
	tokens     *tokenSource
	logg       *logger.Logger
}

func NewClient(ctx context.Context, cfg config.GCSConfig, gcp config.GCPConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BucketName) == "" {
		return nil, errors.New("gcs bucket name is required")
	}
	httpClient := &http.Client{Timeout: time.Minute}

	tokens, err := resolveTokenSource(httpClient, gcp)
	if err != nil {
		return nil, err
	}

	client := newClient(httpClient, cfg.BucketName, defaultAPIBase, cfg.PublicBaseURL, tokens, logg)
	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("gcs health check failed: %w", err)
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "bucket", cfg.BucketName), "gcs client initialized")
	}
	return client, nil
}

func newClient(httpClient *http.Client, bucket, apiBase, publicBase string, tokens *tokenSource, logg *logger.Logger) *Client {
	if publicBase == "" {
		publicBase = defaultPublicURL
	}
	return &Client{
		http:       httpClient,
		bucket:     bucket,
		apiBase:    strings.TrimRight(apiBase, "/"),
		publicBase: strings.TrimRight(publicBase, "/"),
		tokens:     tokens,
		logg:       logg,
	}
}

func (c *Client) Bucket() string {
	if c == nil {
		return ""
	}
	return c.bucket
}

func (c *Client) Close() error { return nil }

// Ping lists at most one object, which needs storage.objects.list on the bucket.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.ready(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	u := c.bucketURL("/o") + "?maxResults=1"
	return c.call(ctx, "object list", http.MethodGet, u, "", nil, http.StatusOK)
}

// Upload streams body into object and returns its public URL.
func (c *Client) Upload(ctx context.Context, object, contentType string, body io.Reader) (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}
	object = strings.TrimLeft(strings.TrimSpace(object), "/")
	if object == "" {
		return "", errors.New("gcs object name is required")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	q := url.Values{"uploadType": {"media"}, "name": {object}}
	u := c.apiBase + "/upload/storage/v1/b/" + url.PathEscape(c.bucket) + "/o?" + q.Encode()
	if err := c.call(ctx, "upload", http.MethodPost, u, contentType, body, http.StatusOK, http.StatusCreated); err != nil {
		return "", fmt.Errorf("uploading %s: %w", object, err)
	}
	return c.PublicURL(object), nil
}

// Delete removes an object given its name or the public URL Upload returned.
func (c *Client) Delete(ctx context.Context, objectOrURL string) error {
	if err := c.ready(); err != nil {
		return err
	}
	object := c.ObjectName(objectOrURL)
	if object == "" {
		return errors.New("gcs object name is required")
	}

	err := c.call(ctx, "delete", http.MethodDelete, c.bucketURL("/o/"+url.PathEscape(object)), "", nil, http.StatusOK, http.StatusNoContent)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("deleting %s: %w", object, err)
	}
	return nil
}

func (c *Client) PublicURL(object string) string {
	return c.publicPrefix() + object
}

// ObjectName strips the public prefix from a URL. Anything else is treated
// as an object name already.
func (c *Client) ObjectName(objectOrURL string) string {
	value := strings.TrimSpace(objectOrURL)
	if rest, ok := strings.CutPrefix(value, c.publicPrefix()); ok {
		value = rest
		if unescaped, err := url.PathUnescape(rest); err == nil {
			value = unescaped
		}
	}
	return strings.TrimLeft(value, "/")
}

func (c *Client) publicPrefix() string {
	return c.publicBase + "/" + c.bucket + "/"
}

func (c *Client) bucketURL(suffix string) string {
	return c.apiBase + "/storage/v1/b/" + url.PathEscape(c.bucket) + suffix
}

func (c *Client) ready() error {
	switch {
	case c == nil || c.tokens == nil:
		return errors.New("gcs client not initialized")
	case c.bucket == "":
		return errors.New("gcs bucket not configured")
	}
	return nil
}

// call performs one authorized request and maps any status outside want to
// an *APIError carrying the start of the response body.
func (c *Client) call(ctx context.Context, op, method, u, contentType string, body io.Reader, want ...int) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("gcs token: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil && c.logg != nil {
			c.logg.Warn(ctx, "gcs: closing response body failed")
		}
	}()

	for _, status := range want {
		if resp.StatusCode == status {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	return &APIError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
}
