package media

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"unicode"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/supplyhub-backend/pkg/errors"
	"github.com/angelmondragon/supplyhub-backend/pkg/logger"
)

// File is one uploaded part handed over by the transport layer.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// Uploader stores product media and returns public URLs.
type Uploader interface {
	Upload(ctx context.Context, kind Kind, files []File) ([]string, error)
	Delete(ctx context.Context, urls []string)
}

type objectStore interface {
	Upload(ctx context.Context, object, contentType string, body io.Reader) (string, error)
	Delete(ctx context.Context, objectOrURL string) error
}

// ServiceParams bundles the dependencies of the media uploader.
type ServiceParams struct {
	Store          objectStore
	Prefix         string
	MaxUploadBytes int64
	Logger         *logger.Logger
}

type service struct {
	store    objectStore
	prefix   string
	maxBytes int64
	logg     *logger.Logger
}

// NewService constructs an Uploader backed by the object store.
func NewService(params ServiceParams) (Uploader, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("object store required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	prefix := strings.Trim(strings.TrimSpace(params.Prefix), "/")
	if prefix == "" {
		prefix = "products"
	}
	return &service{
		store:    params.Store,
		prefix:   prefix,
		maxBytes: params.MaxUploadBytes,
		logg:     logg,
	}, nil
}

// Upload validates every file first, then uploads them in order. On any
// upload failure the objects written so far are removed before returning.
func (s *service) Upload(ctx context.Context, kind Kind, files []File) ([]string, error) {
	if len(files) == 0 {
		return nil, nil
	}
	types := make([]string, len(files))
	for i, f := range files {
		contentType, err := s.validate(kind, f)
		if err != nil {
			return nil, err
		}
		types[i] = contentType
	}

	urls := make([]string, 0, len(files))
	for i, f := range files {
		url, err := s.uploadOne(ctx, kind, f, types[i])
		if err != nil {
			s.Delete(ctx, urls)
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "upload media")
		}
		urls = append(urls, url)
	}
	return urls, nil
}

// Delete removes objects best-effort; failures are logged, never returned.
func (s *service) Delete(ctx context.Context, urls []string) {
	for _, url := range urls {
		if strings.TrimSpace(url) == "" {
			continue
		}
		if err := s.store.Delete(ctx, url); err != nil {
			s.logg.Error(s.logg.WithField(ctx, "media_url", url), "media cleanup failed", err)
		}
	}
}

func (s *service) validate(kind Kind, f File) (string, error) {
	if f.Open == nil {
		return "", pkgerrors.Validation("file content missing")
	}
	if strings.TrimSpace(f.Name) == "" {
		return "", pkgerrors.Validation("file name is required")
	}
	if s.maxBytes > 0 && f.Size > s.maxBytes {
		return "", pkgerrors.Validation(fmt.Sprintf("%s exceeds the %d byte limit", f.Name, s.maxBytes))
	}
	contentType, err := mediaTypeOf(f.ContentType, f.Name)
	if err != nil {
		return "", pkgerrors.Validation(fmt.Sprintf("%s: %v", f.Name, err))
	}
	if !kind.accepts(contentType) {
		return "", pkgerrors.Validation(fmt.Sprintf("%s must be one of %s", f.Name, kind.acceptedLabel())).
			WithDetails(map[string]any{"allowed": accepted[kind].types})
	}
	return contentType, nil
}

func (s *service) uploadOne(ctx context.Context, kind Kind, f File, contentType string) (string, error) {
	body, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer body.Close()
	return s.store.Upload(ctx, buildObjectName(s.prefix, kind, uuid.New(), f.Name), contentType, body)
}

func buildObjectName(prefix string, kind Kind, id uuid.UUID, fileName string) string {
	cleanName := sanitizeFileName(fileName)
	if cleanName == "" {
		return fmt.Sprintf("%s/%ss/%s", prefix, kind, id.String())
	}
	return fmt.Sprintf("%s/%ss/%s-%s", prefix, kind, id.String(), cleanName)
}

func sanitizeFileName(name string) string {
	if name == "" {
		return ""
	}
	clean := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if clean == "" || clean == "." || clean == "/" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(clean))
	for _, r := range clean {
		switch {
		case r == '/' || r == '\\' || r == '?' || r == '#' || unicode.IsControl(r):
			continue
		case unicode.IsSpace(r):
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "-_.")
}
