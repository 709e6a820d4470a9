package validators

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	pkgerrors "github.com/angelmondragon/supplyhub-backend/pkg/errors"
)

// multipartMemory is how much of a form is held in memory before spilling
// file parts to disk.
const multipartMemory = 8 << 20

const maxFormValueLen = 2048

// IsMultipart reports whether the request carries a multipart form.
func IsMultipart(r *http.Request) bool {
	return strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "multipart/form-data")
}

// ParseMultipart caps the body at maxBytes and parses the form.
func ParseMultipart(w http.ResponseWriter, r *http.Request, maxBytes int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return pkgerrors.New(pkgerrors.CodeValidation, "upload exceeds size limit").
				WithDetails(map[string]any{"max_bytes": maxBytes})
		}
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart form")
	}
	return nil
}

// FormValue returns the trimmed first value for key and whether it was sent.
func FormValue(r *http.Request, key string) (string, bool) {
	if r.MultipartForm == nil {
		return "", false
	}
	values, ok := r.MultipartForm.Value[key]
	if !ok || len(values) == 0 {
		return "", false
	}
	return cleanFormValue(values[0]), true
}

// FormValues returns every trimmed, non-empty value sent under any of keys.
func FormValues(r *http.Request, keys ...string) []string {
	if r.MultipartForm == nil {
		return nil
	}
	var out []string
	for _, key := range keys {
		for _, value := range r.MultipartForm.Value[key] {
			if v := cleanFormValue(value); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

// FormFiles collects the file parts sent under any of keys, so both
// "image" and "image[]" spellings are accepted.
func FormFiles(r *http.Request, keys ...string) []*multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	var out []*multipart.FileHeader
	for _, key := range keys {
		out = append(out, r.MultipartForm.File[key]...)
	}
	return out
}

func cleanFormValue(v string) string {
	v = strings.TrimSpace(v)
	if len(v) > maxFormValueLen {
		return v[:maxFormValueLen]
	}
	return v
}
