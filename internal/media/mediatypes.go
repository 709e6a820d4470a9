package media

import (
	"errors"
	"fmt"
	"mime"
	"path"
	"slices"
	"strings"
)

// Kind is the product media slot a file is uploaded into.
type Kind string

const (
	KindImage      Kind = "image"
	KindAttachment Kind = "attachment"
)

var (
	imageTypes    = []string{"image/gif", "image/jpeg", "image/png", "image/webp"}
	pdfTypes      = []string{"application/pdf"}
	documentTypes = []string{
		"application/msword",
		"application/vnd.ms-excel",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"text/csv",
		"text/plain",
	}
)

// acceptance is what one Kind takes, with the wording used in rejections.
type acceptance struct {
	types []string
	label string
}

var accepted = map[Kind]acceptance{
	KindImage: {types: imageTypes, label: "images"},
	KindAttachment: {
		types: sortedUnion(pdfTypes, imageTypes, documentTypes),
		label: "PDFs, images, or office documents",
	},
}

func sortedUnion(groups ...[]string) []string {
	out := slices.Concat(groups...)
	slices.Sort(out)
	return slices.Compact(out)
}

func (k Kind) accepts(mediaType string) bool {
	_, found := slices.BinarySearch(accepted[k].types, mediaType)
	return found
}

func (k Kind) acceptedLabel() string {
	if a, ok := accepted[k]; ok {
		return a.label
	}
	return "the approved media types"
}

// mediaTypeOf trusts the declared Content-Type unless it is blank or the
// generic octet-stream, in which case the file extension decides.
func mediaTypeOf(declared, fileName string) (string, error) {
	value := strings.TrimSpace(declared)
	if value == "" || strings.EqualFold(value, "application/octet-stream") {
		value = mime.TypeByExtension(strings.ToLower(path.Ext(fileName)))
	}
	if value == "" {
		return "", errors.New("mime type required")
	}
	mediaType, _, err := mime.ParseMediaType(value)
	if err != nil {
		return "", fmt.Errorf("mime type invalid: %w", err)
	}
	return strings.ToLower(mediaType), nil
}
