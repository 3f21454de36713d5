// Package photos copies person photos into storage owned by the application.
package photos

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	pkgerrors "gentree/pkg/errors"
)

// DefaultExtension is used when the source has no recognizable extension.
const DefaultExtension = "jpg"

// ExtensionFromURI returns the extension of the last path element of uri,
// ignoring any query string. "file:///a/b.png?x=1" gives "png".
func ExtensionFromURI(uri string) string {
	s, _, _ := strings.Cut(uri, "?")
	i := strings.LastIndexByte(s, '.')
	if i < 0 || i == len(s)-1 {
		return DefaultExtension
	}
	ext := s[i+1:]
	for _, r := range ext {
		if !isAlnum(r) {
			return DefaultExtension
		}
	}
	return ext
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// ContentType maps a file extension to its image MIME type.
func ContentType(ext string) string {
	switch strings.ToLower(ext) {
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "webp":
		return "image/webp"
	case "gif":
		return "image/gif"
	case "bmp":
		return "image/bmp"
	case "heic":
		return "image/heic"
	case "svg":
		return "image/svg+xml"
	default:
		return "application/octet-stream"
	}
}

func extensionForMIME(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	case "image/bmp":
		return "bmp"
	case "image/heic":
		return "heic"
	default:
		return DefaultExtension
	}
}

// openSource resolves a photo source to a reader and the extension the
// stored copy should carry.
func openSource(ctx context.Context, source string) (io.ReadCloser, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, "", pkgerrors.NewValidationError("photo source is required")
	}

	if strings.HasPrefix(source, "data:") {
		data, ext, err := decodeDataURI(source)
		if err != nil {
			return nil, "", err
		}
		return io.NopCloser(bytes.NewReader(data)), ext, nil
	}

	path := source
	if strings.HasPrefix(source, "file://") {
		u, err := url.Parse(source)
		if err != nil {
			return nil, "", pkgerrors.NewValidationError("invalid file uri").WithCause(err)
		}
		path = u.Path
	} else if strings.Contains(source, "://") {
		return nil, "", pkgerrors.NewValidationError(fmt.Sprintf("unsupported photo source %q", source))
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", pkgerrors.NewNotFoundError("photo source " + path)
		}
		return nil, "", pkgerrors.NewExternalError("filesystem", err)
	}
	return f, ExtensionFromURI(source), nil
}

// decodeDataURI handles "data:<mime>[;base64],<payload>".
func decodeDataURI(uri string) ([]byte, string, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, "", pkgerrors.NewValidationError("malformed data uri")
	}
	mimeType, params, _ := strings.Cut(meta, ";")
	ext := extensionForMIME(mimeType)

	if strings.Contains(params, "base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, "", pkgerrors.NewValidationError("data uri is not valid base64").WithCause(err)
		}
		return data, ext, nil
	}
	data, err := url.PathUnescape(payload)
	if err != nil {
		return nil, "", pkgerrors.NewValidationError("data uri is not valid").WithCause(err)
	}
	return []byte(data), ext, nil
}

// objectName is "<personID>.<ext>"; ids containing path separators are rejected.
func objectName(personID, ext string) (string, error) {
	if personID == "" || strings.ContainsAny(personID, `/\`) || personID == "." || personID == ".." {
		return "", pkgerrors.NewValidationError(fmt.Sprintf("invalid person id %q for photo", personID))
	}
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		ext = DefaultExtension
	}
	for _, r := range ext {
		if !isAlnum(r) {
			ext = DefaultExtension
			break
		}
	}
	return personID + "." + ext, nil
}
