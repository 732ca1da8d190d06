package sniffer

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"
)

type MediaType string

const (
	TypeJPEG MediaType = "jpeg"
	TypePNG  MediaType = "png"
	TypeGIF  MediaType = "gif"
	TypeWEBP MediaType = "webp"
)

// headSize is how much of a file Detect needs to see.
const headSize = 512

var ErrUnknownType = errors.New("unknown media type")

// jpegContentTypes are the declared types accepted for a pack image.
var jpegContentTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/jpg":  {},
}

// Detect identifies the image format from the leading bytes of r.
func Detect(r io.Reader) (MediaType, error) {
	head := make([]byte, headSize)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	return DetectHead(head[:n])
}

func DetectHead(head []byte) (MediaType, error) {
	switch {
	case isJPEG(head):
		return TypeJPEG, nil
	case isPNG(head):
		return TypePNG, nil
	case isGIF(head):
		return TypeGIF, nil
	case isWEBP(head):
		return TypeWEBP, nil
	}
	return "", ErrUnknownType
}

func isJPEG(head []byte) bool {
	return len(head) > 3 &&
		head[0] == 0xff &&
		head[1] == 0xd8 &&
		head[2] == 0xff
}

func isPNG(head []byte) bool {
	return bytes.HasPrefix(head, []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'})
}

func isGIF(head []byte) bool {
	return bytes.HasPrefix(head, []byte("GIF87a")) || bytes.HasPrefix(head, []byte("GIF89a"))
}

func isWEBP(head []byte) bool {
	return len(head) >= 12 &&
		bytes.Equal(head[:4], []byte("RIFF")) &&
		bytes.Equal(head[8:12], []byte("WEBP"))
}

// MimeTypeFromHTTP returns the media type of a part's Content-Type header
// without parameters, lower cased.
func MimeTypeFromHTTP(header http.Header) string {
	contentType := header.Get("Content-Type")
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = contentType[:idx]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

// IsJPEGContentType reports whether a declared content type names JPEG.
func IsJPEGContentType(contentType string) bool {
	_, ok := jpegContentTypes[contentType]
	return ok
}
