package sniffer

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		head []byte
		want MediaType
	}{
		{name: "jpeg", head: []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10}, want: TypeJPEG},
		{name: "png", head: []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0}, want: TypePNG},
		{name: "gif", head: []byte("GIF89a...."), want: TypeGIF},
		{name: "webp", head: []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), want: TypeWEBP},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Detect(bytes.NewReader(tt.head))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Detect(bytes.NewReader([]byte("im0_content")))
	assert.ErrorIs(t, err, ErrUnknownType)

	_, err = Detect(bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestMimeTypeFromHTTP(t *testing.T) {
	h := http.Header{}
	assert.Equal(t, "", MimeTypeFromHTTP(h))

	h.Set("Content-Type", "Image/JPEG; charset=binary")
	assert.Equal(t, "image/jpeg", MimeTypeFromHTTP(h))
}

func TestIsJPEGContentType(t *testing.T) {
	assert.True(t, IsJPEGContentType("image/jpeg"))
	assert.True(t, IsJPEGContentType("image/jpg"))
	assert.False(t, IsJPEGContentType("image/png"))
	assert.False(t, IsJPEGContentType(""))
}
