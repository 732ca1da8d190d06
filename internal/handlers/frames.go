package handlers

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"imagepacks/internal/media/sniffer"
	"imagepacks/internal/models"
	"imagepacks/internal/service"
)

// filesField is the multipart field carrying the pack's images.
const filesField = "files"

var (
	errNoFiles         = errors.New("No images uploaded.")
	errTooManyImages   = errors.New("Too many images uploaded.")
	errUnsupportedType = errors.New("Jpeg image format is expected.")
)

type saveResponse struct {
	RequestCode string   `json:"request_code"`
	SavedImages []string `json:"saved_images"`
}

type imageResponse struct {
	Name                 string `json:"name"`
	SavedOn              string `json:"saved_on"`
	Base64EncodedContent string `json:"base64_encoded_content"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (h HandlerSet) SaveFrames(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form expected"})
		return
	}

	headers := form.File[filesField]
	if err := h.validateFiles(headers); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	uploads := make([]service.ImageUpload, 0, len(headers))
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
			return
		}
		defer file.Close()

		if h.cfg.Upload.VerifySignature {
			if kind, err := checkSignature(file); err != nil {
				h.log.Warn().
					Str("file", header.Filename).
					Str("declared", header.Header.Get("Content-Type")).
					Str("detected", detectedName(kind)).
					Msg("image signature mismatch")
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}

		uploads = append(uploads, service.ImageUpload{
			Name:    header.Filename,
			Content: file,
			Size:    header.Size,
		})
	}

	result, err := h.packs.SavePack(c.Request.Context(), uploads)
	if err != nil {
		h.log.Error().Err(err).Int("images", len(uploads)).Msg("save pack failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save images"})
		return
	}

	c.JSON(http.StatusOK, saveResponse{
		RequestCode: result.PackID,
		SavedImages: result.SavedImages,
	})
}

func (h HandlerSet) GetFrames(c *gin.Context) {
	requestCode := c.Param("request_code")

	images, err := h.packs.GetPack(c.Request.Context(), requestCode)
	if err != nil {
		if errors.Is(err, service.ErrUnknownPack) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Incorrect request code: %s", requestCode)})
			return
		}
		h.log.Error().Err(err).Str("pack_id", requestCode).Msg("get pack failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load images"})
		return
	}

	resp := make([]imageResponse, 0, len(images))
	for _, img := range images {
		resp = append(resp, imageResponse{
			Name:                 img.Name,
			SavedOn:              img.SavedOn.Format(models.TimestampLayout),
			Base64EncodedContent: base64.StdEncoding.EncodeToString(img.Content),
		})
	}
	c.JSON(http.StatusOK, resp)
}

func (h HandlerSet) DeleteFrames(c *gin.Context) {
	requestCode := c.Param("request_code")

	message, err := h.packs.DeletePack(c.Request.Context(), requestCode)
	if err != nil {
		if errors.Is(err, service.ErrUnknownPack) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("There is no images with request code: %s", requestCode)})
			return
		}
		h.log.Error().Err(err).Str("pack_id", requestCode).Msg("delete pack failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete images"})
		return
	}

	c.JSON(http.StatusOK, messageResponse{Message: message})
}

// validateFiles runs before anything is opened or stored.
func (h HandlerSet) validateFiles(headers []*multipart.FileHeader) error {
	if len(headers) == 0 {
		return errNoFiles
	}
	if len(headers) > h.cfg.Upload.MaxImages {
		return errTooManyImages
	}
	for _, header := range headers {
		if !sniffer.IsJPEGContentType(sniffer.MimeTypeFromHTTP(http.Header(header.Header))) {
			return errUnsupportedType
		}
	}
	return nil
}

// checkSignature confirms the file starts like a JPEG and rewinds it. The
// detected type is returned for logging when the check fails.
func checkSignature(file multipart.File) (sniffer.MediaType, error) {
	kind, err := sniffer.Detect(file)
	if err != nil || kind != sniffer.TypeJPEG {
		return kind, errUnsupportedType
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return kind, fmt.Errorf("rewind: %w", err)
	}
	return kind, nil
}

func detectedName(kind sniffer.MediaType) string {
	if kind == "" {
		return "unknown"
	}
	return string(kind)
}
