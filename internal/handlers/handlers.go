package handlers

import (
	"errors"
	"image"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/example/faceauth/internal/imaging"
	"github.com/example/faceauth/internal/logging"
	"github.com/example/faceauth/internal/usecase"
)

// DefaultMaxUploadSize caps request bodies when no limit is configured.
const DefaultMaxUploadSize = 10 << 20

// Client-facing messages.
const (
	msgNoImage          = "No image provided"
	msgNoUserID         = "No user ID provided"
	msgUserNotFound     = "User not found"
	msgNoFace           = "No face detected in image"
	msgMultipleFaces    = "Multiple faces detected. Please use an image with only one face"
	msgRegistered       = "Face registered successfully"
	msgVerified         = "Face verified successfully"
	msgNotVerified      = "Face verification failed"
	msgDetected         = "Face detected successfully"
	msgNotDetected      = "No face detected in the image"
	msgTooLarge         = "Image exceeds the upload size limit"
	msgProcessingPrefix = "Error processing image: "
)

// RegisterResponse is the body of POST /register.
type RegisterResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	EmbeddingID string `json:"embedding_id,omitempty"`
}

// VerifyResponse is the body of POST /verify.
type VerifyResponse struct {
	Success    bool     `json:"success"`
	Message    string   `json:"message"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// FaceBox is one detected face in DetectResponse.
type FaceBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DetectResponse is the body of POST /detect.
type DetectResponse struct {
	Success  bool      `json:"success"`
	Message  string    `json:"message"`
	Detected bool      `json:"detected"`
	Faces    []FaceBox `json:"faces,omitempty"`
}

// Options tunes RegisterRoutes.
type Options struct {
	MaxUploadSize int64
}

type handler struct {
	uc            *usecase.FaceAuthUseCase
	maxUploadSize int64
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, uc *usecase.FaceAuthUseCase, opts Options) {
	h := &handler{uc: uc, maxUploadSize: opts.MaxUploadSize}
	if h.maxUploadSize <= 0 {
		h.maxUploadSize = DefaultMaxUploadSize
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/register", h.register)
	router.POST("/verify", h.verify)
	router.POST("/detect", h.detect)

	if uc.StatsAvailable() {
		router.GET("/stats", h.stats)
	}
}

func (h *handler) register(c *gin.Context) {
	data, err := h.readImage(c)
	if err != nil {
		h.rejectUpload(c, err)
		return
	}

	result, err := h.uc.Register(c.Request.Context(), data)
	if err != nil {
		c.JSON(http.StatusOK, RegisterResponse{Message: failureMessage(err)})
		return
	}
	c.JSON(http.StatusOK, RegisterResponse{
		Success:     true,
		Message:     msgRegistered,
		EmbeddingID: result.EmbeddingID,
	})
}

func (h *handler) verify(c *gin.Context) {
	data, err := h.readImage(c)
	if err != nil {
		h.rejectUpload(c, err)
		return
	}

	result, err := h.uc.Verify(c.Request.Context(), c.PostForm("user_id"), data)
	if err != nil {
		c.JSON(http.StatusOK, VerifyResponse{Message: failureMessage(err)})
		return
	}
	if !result.Match.Matched {
		c.JSON(http.StatusOK, VerifyResponse{Message: msgNotVerified})
		return
	}
	confidence := result.Match.Confidence
	c.JSON(http.StatusOK, VerifyResponse{
		Success:    true,
		Message:    msgVerified,
		Confidence: &confidence,
	})
}

func (h *handler) detect(c *gin.Context) {
	data, err := h.readImage(c)
	if err != nil {
		h.rejectUpload(c, err)
		return
	}

	result, err := h.uc.Detect(c.Request.Context(), data)
	if err != nil {
		c.JSON(http.StatusOK, DetectResponse{Message: failureMessage(err)})
		return
	}
	if len(result.Boxes) == 0 {
		c.JSON(http.StatusOK, DetectResponse{Success: true, Message: msgNotDetected})
		return
	}
	c.JSON(http.StatusOK, DetectResponse{
		Success:  true,
		Message:  msgDetected,
		Detected: true,
		Faces:    toFaceBoxes(result.Boxes),
	})
}

func (h *handler) stats(c *gin.Context) {
	summary, err := h.uc.GetStatsSummary(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "statistics unavailable"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// readImage returns the bytes of the "image" form file. A missing file is
// not an error here: it yields nil so the use case reports it.
func (h *handler) readImage(c *gin.Context) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize)

	file, err := c.FormFile("image")
	if err != nil {
		if isTooLarge(err) {
			return nil, err
		}
		return nil, nil
	}

	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	return io.ReadAll(src)
}

func (h *handler) rejectUpload(c *gin.Context, err error) {
	_ = c.Error(err)
	if isTooLarge(err) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"success": false, "message": msgTooLarge})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": false, "message": msgProcessingPrefix + err.Error()})
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	// mime/multipart flattens some reader errors into plain strings.
	return strings.Contains(err.Error(), "request body too large")
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, usecase.ErrNoImage):
		return msgNoImage
	case errors.Is(err, usecase.ErrNoIdentifier):
		return msgNoUserID
	case errors.Is(err, usecase.ErrUnknownIdentifier):
		return msgUserNotFound
	case errors.Is(err, usecase.ErrNoFaceDetected):
		return msgNoFace
	case errors.Is(err, usecase.ErrMultipleFacesDetected):
		return msgMultipleFaces
	}
	var decodeErr *imaging.DecodeError
	if errors.As(err, &decodeErr) {
		return msgProcessingPrefix + decodeErr.Error()
	}
	return msgProcessingPrefix + logging.Cause(err).Error()
}

func toFaceBoxes(boxes []image.Rectangle) []FaceBox {
	out := make([]FaceBox, 0, len(boxes))
	for _, b := range boxes {
		out = append(out, FaceBox{X: b.Min.X, Y: b.Min.Y, Width: b.Dx(), Height: b.Dy()})
	}
	return out
}
