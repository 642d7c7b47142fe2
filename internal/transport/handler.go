package transport

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go-carlost-detector/internal/config"
	apperrors "go-carlost-detector/internal/errors"
	"go-carlost-detector/internal/logger"
	"go-carlost-detector/internal/service"
	"go-carlost-detector/pkg/models"
	"go-carlost-detector/pkg/validation"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	frameField    = "frame"
	rotationField = "rotation"
)

// uploads are checked against the declared image size before decoding
var frameLimits = validation.DefaultFrameLimits()

// NewHandler builds the HTTP API. ws, when non-nil, serves the websocket
// notification stream.
func NewHandler(svc service.DetectionService, ws http.Handler, cfg *config.Config) http.Handler {
	r := gin.Default()

	// Add middleware
	r.Use(
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	// Configure routes
	r.GET("/health", healthCheck)

	v1 := r.Group("/v1")
	v1.POST("/detect", detectFrame(svc, cfg))
	v1.POST("/overlay", renderOverlay(svc, cfg))
	v1.POST("/frames", ingestFrame(svc))
	v1.GET("/overlay/latest", latestOverlay(svc))
	v1.GET("/status", status(svc))
	v1.PUT("/tracking", setTracking(svc))
	v1.PUT("/cabin", setCabin(svc))
	v1.DELETE("/engine", clearEngine(svc))
	v1.GET("/metrics", metrics(svc))
	if ws != nil {
		v1.GET("/ws", gin.WrapH(ws))
	}

	return r
}

func detectFrame(svc service.DetectionService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		logger.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"user_agent": c.Request.UserAgent(),
			"ip":         c.ClientIP(),
		}).Info("Processing detection request")

		var (
			resp *models.DetectResponse
			err  error
		)
		if isMultipart(c) {
			img, rotation, ferr := readFrame(c)
			if ferr != nil {
				respondError(c, apperrors.GetStatusCode(ferr), "invalid frame", ferr)
				return
			}
			resp, err = svc.Detect(ctx, img, rotation)
		} else {
			var req models.DetectRequest
			if berr := c.ShouldBindJSON(&req); berr != nil {
				respondError(c, http.StatusBadRequest, "invalid request format", berr)
				return
			}
			resp, err = svc.DetectURL(ctx, req.URL, req.Rotation)
		}
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "detection failed", err)
			return
		}

		logger.WithFields(logrus.Fields{
			"frame_id":           resp.FrameID,
			"labels":             resp.LabelText,
			"inference_time_ms":  resp.InferenceTimeMs,
			"processing_time_ms": time.Since(startTime).Milliseconds(),
		}).Info("Detection completed successfully")

		c.JSON(http.StatusOK, resp)
	}
}

func renderOverlay(svc service.DetectionService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		var (
			png []byte
			err error
		)
		if isMultipart(c) {
			img, rotation, ferr := readFrame(c)
			if ferr != nil {
				respondError(c, apperrors.GetStatusCode(ferr), "invalid frame", ferr)
				return
			}
			width, werr := intForm(c, "view_width")
			height, herr := intForm(c, "view_height")
			if werr != nil || herr != nil {
				respondError(c, http.StatusBadRequest, "invalid view size", errors.Join(werr, herr))
				return
			}
			png, err = svc.RenderOverlay(ctx, img, rotation, width, height)
		} else {
			var req models.OverlayRequest
			if berr := c.ShouldBindJSON(&req); berr != nil {
				respondError(c, http.StatusBadRequest, "invalid request format", berr)
				return
			}
			png, err = svc.RenderOverlayURL(ctx, req.URL, req.Rotation, req.ViewWidth, req.ViewHeight)
		}
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "overlay rendering failed", err)
			return
		}
		c.Data(http.StatusOK, "image/png", png)
	}
}

func ingestFrame(svc service.DetectionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		img, rotation, err := readFrame(c)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "invalid frame", err)
			return
		}

		frameID, err := svc.Ingest(img, rotation)
		if apperrors.IsType(err, apperrors.ErrorTypeBusy) {
			c.JSON(http.StatusTooManyRequests, models.FrameAcceptedResponse{FrameID: frameID})
			return
		}
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "frame rejected", err)
			return
		}
		c.JSON(http.StatusAccepted, models.FrameAcceptedResponse{FrameID: frameID, Accepted: true})
	}
}

func latestOverlay(svc service.DetectionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := svc.Snapshot()
		if snap.Version == 0 {
			respondError(c, http.StatusNotFound, "no overlay rendered yet",
				apperrors.NewNotFoundError("overlay not available", nil))
			return
		}
		c.Header("X-Overlay-Version", strconv.FormatUint(snap.Version, 10))
		c.Header("X-Overlay-Detections", strconv.Itoa(snap.Detections))
		c.Data(http.StatusOK, "image/png", snap.PNG)
	}
}

func status(svc service.DetectionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, svc.Status())
	}
}

func setTracking(svc service.DetectionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.TrackingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "invalid request format", err)
			return
		}
		st, err := svc.SetTracking(req)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "tracking update failed", err)
			return
		}
		c.JSON(http.StatusOK, st)
	}
}

func setCabin(svc service.DetectionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.CabinRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "invalid request format", err)
			return
		}
		st, err := svc.SetCabinSignals(req.DoorOpen, req.SeatOccupied)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "cabin update failed", err)
			return
		}
		c.JSON(http.StatusOK, st)
	}
}

func clearEngine(svc service.DetectionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		svc.ClearEngine()
		c.Status(http.StatusNoContent)
	}
}

func metrics(svc service.DetectionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, svc.Metrics())
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": "1.0.0",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/")
}

// readFrame decodes the uploaded frame and its rotation from a multipart form
func readFrame(c *gin.Context) (image.Image, int, error) {
	header, err := c.FormFile(frameField)
	if err != nil {
		return nil, 0, apperrors.NewValidationError("frame file is required", err)
	}
	file, err := header.Open()
	if err != nil {
		return nil, 0, apperrors.NewValidationError("frame file is unreadable", err)
	}
	defer file.Close()

	rotation, err := intForm(c, rotationField)
	if err != nil {
		return nil, 0, err
	}

	img, err := frameLimits.DecodeFrame(file)
	if err != nil {
		return nil, 0, err
	}
	return img, rotation, nil
}

func intForm(c *gin.Context, key string) (int, error) {
	raw := strings.TrimSpace(c.PostForm(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.NewValidationError(fmt.Sprintf("%s must be an integer", key), err)
	}
	return v, nil
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last()
			respondError(c, determineStatusCode(err.Err), "request processing failed", err)
		}
	}
}

func determineStatusCode(err error) int {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	c.AbortWithStatusJSON(code, models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: fmt.Sprintf("%s: %v", message, err),
	})
}
