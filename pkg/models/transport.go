package models

import (
	"time"

	"go-carlost-detector/internal/detector"
	"go-carlost-detector/internal/pipeline"
	"go-carlost-detector/internal/strategy"
)

// DetectRequest asks for detection on a frame fetched from URL
type DetectRequest struct {
	URL      string `json:"url" binding:"required"`
	Rotation int    `json:"rotation"`
}

// OverlayRequest asks for a rendered overlay of a frame fetched from URL.
// A zero view size uses the configured view.
type OverlayRequest struct {
	URL        string `json:"url" binding:"required"`
	Rotation   int    `json:"rotation"`
	ViewWidth  int    `json:"view_width,omitempty"`
	ViewHeight int    `json:"view_height,omitempty"`
}

// DetectResponse is the outcome of one synchronous detection
type DetectResponse struct {
	FrameID         string               `json:"frame_id"`
	Timestamp       string               `json:"timestamp"`
	Detections      []detector.Detection `json:"detections"`
	Labels          []string             `json:"labels"`
	LabelText       string               `json:"label_text"`
	InferenceTimeMs int64                `json:"inference_time_ms"`
	ImageHeight     int                  `json:"image_height"`
	ImageWidth      int                  `json:"image_width"`
	Error           string               `json:"error,omitempty"`
}

// FrameAcceptedResponse is returned when a frame enters the pipeline
type FrameAcceptedResponse struct {
	FrameID  string `json:"frame_id"`
	Accepted bool   `json:"accepted"`
}

// TrackingRequest turns lost item tracking on or off and optionally switches
// the boarding strategy
type TrackingRequest struct {
	Active   *bool  `json:"active" binding:"required"`
	Strategy string `json:"strategy,omitempty"`
	Reset    bool   `json:"reset,omitempty"`
}

// CabinRequest carries door and seat signals from the vehicle bus
type CabinRequest struct {
	DoorOpen     bool `json:"door_open"`
	SeatOccupied bool `json:"seat_occupied"`
}

// StatusResponse describes the running service
type StatusResponse struct {
	EngineLoaded   bool                   `json:"engine_loaded"`
	ModelName      string                 `json:"model_name"`
	ScoreThreshold float32                `json:"score_threshold"`
	MaxResults     int                    `json:"max_results"`
	Tracker        strategy.TrackerStatus `json:"tracker"`
	Pipeline       pipeline.Stats         `json:"pipeline"`
	Overlay        OverlayStatus          `json:"overlay"`
	Subscribers    int                    `json:"subscribers"`
}

// OverlayStatus describes the most recent rendered overlay
type OverlayStatus struct {
	Version    uint64    `json:"version"`
	Detections int       `json:"detections"`
	RenderedAt time.Time `json:"rendered_at,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
