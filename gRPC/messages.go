package proto

import "ShelfLayoutServer/engine"

type AnalyzeRequest struct {
	Detections []engine.RawDetection `json:"detections"`
}

type AnalyzeResponse struct {
	Id              string                 `json:"id"`
	Summary         engine.LayoutSummary   `json:"summary"`
	Stock           []engine.RowStock      `json:"stock"`
	Report          engine.NormalizeReport `json:"report"`
	Recommendations []string               `json:"recommendations"`
	Context         string                 `json:"context"`
}

// UploadImageRequest is one message of an image upload stream. The first
// message should carry the file name; every message may carry a chunk.
type UploadImageRequest struct {
	Filename string `json:"filename,omitempty"`
	Chunk    []byte `json:"chunk,omitempty"`
}

// AskRequest asks about a context returned by an earlier analysis, or, when
// Context is empty, about the given detections.
type AskRequest struct {
	Context    string                `json:"context,omitempty"`
	Detections []engine.RawDetection `json:"detections,omitempty"`
	Question   string                `json:"question"`
}

type AskResponse struct {
	Answer   string `json:"answer"`
	Attempts int    `json:"attempts"`
	Cached   bool   `json:"cached"`
	Context  string `json:"context,omitempty"`
}

type HealthResponse struct {
	Status             string `json:"status"`
	Workers            int    `json:"workers"`
	DetectorConfigured bool   `json:"detector_configured"`
	AnswerMode         string `json:"answer_mode"`
}
