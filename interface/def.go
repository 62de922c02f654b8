package iface

import (
	"context"

	"ShelfLayoutServer/engine"
)

// Detector is the external object detection collaborator. It turns one encoded
// image into raw, unfiltered detections.
type Detector interface {
	Detect(ctx context.Context, image []byte, filename string) ([]engine.RawDetection, error)
}

// Answerer is the external language collaborator. It answers a free text
// question against a serialized shelf context.
type Answerer interface {
	Answer(ctx context.Context, layoutContext string, question string) (string, error)
}
