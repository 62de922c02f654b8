// Package detector talks to the external object detection service: one
// encoded image goes up as a multipart upload, raw detections come back.
package detector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ShelfLayoutServer/engine"

	"github.com/go-resty/resty/v2"
)

var ErrEmptyImage = errors.New("empty image")

type detectResponse struct {
	Detections  []engine.RawDetection `json:"detections"`
	ImageWidth  float64               `json:"image_width"`
	ImageHeight float64               `json:"image_height"`
}

type Client struct {
	client  *resty.Client
	baseURL string
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	c := resty.New().SetTimeout(timeout)
	return &Client{client: c, baseURL: strings.TrimRight(baseURL, "/")}
}

// HTTPClient exposes the underlying resty client, mainly for transport mocking.
func (c *Client) HTTPClient() *resty.Client { return c.client }

// Detect uploads image and returns the unfiltered detections. Image
// dimensions reported once per response are copied onto every detection that
// lacks them, so the normalizer can bounds-check boxes.
func (c *Client) Detect(ctx context.Context, image []byte, filename string) ([]engine.RawDetection, error) {
	if len(image) == 0 {
		return nil, ErrEmptyImage
	}
	if filename == "" {
		filename = "image.jpg"
	}
	var result detectResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetFileReader("file", filename, bytes.NewReader(image)).
		SetResult(&result).
		ForceContentType("application/json").
		Post(c.baseURL + "/detect")
	if err != nil {
		return nil, fmt.Errorf("send detect request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("detection failed with status: %s", resp.Status())
	}

	for i := range result.Detections {
		d := &result.Detections[i]
		if d.ImageWidth == 0 {
			d.ImageWidth = result.ImageWidth
		}
		if d.ImageHeight == 0 {
			d.ImageHeight = result.ImageHeight
		}
	}
	if result.Detections == nil {
		result.Detections = []engine.RawDetection{}
	}
	return result.Detections, nil
}

func (c *Client) CheckHealth(ctx context.Context) error {
	resp, err := c.client.R().SetContext(ctx).Get(c.baseURL + "/health")
	if err != nil {
		return fmt.Errorf("detector health: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("detector unhealthy: %d", resp.StatusCode())
	}
	return nil
}
