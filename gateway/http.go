package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
)

type askRequest struct {
	Context  string `json:"context"`
	Question string `json:"question"`
}

type askResponse struct {
	Answer string `json:"answer"`
	Status string `json:"status,omitempty"`
}

const statusNoAnswer = "no_answer"

// HTTPAnswerer posts the context and question as JSON to a remote language
// service. Timeouts and retries belong to the Gateway, not to this client.
type HTTPAnswerer struct {
	client *resty.Client
	url    string
}

func NewHTTPAnswerer(url, apiKey string) *HTTPAnswerer {
	client := resty.New().
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}
	return &HTTPAnswerer{client: client, url: url}
}

// Client exposes the underlying resty client, mainly for transport mocking.
func (h *HTTPAnswerer) Client() *resty.Client { return h.client }

func (h *HTTPAnswerer) Answer(ctx context.Context, layoutContext, question string) (string, error) {
	var body askResponse
	resp, err := h.client.R().
		SetContext(ctx).
		SetBody(askRequest{Context: layoutContext, Question: question}).
		SetResult(&body).
		ForceContentType("application/json").
		Post(h.url)
	if err != nil {
		return "", fmt.Errorf("answer request: %w", err)
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusUnprocessableEntity:
		return "", ErrNoAnswer
	case code >= 500, code == http.StatusTooManyRequests, code == http.StatusRequestTimeout:
		return "", fmt.Errorf("answer service returned %s", resp.Status())
	case resp.IsError():
		return "", Permanent(fmt.Errorf("answer service rejected request: %s", resp.Status()))
	}

	if body.Status == statusNoAnswer || strings.TrimSpace(body.Answer) == "" {
		return "", ErrNoAnswer
	}
	return body.Answer, nil
}
