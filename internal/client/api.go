package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Gopher0727/LiveChat/internal/model"
	"github.com/Gopher0727/LiveChat/internal/protocol"
)

// API is the chat history endpoint as seen by a client.
type API interface {
	List(ctx context.Context) ([]model.Message, error)
	Create(ctx context.Context, username, content, socketID string) (*model.Message, error)
}

// APIError is a response the server produced on purpose: a validation
// failure, a rate limit or an outage. Transport failures are not APIErrors.
type APIError struct {
	StatusCode int
	Message    string
	Fields     map[string][]string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("chat api: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("chat api: %d %s", e.StatusCode, e.Message)
}

// HTTPClient talks to GET and POST /messages.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) List(ctx context.Context) ([]model.Message, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/messages", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build list request: %w", err)
	}

	messages := make([]model.Message, 0)
	if err := c.do(req, http.StatusOK, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (c *HTTPClient) Create(ctx context.Context, username, content, socketID string) (*model.Message, error) {
	body, err := json.Marshal(map[string]string{"username": username, "content": content})
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if socketID != "" {
		req.Header.Set(protocol.SocketIDHeader, socketID)
	}

	var msg model.Message
	if err := c.do(req, http.StatusCreated, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *HTTPClient) do(req *http.Request, want int, out any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s %s response: %w", req.Method, req.URL.Path, err)
	}
	if resp.StatusCode != want {
		return decodeAPIError(resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

func decodeAPIError(status int, body []byte) *APIError {
	var payload struct {
		Message string              `json:"message"`
		Error   string              `json:"error"`
		Errors  map[string][]string `json:"errors"`
	}
	_ = json.Unmarshal(body, &payload)

	apiErr := &APIError{StatusCode: status, Message: payload.Message, Fields: payload.Errors}
	if apiErr.Message == "" {
		apiErr.Message = payload.Error
	}
	return apiErr
}
