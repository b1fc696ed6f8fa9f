package apistore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"moto-yard/internal/parking"
)

// Client talks to the yard's REST back-end. Errors are mapped onto the
// parking error taxonomy so the coordinator can classify them.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return NewWithHTTPClient(baseURL, &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	})
}

func NewWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

type apiError struct {
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(method, path, resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w: %w", method, path, parking.ErrIO, err)
	}
	return nil
}

func transportError(method, path string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%s %s: %w: %w", method, path, parking.ErrTransient, err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	return fmt.Errorf("%s %s: no response from server: %w: %w", method, path, parking.ErrIO, err)
}

func statusError(method, path string, status int, body []byte) error {
	msg := http.StatusText(status)
	var apiErr apiError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
		msg = apiErr.Message
	}

	var kind error
	switch {
	case status == http.StatusNotFound:
		kind = parking.ErrNotFound
	case status == http.StatusConflict:
		kind = parking.ErrConflict
	case status == http.StatusServiceUnavailable, status == http.StatusGatewayTimeout, status == http.StatusRequestTimeout:
		kind = parking.ErrTransient
	default:
		kind = parking.ErrIO
	}
	return fmt.Errorf("%s %s: %w: %d %s", method, path, kind, status, msg)
}

// unwrapList accepts {items:[{data:{...}}]}, {items:[...]}, {data:[...]} or a
// bare array.
func unwrapList(data json.RawMessage) ([]json.RawMessage, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	var list []json.RawMessage
	if data[0] == '[' {
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, err
		}
	} else {
		var envelope struct {
			Items []json.RawMessage `json:"items"`
			Data  json.RawMessage   `json:"data"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			return nil, err
		}
		switch {
		case envelope.Items != nil:
			list = envelope.Items
		case len(envelope.Data) > 0:
			return unwrapList(envelope.Data)
		}
	}

	for i, item := range list {
		var wrapped struct {
			Data json.RawMessage `json:"data"`
		}
		if json.Unmarshal(item, &wrapped) == nil && len(wrapped.Data) > 0 && wrapped.Data[0] == '{' {
			list[i] = wrapped.Data
		}
	}
	return list, nil
}
