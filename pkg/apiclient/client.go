// Package apiclient is the device-side HTTP client for the push API. It is
// what the device CLI and the registrar speak to the server through.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/famnews/famnews/internal/pushtransport"
	"github.com/famnews/famnews/pkg/cerr"
)

const apiKeyHeader = "X-API-Key"

// codeByName inverts cerr.Code.String() so wire errors round-trip into the
// same coded errors the server raised.
var codeByName = func() map[string]cerr.Code {
	m := make(map[string]cerr.Code, 17)
	for c := cerr.OK; c <= cerr.Unauthenticated; c++ {
		m[c.String()] = c
	}
	return m
}()

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type keyResponse struct {
	PublicKey string `json:"publicKey"`
}

func (c *Client) ServerKey(ctx context.Context) (string, error) {
	var resp keyResponse
	if err := c.do(ctx, http.MethodGet, "/api/push/key", nil, &resp); err != nil {
		return "", err
	}
	return resp.PublicKey, nil
}

type registerRequest struct {
	UserID   string `json:"userId"`
	Endpoint string `json:"endpoint"`
	P256dh   string `json:"p256dh"`
	Auth     string `json:"auth"`
}

func (c *Client) Register(ctx context.Context, userID string, ch *pushtransport.Channel) error {
	req := registerRequest{
		UserID:   userID,
		Endpoint: ch.Endpoint,
		P256dh:   ch.P256dhKey,
		Auth:     ch.AuthKey,
	}
	return c.do(ctx, http.MethodPost, "/api/push/subscriptions", req, nil)
}

type unregisterRequest struct {
	UserID   string `json:"userId"`
	Endpoint string `json:"endpoint"`
}

func (c *Client) Unregister(ctx context.Context, userID, endpoint string) error {
	req := unregisterRequest{UserID: userID, Endpoint: endpoint}
	return c.do(ctx, http.MethodDelete, "/api/push/subscriptions", req, nil)
}

type sendRequest struct {
	Title         string `json:"title,omitempty"`
	Body          string `json:"body,omitempty"`
	URL           string `json:"url,omitempty"`
	ExcludeUserID string `json:"excludeUserId,omitempty"`
}

// SendResult is the server's broadcast summary.
type SendResult struct {
	Message string `json:"message"`
	Sent    int    `json:"sent"`
	Failed  int    `json:"failed"`
}

func (c *Client) Send(ctx context.Context, title, body, url, excludeUserID string) (*SendResult, error) {
	req := sendRequest{Title: title, Body: body, URL: url, ExcludeUserID: excludeUserID}
	var resp SendResult
	if err := c.do(ctx, http.MethodPost, "/api/notifications/send", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type messageResponse struct {
	Message string `json:"message"`
}

func (c *Client) SendTest(ctx context.Context) (string, error) {
	var resp messageResponse
	if err := c.do(ctx, http.MethodPost, "/api/notifications/test", struct{}{}, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

func (c *Client) do(ctx context.Context, method, path string, reqBody, respBody any) error {
	var body io.Reader
	if reqBody != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(reqBody); err != nil {
			return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to encode request: %w", err))
		}
		body = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return cerr.NewError(cerr.Unavailable, "push api is unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if respBody == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

type wireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func decodeError(resp *http.Response) error {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return cerr.NewError(cerr.Unknown, fmt.Sprintf("push api returned status %d", resp.StatusCode), err)
	}
	var we wireError
	if err := json.Unmarshal(data, &we); err == nil && we.Code != "" {
		if code, ok := codeByName[we.Code]; ok {
			return cerr.NewError(code, we.Message, nil)
		}
	}
	return cerr.NewError(cerr.Unknown, fmt.Sprintf("push api returned status %d", resp.StatusCode), nil)
}
