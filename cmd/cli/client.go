package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// apiError is a non-2xx response from the server.
type apiError struct {
	Status            int
	Message           string
	RetryAfterSeconds int
	OnboardingStep    int
}

func (e *apiError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d: %s", e.Status, e.Message)
	if e.RetryAfterSeconds > 0 {
		fmt.Fprintf(&b, " (retry in %ds)", e.RetryAfterSeconds)
	}
	if e.OnboardingStep > 0 {
		fmt.Fprintf(&b, " (onboarding step %d)", e.OnboardingStep)
	}
	return b.String()
}

// apiClient talks to the chat API over HTTP.
type apiClient struct {
	base  string
	http  *http.Client
	token string
}

func newAPIClient(base, token string, hc *http.Client) *apiClient {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &apiClient{base: strings.TrimRight(base, "/"), http: hc, token: token}
}

// call sends a JSON body (nil for none) and returns the raw JSON response.
func (c *apiClient) call(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req)
}

// uploadProfile posts the save-profile form. image may be empty.
func (c *apiClient) uploadProfile(ctx context.Context, email, username, image string) (json.RawMessage, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("email", email); err != nil {
		return nil, err
	}
	if username != "" {
		if err := w.WriteField("username", username); err != nil {
			return nil, err
		}
	}
	if image != "" {
		data, err := os.ReadFile(image)
		if err != nil {
			return nil, err
		}
		fw, err := w.CreateFormFile("profile_image", filepath.Base(image))
		if err != nil {
			return nil, err
		}
		if _, err := fw.Write(data); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/clients/save-profile", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return c.send(req)
}

func (c *apiClient) send(req *http.Request) (json.RawMessage, error) {
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		var body struct {
			Message           string `json:"message"`
			RetryAfterSeconds int    `json:"retry_after_seconds"`
			OnboardingStep    int    `json:"onboarding_step"`
		}
		_ = json.Unmarshal(raw, &body)
		if body.Message == "" {
			body.Message = http.StatusText(resp.StatusCode)
		}
		return nil, &apiError{
			Status:            resp.StatusCode,
			Message:           body.Message,
			RetryAfterSeconds: body.RetryAfterSeconds,
			OnboardingStep:    body.OnboardingStep,
		}
	}
	return raw, nil
}
