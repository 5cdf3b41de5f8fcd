package optimize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to the copy-optimizer service which rewrites listing text.
type Client interface {
	Optimize(ctx context.Context, title, content string) (string, error)
}

type HTTPClient struct {
	baseURL    string
	secret     string
	httpClient *http.Client
}

func NewClient(baseURL, secret string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		secret:  secret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type optimizeRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type optimizeResponse struct {
	Optimized string `json:"optimized"`
}

func (c *HTTPClient) Optimize(ctx context.Context, title, content string) (string, error) {
	url := fmt.Sprintf("%s/v1/optimize", c.baseURL)

	payload := optimizeRequest{
		Title:   title,
		Content: content,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		url,
		bytes.NewReader(body),
	)
	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.secret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf(
			"optimizer error: status=%d body=%s",
			resp.StatusCode,
			string(b),
		)
	}

	var result optimizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	return result.Optimized, nil
}
