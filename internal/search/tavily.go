package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTavilyURL = "https://api.tavily.com"

// TavilyClient talks to the Tavily search REST API directly.
type TavilyClient struct {
	apiKey     string
	baseURL    string
	maxResults int
	httpClient *http.Client
}

func NewTavily(apiKey, baseURL string) *TavilyClient {
	if baseURL == "" {
		baseURL = defaultTavilyURL
	}
	return &TavilyClient{
		apiKey:     apiKey,
		baseURL:    baseURL,
		maxResults: 5,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type tavilyRequest struct {
	APIKey            string `json:"api_key"`
	Query             string `json:"query"`
	SearchDepth       string `json:"search_depth"`
	Topic             string `json:"topic"`
	MaxResults        int    `json:"max_results"`
	IncludeAnswer     bool   `json:"include_answer"`
	IncludeRawContent bool   `json:"include_raw_content"`
	IncludeImages     bool   `json:"include_images"`
}

type tavilyResponse struct {
	Query   string `json:"query"`
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Search runs the query and returns a JSON list of {url, content} trimmed to
// the token budget.
func (c *TavilyClient) Search(ctx context.Context, req Request) (string, error) {
	if req.Depth == "" {
		req.Depth = DepthBasic
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = DefaultMaxTokens
	}
	body := tavilyRequest{
		APIKey:      c.apiKey,
		Query:       req.Query,
		SearchDepth: req.Depth,
		Topic:       "general",
		MaxResults:  c.maxResults,
	}
	raw, err := c.doRequest(ctx, http.MethodPost, "/search", body)
	if err != nil {
		return "", err
	}
	var resp tavilyResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("failed to decode tavily response: %w", err)
	}
	sources := make([]Source, 0, len(resp.Results))
	for _, r := range resp.Results {
		sources = append(sources, Source{URL: r.URL, Content: r.Content})
	}
	return BuildContext(sources, req.MaxTokens)
}

func (c *TavilyClient) doRequest(ctx context.Context, method, endpoint string, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("tavily API error %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
