package export

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultConvertAPIURL = "https://v2.convertapi.com"

// Converter turns a markdown document into DOCX bytes.
type Converter interface {
	MarkdownToDocx(ctx context.Context, name, markdown string) ([]byte, error)
}

// ConvertAPIClient converts documents through the ConvertAPI REST service.
type ConvertAPIClient struct {
	secret  string
	baseURL string
	client  *http.Client
}

func NewConvertAPI(secret, baseURL string) *ConvertAPIClient {
	if baseURL == "" {
		baseURL = defaultConvertAPIURL
	}
	return &ConvertAPIClient{
		secret:  secret,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type convertParameter struct {
	Name      string     `json:"Name"`
	Value     any        `json:"Value,omitempty"`
	FileValue *fileValue `json:"FileValue,omitempty"`
}

type fileValue struct {
	Name string `json:"Name"`
	Data string `json:"Data"`
}

type convertRequest struct {
	Parameters []convertParameter `json:"Parameters"`
}

type convertResponse struct {
	Files []struct {
		FileName string `json:"FileName"`
		FileExt  string `json:"FileExt"`
		FileData string `json:"FileData"`
	} `json:"Files"`
}

func (c *ConvertAPIClient) MarkdownToDocx(ctx context.Context, name, markdown string) ([]byte, error) {
	if c.secret == "" {
		return nil, fmt.Errorf("convertapi secret is not configured")
	}
	payload := convertRequest{Parameters: []convertParameter{
		{Name: "File", FileValue: &fileValue{Name: name + ".md", Data: base64.StdEncoding.EncodeToString([]byte(markdown))}},
		{Name: "StoreFile", Value: false},
	}}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal convert request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/convert/md/to/docx", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call convertapi: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read convertapi response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("convertapi error %d: %s", resp.StatusCode, string(raw))
	}

	var out convertResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode convertapi response: %w", err)
	}
	if len(out.Files) == 0 {
		return nil, fmt.Errorf("convertapi returned no files")
	}
	data, err := base64.StdEncoding.DecodeString(out.Files[0].FileData)
	if err != nil {
		return nil, fmt.Errorf("failed to decode converted file: %w", err)
	}
	return data, nil
}
