package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const docxMimeType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Uploader stores a document somewhere shareable and returns its link.
type Uploader interface {
	Upload(ctx context.Context, name string, data []byte) (string, error)
}

// DriveUploader puts documents into a Google Drive folder and makes them
// readable by link.
type DriveUploader struct {
	svc      *drive.Service
	folderID string
}

// NewDriveUploader wraps an already authorised HTTP client.
func NewDriveUploader(ctx context.Context, client *http.Client, folderID string) (*DriveUploader, error) {
	svc, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create Drive service: %w", err)
	}
	return &DriveUploader{svc: svc, folderID: folderID}, nil
}

func (u *DriveUploader) Upload(ctx context.Context, name string, data []byte) (string, error) {
	meta := &drive.File{Name: name, MimeType: docxMimeType}
	if u.folderID != "" {
		meta.Parents = []string{u.folderID}
	}
	f, err := u.svc.Files.Create(meta).
		Media(bytes.NewReader(data)).
		Fields("id", "webViewLink").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", name, err)
	}
	if _, err := u.svc.Permissions.Create(f.Id, &drive.Permission{Type: "anyone", Role: "reader"}).Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("failed to share %s: %w", name, err)
	}
	log.Printf("📤 Uploaded %s to Drive (%s)", name, f.Id)
	return f.WebViewLink, nil
}

// DriveClient builds an OAuth2 client from a Google credentials file and a
// cached token. The token file must already hold a token with a refresh
// token; refreshed tokens are written back.
func DriveClient(ctx context.Context, credentialsFile, tokenFile string) (*http.Client, error) {
	cfg, err := DriveOAuthConfig(credentialsFile)
	if err != nil {
		return nil, err
	}
	tok, err := loadToken(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load token from %s: %w", tokenFile, err)
	}
	src := cfg.TokenSource(ctx, tok)
	fresh, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}
	if fresh.AccessToken != tok.AccessToken {
		if err := SaveToken(tokenFile, fresh); err != nil {
			log.Printf("⚠️ Warning: failed to save refreshed token: %v", err)
		}
	}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(fresh, src)), nil
}

// DriveOAuthConfig reads a Google Cloud Console credentials file (desktop or
// web client) and scopes it to files the app creates.
func DriveOAuthConfig(credentialsFile string) (*oauth2.Config, error) {
	raw, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}
	cfg, err := google.ConfigFromJSON(raw, drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	return cfg, nil
}

func loadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, err
	}
	return tok, nil
}

func SaveToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(tok)
}
