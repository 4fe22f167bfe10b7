package export

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"assistant-relay/internal/conversation"
)

func TestMarkdownKeepsOrder(t *testing.T) {
	conv := conversation.Conversation{
		{Role: conversation.RoleUser, Text: "Hello"},
		{Role: conversation.RoleAssistant, Text: "Hi, how can I help?\n"},
	}
	md := Markdown("Chat", conv, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))

	if !strings.HasPrefix(md, "# Chat\n") {
		t.Fatalf("missing title: %q", md)
	}
	user := strings.Index(md, "## User\n\nHello")
	asst := strings.Index(md, "## Assistant\n\nHi, how can I help?")
	if user < 0 || asst < 0 || user > asst {
		t.Fatalf("unexpected markdown: %q", md)
	}
	if !strings.Contains(md, "2024-03-01 10:00") {
		t.Fatalf("missing timestamp: %q", md)
	}
}

func TestConvertAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/convert/md/to/docx" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer s3cret" {
			t.Errorf("missing auth header")
		}
		var req convertRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if len(req.Parameters) == 0 || req.Parameters[0].FileValue == nil {
			t.Errorf("missing file parameter: %+v", req)
		} else {
			md, _ := base64.StdEncoding.DecodeString(req.Parameters[0].FileValue.Data)
			if string(md) != "# hi" || req.Parameters[0].FileValue.Name != "doc.md" {
				t.Errorf("unexpected file: %+v", req.Parameters[0].FileValue)
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"Files": []map[string]string{{"FileName": "doc.docx", "FileExt": "docx", "FileData": base64.StdEncoding.EncodeToString([]byte("DOCX"))}},
		})
	}))
	defer srv.Close()

	data, err := NewConvertAPI("s3cret", srv.URL).MarkdownToDocx(context.Background(), "doc", "# hi")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if string(data) != "DOCX" {
		t.Fatalf("unexpected data %q", data)
	}
}

func TestConvertAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"Message":"bad secret"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewConvertAPI("x", srv.URL).MarkdownToDocx(context.Background(), "doc", "# hi")
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected 401 error, got %v", err)
	}
	if _, err := NewConvertAPI("", srv.URL).MarkdownToDocx(context.Background(), "doc", "# hi"); err == nil {
		t.Fatalf("missing secret should fail")
	}
}

type fakeConverter struct{ md string }

func (f *fakeConverter) MarkdownToDocx(ctx context.Context, name, markdown string) ([]byte, error) {
	f.md = markdown
	return []byte("DOCX"), nil
}

type fakeUploader struct {
	name string
	err  error
}

func (f *fakeUploader) Upload(ctx context.Context, name string, data []byte) (string, error) {
	f.name = name
	return "https://drive.example/" + name, f.err
}

func TestExporter(t *testing.T) {
	conv := conversation.Conversation{{Role: conversation.RoleUser, Text: "Hello"}}
	fc := &fakeConverter{}
	e := New(fc, nil)
	e.now = func() time.Time { return time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC) }

	doc, err := e.Export(context.Background(), "s1", conv)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if doc.Name != "conversation-s1-20240301-100000.docx" || string(doc.Data) != "DOCX" || doc.URL != "" {
		t.Fatalf("unexpected doc: %+v", doc)
	}
	if !strings.Contains(fc.md, "Hello") {
		t.Fatalf("markdown not passed to converter")
	}

	up := &fakeUploader{}
	e.uploader = up
	doc, err = e.Export(context.Background(), "s1", conv)
	if err != nil || doc.URL != "https://drive.example/"+doc.Name || up.name != doc.Name {
		t.Fatalf("upload not applied: %+v %v", doc, err)
	}

	up.err = errors.New("quota")
	if _, err := e.Export(context.Background(), "s1", conv); err == nil {
		t.Fatalf("expected upload error")
	}
	if _, err := e.Export(context.Background(), "s1", nil); err == nil {
		t.Fatalf("empty conversation should fail")
	}
}
