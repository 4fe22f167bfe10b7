package export

import (
	"context"
	"fmt"
	"time"

	"assistant-relay/internal/conversation"
)

// Document is an exported conversation. URL is set when the document was
// uploaded.
type Document struct {
	Name string
	Data []byte
	URL  string
}

// Exporter turns a conversation into a DOCX document and optionally uploads it.
type Exporter struct {
	conv     Converter
	uploader Uploader
	now      func() time.Time
}

// New builds an exporter. uploader may be nil.
func New(conv Converter, uploader Uploader) *Exporter {
	return &Exporter{conv: conv, uploader: uploader, now: time.Now}
}

func (e *Exporter) Export(ctx context.Context, sessionID string, conv conversation.Conversation) (Document, error) {
	if len(conv) == 0 {
		return Document{}, fmt.Errorf("conversation %s is empty", sessionID)
	}
	at := e.now()
	name := fmt.Sprintf("conversation-%s-%s", sessionID, at.UTC().Format("20060102-150405"))
	md := Markdown("Conversation "+sessionID, conv, at)

	data, err := e.conv.MarkdownToDocx(ctx, name, md)
	if err != nil {
		return Document{}, fmt.Errorf("failed to convert conversation: %w", err)
	}
	doc := Document{Name: name + ".docx", Data: data}
	if e.uploader == nil {
		return doc, nil
	}
	url, err := e.uploader.Upload(ctx, doc.Name, data)
	if err != nil {
		return Document{}, err
	}
	doc.URL = url
	return doc, nil
}
