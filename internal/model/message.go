package model

// MessagePreview is the body and attachment metadata of one message.
type MessagePreview struct {
	// Content is nil when the document had no body container at all,
	// and points to "" when the container was present but empty.
	Content *string `json:"content" yaml:"content"`

	Attachments []AttachmentInfo `json:"attachments" yaml:"attachments"`
}

// HasContent reports whether a body container was found.
func (p MessagePreview) HasContent() bool {
	return p.Content != nil
}

// AttachmentInfo describes one attachment of a previewed message.
type AttachmentInfo struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`

	// Size is the server's display text, e.g. "~120 KB".
	Size string `json:"size" yaml:"size"`

	// Type is the MIME type, e.g. "application/pdf".
	Type string `json:"type" yaml:"type"`

	// URL is the download path relative to the server host.
	URL string `json:"url" yaml:"url"`
}
