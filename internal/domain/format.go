package domain

// FormatInfo describes an image format the editing pipeline accepts.
type FormatInfo struct {
	Name       string   `json:"name"`
	MimeType   string   `json:"mime_type"`
	Extensions []string `json:"extensions"`
}
