package models

// MediaBlob holds attachment bytes. It stays on the device and is never
// replicated.
type MediaBlob struct {
	Base
	MimeType string `json:"mimeType"`
	Name     string `json:"name,omitempty"`
	Data     []byte `json:"data"`
}

// TableName returns the table name for MediaBlob.
func (MediaBlob) TableName() string {
	return "media_blobs"
}

// Validate checks the blob's fields.
func (m *MediaBlob) Validate() error {
	v := newValidation(m)
	if m.MimeType == "" {
		v.Add("mimeType", "is required")
	}
	if len(m.Data) == 0 {
		v.Add("data", "must not be empty")
	}
	return v.Err()
}
