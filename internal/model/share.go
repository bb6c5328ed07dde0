package model

// Share is one uploaded file plus its recipient list and consumption state.
// ClickStatus keys are always exactly the recipient set; Deleted flips
// false -> true at most once and is the only authority for physical removal.
type Share struct {
	FileID      string          `json:"file_id"`
	FileName    string          `json:"file_name"`
	Recipients  []string        `json:"recipients"`
	ClickStatus map[string]bool `json:"click_status"`
	UploadedAt  int64           `json:"uploaded_at"`
	Deleted     bool            `json:"deleted"`
}
