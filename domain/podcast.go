package domain

import (
	"strings"
	"unicode/utf16"
)

// Podcast mirrors the backend's podcast record.
type Podcast struct {
	ID             string `json:"id"`
	UserID         string `json:"user_id,omitempty"`
	Title          string `json:"title"`
	Duration       int    `json:"duration"` // seconds
	CreatedAt      string `json:"created_at"`
	AudioURL       string `json:"audio_url"`
	SourceEmails   int    `json:"source_emails"`
	ScriptMarkdown string `json:"script_markdown,omitempty"`
}

const placeholderAudioHost = "example.com"

// HasAudio is false for records that still point at a placeholder URL.
func (p *Podcast) HasAudio() bool {
	return p != nil && p.AudioURL != "" && !strings.Contains(p.AudioURL, placeholderAudioHost)
}

// AudioFileName builds the download name from the title. Every character
// outside [a-zA-Z0-9] becomes one underscore per UTF-16 code unit, so the
// name matches the one a browser derives from the same title.
func (p *Podcast) AudioFileName() string {
	var b strings.Builder
	for _, r := range p.Title {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case utf16.RuneLen(r) == 2:
			b.WriteString("__")
		default:
			b.WriteByte('_')
		}
	}
	return b.String() + ".mp3"
}

// GenerateRequest starts a podcast generation on the backend.
type GenerateRequest struct {
	UserID   string   `json:"user_id"`
	EmailIDs []string `json:"email_ids"`
	Title    *string  `json:"title,omitempty"`
}

// GenerateResponse is the backend's acknowledgement.
type GenerateResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// SharePayload is what the browser hands to the native share sheet.
type SharePayload struct {
	Title    string `json:"title"`
	Text     string `json:"text"`
	URL      string `json:"url"`
	FileName string `json:"file_name"`
}
