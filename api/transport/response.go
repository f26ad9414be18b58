package transport

import (
	"encoding/json"

	"github.com/audiobrew/web/domain"
)

// Envelope is the standard API response wrapper used for both success and error payloads.
type Envelope struct {
	Status string      `json:"status"`
	Code   string      `json:"code,omitempty"`
	Data   interface{} `json:"data,omitempty"`
	Error  interface{} `json:"error,omitempty"`
	Meta   interface{} `json:"meta,omitempty"`
}

// NewSuccess returns a success envelope.
func NewSuccess(data interface{}, meta interface{}) Envelope {
	return Envelope{
		Status: "success",
		Data:   data,
		Meta:   meta,
	}
}

// NewError returns an error envelope with optional metadata.
func NewError(code string, err interface{}, meta interface{}) Envelope {
	return Envelope{
		Status: "error",
		Code:   code,
		Error:  err,
		Meta:   meta,
	}
}

// String returns the JSON representation (best-effort) for logging purposes.
func (e Envelope) String() string {
	out, err := json.Marshal(e)
	if err != nil {
		return "{}"
	}
	return string(out)
}

// ProxyError is the plain error shape the backend proxies answer with.
type ProxyError struct {
	Error string `json:"error"`
}

// LayoutData is loaded by every page.
type LayoutData struct {
	Session *SessionData  `json:"session"`
	Cookies []interface{} `json:"cookies"`
}

type SessionData struct {
	User domain.PublicUser `json:"user"`
}

func NewLayoutData(session *domain.Session) LayoutData {
	data := LayoutData{Cookies: []interface{}{}}
	if session != nil && session.User != nil {
		data.Session = &SessionData{User: session.User.Public()}
	}
	return data
}

type ProfilePageData struct {
	User *domain.User `json:"user"`
}

type ImageSrcResponse struct {
	Src string `json:"src"`
}

type PreviewResponse struct {
	Preview string `json:"preview"`
}

type AvatarResponse struct {
	URL string `json:"url"`
}

type SignupResponse struct {
	Success bool `json:"success"`
}
