package domain

// GmailConnectionStatus reports whether a user linked a Gmail account.
type GmailConnectionStatus struct {
	IsConnected bool   `json:"isConnected"`
	Email       string `json:"email,omitempty"`
	Error       string `json:"error,omitempty"`
}

// AudioBrewLabelStatus reports whether the AudioBrew label exists in Gmail.
type AudioBrewLabelStatus struct {
	HasLabel bool   `json:"hasLabel"`
	Error    string `json:"error,omitempty"`
}

// LabelErrGmailNotConnected is returned when the backend holds no Gmail credentials.
const LabelErrGmailNotConnected = "gmail_not_connected"
