package models

// Slide is one page of a generated handoff deck
type Slide struct {
	Title  string   `json:"title" yaml:"title"`
	Points []string `json:"points" yaml:"points" validate:"required"`
}

// AudioArtifact binds a narration payload to the exact text it was derived from
type AudioArtifact struct {
	Base64     string `json:"base64"` // PCM 24kHz 16-bit mono
	SourceText string `json:"sourceText"`
}

// SlideArtifact binds a slide deck to the exact text it was derived from
type SlideArtifact struct {
	Slides     []Slide `json:"slides"`
	SourceText string  `json:"sourceText"`
	IsNew      bool    `json:"isNew"` // Generated in this session and not yet saved
}

// ChatSender identifies the author of a chat message
type ChatSender string

const (
	ChatSenderUser ChatSender = "user"
	ChatSenderAI   ChatSender = "ai"
)

// ChatMessage is one entry in a session's document chat
type ChatMessage struct {
	Sender ChatSender `json:"sender"`
	Text   string     `json:"text"`
}

// NotificationLevel is the severity of a user-visible notification
type NotificationLevel string

const (
	NotificationSuccess NotificationLevel = "success"
	NotificationError   NotificationLevel = "error"
	NotificationInfo    NotificationLevel = "info"
)

// Notification is a transient user-visible message (toast)
type Notification struct {
	Level   NotificationLevel `json:"level"`
	Message string            `json:"message"`
}
