package models

import (
	"time"

	"github.com/google/uuid"
)

// Direction tells who produced a message.
type Direction string

const (
	FromClient Direction = "from_client"
	FromSystem Direction = "from_system"
)

// Kind is the content modality of a message.
type Kind string

const (
	KindText     Kind = "text"
	KindAudio    Kind = "audio"
	KindImage    Kind = "image"
	KindVideo    Kind = "video"
	KindDocument Kind = "document"
)

// Message is one inbound or outbound unit of conversation. Rows are immutable
// once written; the only updates allowed are attaching a transcription to an
// audio message and flipping the processed flag.
type Message struct {
	ID              int64
	EstablishmentID uuid.UUID
	Phone           string // canonical form, bare digits with country prefix
	Direction       Direction
	Kind            Kind
	Content         string  // plain text, or a provider media reference
	Transcription   *string // set only for audio
	Processed       bool
	CreatedAt       time.Time
}

// AIConfig holds the per-establishment virtual-receptionist settings. One row
// per establishment; the activation flag gates all processing. Credentials are
// write-only from any client-facing surface.
type AIConfig struct {
	EstablishmentID uuid.UUID
	Active          bool
	ModelAPIKey     string
	InstanceID      string // transport instance the establishment is bound to
	InstanceToken   string
	WelcomeMessage  string
	ContextPrompt   string // free-text grounding blob for the model
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// WebhookEvent is the raw payload received at ingress, kept verbatim in an
// append-only log for diagnosis. Not required for correctness.
type WebhookEvent struct {
	ID              int64
	EstablishmentID *uuid.UUID
	Payload         []byte
	ReceivedAt      time.Time
}
