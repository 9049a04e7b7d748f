// Package orchestrator drives one conversation turn: classify the inbound
// event, branch on first contact, transcribe audio, load the bounded history
// window, invoke the model and dispatch the reply, recording every step in
// the conversation store.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/your-org/salon-receptionist/internal/evolution"
	"github.com/your-org/salon-receptionist/internal/models"
	"github.com/your-org/salon-receptionist/internal/phone"
)

var (
	// ErrUnrecognizedPayload means the webhook body held nothing we process.
	// Upstream still acks the provider; internals stay internal.
	ErrUnrecognizedPayload = errors.New("unrecognized payload")

	// ErrDuplicateDelivery means the same inbound event was already handled
	// inside the duplicate window. The turn ends with zero side effects.
	ErrDuplicateDelivery = errors.New("duplicate webhook delivery")
)

// apologyText substitutes the inbound content when a voice note cannot be
// transcribed. The turn then proceeds through the normal reply flow; a user
// who gets no reply at all is the worse outcome.
const apologyText = "Desculpe, não consegui processar seu áudio. Pode digitar sua mensagem?"

// mediaNotes stand in as prompt text for media kinds that carry no text.
var mediaNotes = map[models.Kind]string{
	models.KindImage:    "O cliente enviou uma imagem.",
	models.KindVideo:    "O cliente enviou um vídeo.",
	models.KindDocument: "O cliente enviou um documento.",
}

// ConversationStore is the slice of the store a turn needs.
type ConversationStore interface {
	AppendMessage(ctx context.Context, m models.Message) (int64, error)
	RecentHistory(ctx context.Context, est uuid.UUID, phone string, limit int) ([]models.Message, error)
	AttachTranscription(ctx context.Context, est uuid.UUID, phone, content, transcription string) error
	HasAnyHistory(ctx context.Context, est uuid.UUID, phone string) (bool, error)
	HasRecentDuplicate(ctx context.Context, est uuid.UUID, phone, content string, window time.Duration) (bool, error)
	MarkProcessed(ctx context.Context, id int64) error
}

// MediaDownloader fetches media bytes from the transport provider.
type MediaDownloader interface {
	DownloadMedia(ctx context.Context, cred evolution.Credentials, ref string) ([]byte, error)
}

// Transcriber converts voice-note audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, apiKey string, audio []byte, languageHint string) (string, error)
}

// Completer invokes the language model over a bounded history window.
type Completer interface {
	Complete(ctx context.Context, apiKey, grounding string, history []models.Message) (string, error)
}

// Sender dispatches an outbound text and reports whether it was delivered.
type Sender interface {
	SendText(ctx context.Context, cred evolution.Credentials, to, text string) bool
}

// Settings are the turn-level knobs, resolved once from service config.
type Settings struct {
	CountryCode       string
	Language          string
	HistoryLimit      int
	DuplicateWindow   time.Duration
	ModelTimeout      time.Duration
	TranscribeTimeout time.Duration
}

type Orchestrator struct {
	store      ConversationStore
	downloader MediaDownloader
	speech     Transcriber
	model      Completer
	sender     Sender
	settings   Settings
	log        *logrus.Logger
}

func New(store ConversationStore, downloader MediaDownloader, speech Transcriber,
	model Completer, sender Sender, settings Settings, log *logrus.Logger) *Orchestrator {
	if settings.HistoryLimit <= 0 {
		settings.HistoryLimit = 10
	}
	return &Orchestrator{
		store:      store,
		downloader: downloader,
		speech:     speech,
		model:      model,
		sender:     sender,
		settings:   settings,
		log:        log,
	}
}

// HandleInbound runs one turn for an already-resolved, active establishment
// config. Each store write is its own transaction; a later stage failing
// never rolls back what earlier stages committed.
func (o *Orchestrator) HandleInbound(ctx context.Context, cfg models.AIConfig, payload []byte) error {
	in := evolution.ClassifyInbound(payload)
	if in == nil {
		o.log.WithField("establishment", cfg.EstablishmentID).Info("unrecognized payload, turn aborted")
		return ErrUnrecognizedPayload
	}
	if in.Kind == models.KindText {
		// Sanitize once, at the edge: the persisted row, the duplicate check
		// and the prompt all see the same text.
		in.Content = sanitizeText(in.Content)
	}

	number := phone.Normalize(in.SenderPhone, o.settings.CountryCode)
	if number == "" {
		o.log.WithField("establishment", cfg.EstablishmentID).Warn("sender without usable phone")
		return ErrUnrecognizedPayload
	}

	fields := logrus.Fields{
		"establishment": cfg.EstablishmentID,
		"phone":         number,
		"kind":          in.Kind,
	}

	// Providers deliver at-least-once; an identical inbound inside the window
	// is a redelivery, not a new message.
	if dup, err := o.store.HasRecentDuplicate(ctx, cfg.EstablishmentID, number, in.Content, o.settings.DuplicateWindow); err == nil && dup {
		o.log.WithFields(fields).Info("duplicate delivery suppressed")
		return ErrDuplicateDelivery
	}

	cred := evolution.Credentials{Instance: cfg.InstanceID, Token: cfg.InstanceToken}

	hasHistory, err := o.store.HasAnyHistory(ctx, cfg.EstablishmentID, number)
	if err != nil {
		// Degrade to "no memory" and keep going; the read already logged.
		hasHistory = false
	}
	if !hasHistory {
		return o.firstContact(ctx, cfg, cred, number, in, fields)
	}
	return o.continuing(ctx, cfg, cred, number, in, fields)
}

// firstContact sends the welcome template verbatim. No model call, ever.
func (o *Orchestrator) firstContact(ctx context.Context, cfg models.AIConfig, cred evolution.Credentials,
	number string, in *evolution.Inbound, fields logrus.Fields) error {

	inboundID, _ := o.store.AppendMessage(ctx, models.Message{
		EstablishmentID: cfg.EstablishmentID,
		Phone:           number,
		Direction:       models.FromClient,
		Kind:            in.Kind,
		Content:         in.Content,
	})

	delivered := o.sender.SendText(ctx, cred, number, cfg.WelcomeMessage)
	if !delivered {
		o.log.WithFields(fields).Warn("welcome delivery failed")
	}

	_, _ = o.store.AppendMessage(ctx, models.Message{
		EstablishmentID: cfg.EstablishmentID,
		Phone:           number,
		Direction:       models.FromSystem,
		Kind:            models.KindText,
		Content:         cfg.WelcomeMessage,
		Processed:       delivered,
	})
	if inboundID != 0 {
		_ = o.store.MarkProcessed(ctx, inboundID)
	}
	o.log.WithFields(fields).Info("first contact welcomed")
	return nil
}

// continuing runs the full history → model → reply flow.
func (o *Orchestrator) continuing(ctx context.Context, cfg models.AIConfig, cred evolution.Credentials,
	number string, in *evolution.Inbound, fields logrus.Fields) error {

	effective := o.effectiveText(ctx, cfg, cred, in, fields)

	// Persist the inbound before loading history so the model sees its own
	// triggering message at the newest position of the window.
	inboundID, _ := o.store.AppendMessage(ctx, models.Message{
		EstablishmentID: cfg.EstablishmentID,
		Phone:           number,
		Direction:       models.FromClient,
		Kind:            in.Kind,
		Content:         in.Content,
	})
	if in.Kind == models.KindAudio {
		if err := o.store.AttachTranscription(ctx, cfg.EstablishmentID, number, in.Content, effective); err != nil {
			o.log.WithFields(fields).WithError(err).Warn("transcription attach failed")
		}
	}

	history, err := o.store.RecentHistory(ctx, cfg.EstablishmentID, number, o.settings.HistoryLimit)
	if err != nil || len(history) == 0 {
		// No memory beats no reply: fall back to just the current message.
		// Audio carries its text in the transcription field, same as a
		// stored row, so the prompt builder sees the spoken words and not
		// a media placeholder.
		fallback := models.Message{
			Direction: models.FromClient,
			Kind:      in.Kind,
			Content:   effective,
		}
		if in.Kind == models.KindAudio {
			fallback.Content = in.Content
			fallback.Transcription = &effective
		}
		history = []models.Message{fallback}
	}

	mctx, cancel := context.WithTimeout(ctx, o.settings.ModelTimeout)
	defer cancel()
	reply, err := o.model.Complete(mctx, cfg.ModelAPIKey, cfg.ContextPrompt, history)
	if err != nil {
		// Fail silent to the user, loud to the logs. No retry.
		o.log.WithFields(fields).WithError(err).Error("model invocation failed, turn aborted")
		return err
	}

	delivered := o.sender.SendText(ctx, cred, number, reply)
	if !delivered {
		o.log.WithFields(fields).Warn("reply delivery failed")
	}

	// The outbound is recorded whether or not delivery succeeded, so history
	// and delivery-failure analytics stay consistent.
	_, _ = o.store.AppendMessage(ctx, models.Message{
		EstablishmentID: cfg.EstablishmentID,
		Phone:           number,
		Direction:       models.FromSystem,
		Kind:            models.KindText,
		Content:         reply,
		Processed:       delivered,
	})
	if inboundID != 0 {
		_ = o.store.MarkProcessed(ctx, inboundID)
	}
	o.log.WithFields(fields).Info("turn completed")
	return nil
}

// effectiveText resolves what the inbound contributes to the prompt: the text
// body, a voice-note transcription, or a fixed substitute when media cannot
// be processed.
func (o *Orchestrator) effectiveText(ctx context.Context, cfg models.AIConfig, cred evolution.Credentials,
	in *evolution.Inbound, fields logrus.Fields) string {

	switch in.Kind {
	case models.KindText:
		// Already sanitized at classification.
		return in.Content
	case models.KindAudio:
		tctx, cancel := context.WithTimeout(ctx, o.settings.TranscribeTimeout)
		defer cancel()
		audio, err := o.downloader.DownloadMedia(tctx, cred, in.Content)
		if err != nil {
			o.log.WithFields(fields).WithError(err).Warn("media download failed, apology substituted")
			return apologyText
		}
		text, err := o.speech.Transcribe(tctx, cfg.ModelAPIKey, audio, o.settings.Language)
		if err != nil {
			o.log.WithFields(fields).WithError(err).Warn("transcription failed, apology substituted")
			return apologyText
		}
		return sanitizeText(text)
	default:
		return mediaNotes[in.Kind]
	}
}
