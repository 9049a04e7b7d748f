// Package ai wraps the language-model and speech-to-text collaborators. Both
// are opaque external services; every failure mode (network, auth, rate
// limit) maps to a single sentinel per operation.
package ai

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/your-org/salon-receptionist/internal/models"
)

var (
	// ErrModelInvocation marks any failed chat-completion call. The turn
	// aborts on it: no reply is better than a malformed one.
	ErrModelInvocation = errors.New("model invocation failed")

	// ErrTranscription marks any failed speech-to-text call. The caller
	// recovers with a fixed fallback instead of aborting.
	ErrTranscription = errors.New("transcription failed")
)

type Client struct {
	chatModel       string
	transcribeModel string
	maxTokens       int
}

func New(chatModel, transcribeModel string) *Client {
	return &Client{
		chatModel:       chatModel,
		transcribeModel: transcribeModel,
		maxTokens:       600,
	}
}

// Complete sends the grounding context plus the role-tagged history window and
// returns the completion text. The history is expected oldest-first and
// already bounded by the caller; no retry on failure, deliberately — webhook
// retries multiplied by internal retries is a storm. Timeouts come in through
// ctx.
func (c *Client) Complete(ctx context.Context, apiKey, grounding string, history []models.Message) (string, error) {
	cli := openai.NewClient(apiKey)

	msgs := BuildMessages(grounding, history)
	resp, err := cli.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.chatModel,
		Messages:  msgs,
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrModelInvocation, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%w: empty completion", ErrModelInvocation)
	}
	return resp.Choices[0].Message.Content, nil
}

// BuildMessages converts the grounding blob and the chronological history into
// the wire message list: one system message, then user/assistant turns in
// order. Audio turns contribute their transcription, not the media reference.
func BuildMessages(grounding string, history []models.Message) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	if grounding != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: grounding,
		})
	}
	for _, m := range history {
		role := openai.ChatMessageRoleUser
		if m.Direction == models.FromSystem {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    role,
			Content: promptText(m),
		})
	}
	return msgs
}

// promptText keeps media references out of the prompt: kinds without a text
// body contribute a short note instead of the provider message id.
func promptText(m models.Message) string {
	if m.Kind == models.KindText || m.Direction == models.FromSystem {
		return m.Content
	}
	if m.Transcription != nil && *m.Transcription != "" {
		return *m.Transcription
	}
	switch m.Kind {
	case models.KindImage:
		return "(o cliente enviou uma imagem)"
	case models.KindVideo:
		return "(o cliente enviou um vídeo)"
	case models.KindDocument:
		return "(o cliente enviou um documento)"
	case models.KindAudio:
		return "(o cliente enviou um áudio sem transcrição)"
	default:
		return m.Content
	}
}

// Transcribe converts voice-note audio into text.
func (c *Client) Transcribe(ctx context.Context, apiKey string, audio []byte, languageHint string) (string, error) {
	cli := openai.NewClient(apiKey)

	resp, err := cli.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.transcribeModel,
		Reader:   bytes.NewReader(audio),
		FilePath: "audio.ogg",
		Language: languageHint,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscription, err)
	}
	return resp.Text, nil
}
