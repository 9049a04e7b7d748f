package ai

import (
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/salon-receptionist/internal/models"
)

func strptr(s string) *string { return &s }

func TestBuildMessagesRolesAndOrder(t *testing.T) {
	history := []models.Message{
		{Direction: models.FromClient, Kind: models.KindText, Content: "Oi, vocês fazem escova?"},
		{Direction: models.FromSystem, Kind: models.KindText, Content: "Fazemos sim! Quer agendar?"},
		{Direction: models.FromClient, Kind: models.KindText, Content: "Quero, amanhã de manhã"},
	}

	msgs := BuildMessages("Você é a recepcionista do Salão Bela.", history)
	require.Len(t, msgs, 4)

	assert.Equal(t, openai.ChatMessageRoleSystem, msgs[0].Role)
	assert.Equal(t, "Você é a recepcionista do Salão Bela.", msgs[0].Content)

	assert.Equal(t, openai.ChatMessageRoleUser, msgs[1].Role)
	assert.Equal(t, openai.ChatMessageRoleAssistant, msgs[2].Role)
	assert.Equal(t, openai.ChatMessageRoleUser, msgs[3].Role)
	assert.Equal(t, "Quero, amanhã de manhã", msgs[3].Content)
}

func TestBuildMessagesEmptyGrounding(t *testing.T) {
	msgs := BuildMessages("", []models.Message{
		{Direction: models.FromClient, Kind: models.KindText, Content: "Oi"},
	})
	require.Len(t, msgs, 1)
	assert.Equal(t, openai.ChatMessageRoleUser, msgs[0].Role)
}

func TestBuildMessagesAudioUsesTranscription(t *testing.T) {
	history := []models.Message{
		{
			Direction:     models.FromClient,
			Kind:          models.KindAudio,
			Content:       "PROVIDER-MSG-ID",
			Transcription: strptr("quero remarcar meu horário"),
		},
	}
	msgs := BuildMessages("", history)
	require.Len(t, msgs, 1)
	assert.Equal(t, "quero remarcar meu horário", msgs[0].Content)
}

func TestBuildMessagesMediaPlaceholders(t *testing.T) {
	history := []models.Message{
		{Direction: models.FromClient, Kind: models.KindImage, Content: "IMG-ID"},
		{Direction: models.FromClient, Kind: models.KindVideo, Content: "VID-ID"},
		{Direction: models.FromClient, Kind: models.KindDocument, Content: "DOC-ID"},
		{Direction: models.FromClient, Kind: models.KindAudio, Content: "AUD-ID"},
	}
	msgs := BuildMessages("", history)
	require.Len(t, msgs, 4)
	for _, m := range msgs {
		// Provider message ids must never leak into the prompt.
		assert.NotContains(t, m.Content, "-ID")
	}
}

func TestBuildMessagesOutboundContentVerbatim(t *testing.T) {
	history := []models.Message{
		{Direction: models.FromSystem, Kind: models.KindText, Content: "Seu horário está confirmado."},
	}
	msgs := BuildMessages("", history)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Seu horário está confirmado.", msgs[0].Content)
}
