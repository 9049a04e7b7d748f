package evolution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/salon-receptionist/internal/models"
)

func TestClassifyInboundTextShapes(t *testing.T) {
	cases := map[string]string{
		"top-level event": `{"event":"messages.upsert","instance":"salon1","data":{"key":{"remoteJid":"5511999990000@s.whatsapp.net","fromMe":false,"id":"MSG1"},"pushName":"Ana","message":{"conversation":"Oi"}}}`,
		"wrapped in body": `{"body":{"event":"messages.upsert","data":{"key":{"remoteJid":"5511999990000@s.whatsapp.net","id":"MSG1"},"pushName":"Ana","message":{"conversation":"Oi"}}}}`,
		"bare message":    `{"key":{"remoteJid":"5511999990000@s.whatsapp.net","id":"MSG1"},"pushName":"Ana","message":{"conversation":"Oi"}}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			in := ClassifyInbound([]byte(payload))
			require.NotNil(t, in)
			assert.Equal(t, models.KindText, in.Kind)
			assert.Equal(t, "Oi", in.Content)
			assert.Equal(t, "5511999990000@s.whatsapp.net", in.SenderPhone)
			assert.Equal(t, "MSG1", in.MessageID)
			assert.Equal(t, "Ana", in.SenderName)
		})
	}
}

func TestClassifyInboundExtendedText(t *testing.T) {
	payload := `{"data":{"key":{"remoteJid":"5511999990000@s.whatsapp.net","id":"MSG2"},"message":{"extendedTextMessage":{"text":"Quanto custa um corte?"}}}}`
	in := ClassifyInbound([]byte(payload))
	require.NotNil(t, in)
	assert.Equal(t, models.KindText, in.Kind)
	assert.Equal(t, "Quanto custa um corte?", in.Content)
}

func TestClassifyInboundMediaKinds(t *testing.T) {
	cases := map[string]models.Kind{
		`{"data":{"key":{"remoteJid":"551198@s.whatsapp.net","id":"M1"},"message":{"audioMessage":{"url":"x","seconds":3}}}}`:   models.KindAudio,
		`{"data":{"key":{"remoteJid":"551198@s.whatsapp.net","id":"M2"},"message":{"imageMessage":{"caption":""}}}}`:            models.KindImage,
		`{"data":{"key":{"remoteJid":"551198@s.whatsapp.net","id":"M3"},"message":{"videoMessage":{"seconds":10}}}}`:            models.KindVideo,
		`{"data":{"key":{"remoteJid":"551198@s.whatsapp.net","id":"M4"},"message":{"documentMessage":{"title":"orçamento"}}}}`:  models.KindDocument,
	}
	for payload, want := range cases {
		in := ClassifyInbound([]byte(payload))
		require.NotNil(t, in, "payload %s", payload)
		assert.Equal(t, want, in.Kind)
		// Media content is the provider message id, used later for download.
		assert.Equal(t, in.MessageID, in.Content)
	}
}

func TestClassifyInboundUnrecognized(t *testing.T) {
	cases := []string{
		`{}`,
		`not json at all`,
		`{"event":"connection.update","data":{"state":"open"}}`,
		// A recognizable key but no message body we handle.
		`{"data":{"key":{"remoteJid":"551198@s.whatsapp.net","id":"M9"},"message":{"reactionMessage":{"text":"👍"}}}}`,
	}
	for _, payload := range cases {
		assert.Nil(t, ClassifyInbound([]byte(payload)), "payload %s", payload)
	}
}

func TestClassifyInboundIgnoresOwnEchoes(t *testing.T) {
	payload := `{"data":{"key":{"remoteJid":"551198@s.whatsapp.net","fromMe":true,"id":"M5"},"message":{"conversation":"resposta nossa"}}}`
	assert.Nil(t, ClassifyInbound([]byte(payload)))
}

func TestClassifyInboundTextWinsOverMedia(t *testing.T) {
	// When a payload somehow carries both, the prioritized extractor order
	// picks text first.
	payload := `{"data":{"key":{"remoteJid":"551198@s.whatsapp.net","id":"M6"},"message":{"conversation":"olha","imageMessage":{"caption":"x"}}}}`
	in := ClassifyInbound([]byte(payload))
	if assert.NotNil(t, in) {
		assert.Equal(t, models.KindText, in.Kind)
	}
}
