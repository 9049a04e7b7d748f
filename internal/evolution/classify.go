package evolution

import (
	"encoding/json"
	"strings"

	"github.com/your-org/salon-receptionist/internal/models"
)

// Inbound is the uniform envelope produced from a provider webhook payload.
type Inbound struct {
	Kind        models.Kind
	Content     string // text body, or the media reference for non-text kinds
	SenderPhone string // raw remoteJid/number as the provider sent it
	MessageID   string
	SenderName  string
}

// eventMessage is the tolerant shape of one provider message. Field presence,
// not a type tag, decides the kind.
type eventMessage struct {
	Key struct {
		RemoteJID string `json:"remoteJid"`
		FromMe    bool   `json:"fromMe"`
		ID        string `json:"id"`
	} `json:"key"`
	PushName string `json:"pushName"`
	Message  struct {
		Conversation        string `json:"conversation"`
		ExtendedTextMessage *struct {
			Text string `json:"text"`
		} `json:"extendedTextMessage"`
		AudioMessage    json.RawMessage `json:"audioMessage"`
		ImageMessage    json.RawMessage `json:"imageMessage"`
		VideoMessage    json.RawMessage `json:"videoMessage"`
		DocumentMessage json.RawMessage `json:"documentMessage"`
	} `json:"message"`
}

type eventRoot struct {
	Event string       `json:"event"`
	Data  eventMessage `json:"data"`
}

type eventBody struct {
	Body eventRoot `json:"body"`
}

// extractors are tried in priority order against the decoded message; the
// first match wins.
var extractors = []func(m eventMessage) *Inbound{
	func(m eventMessage) *Inbound {
		if m.Message.Conversation == "" {
			return nil
		}
		return &Inbound{Kind: models.KindText, Content: m.Message.Conversation}
	},
	func(m eventMessage) *Inbound {
		if m.Message.ExtendedTextMessage == nil || m.Message.ExtendedTextMessage.Text == "" {
			return nil
		}
		return &Inbound{Kind: models.KindText, Content: m.Message.ExtendedTextMessage.Text}
	},
	func(m eventMessage) *Inbound {
		if len(m.Message.AudioMessage) == 0 {
			return nil
		}
		return &Inbound{Kind: models.KindAudio, Content: m.Key.ID}
	},
	func(m eventMessage) *Inbound {
		if len(m.Message.ImageMessage) == 0 {
			return nil
		}
		return &Inbound{Kind: models.KindImage, Content: m.Key.ID}
	},
	func(m eventMessage) *Inbound {
		if len(m.Message.VideoMessage) == 0 {
			return nil
		}
		return &Inbound{Kind: models.KindVideo, Content: m.Key.ID}
	},
	func(m eventMessage) *Inbound {
		if len(m.Message.DocumentMessage) == 0 {
			return nil
		}
		return &Inbound{Kind: models.KindDocument, Content: m.Key.ID}
	},
}

// ClassifyInbound inspects a raw webhook payload for a recognizable message
// shape. It accepts the event wrapped in a body, the event at the top level,
// or a bare message object. nil means "nothing we handle" — echoes of our own
// sends, status updates, unknown shapes. It never returns an error.
func ClassifyInbound(payload []byte) *Inbound {
	for _, decode := range []func([]byte) (eventMessage, bool){
		func(b []byte) (eventMessage, bool) {
			var w eventBody
			if err := json.Unmarshal(b, &w); err != nil {
				return eventMessage{}, false
			}
			return w.Body.Data, hasMessage(w.Body.Data)
		},
		func(b []byte) (eventMessage, bool) {
			var r eventRoot
			if err := json.Unmarshal(b, &r); err != nil {
				return eventMessage{}, false
			}
			return r.Data, hasMessage(r.Data)
		},
		func(b []byte) (eventMessage, bool) {
			var m eventMessage
			if err := json.Unmarshal(b, &m); err != nil {
				return eventMessage{}, false
			}
			return m, hasMessage(m)
		},
	} {
		m, ok := decode(payload)
		if !ok {
			continue
		}
		if m.Key.FromMe {
			return nil
		}
		for _, extract := range extractors {
			if in := extract(m); in != nil {
				in.SenderPhone = m.Key.RemoteJID
				in.MessageID = m.Key.ID
				in.SenderName = strings.TrimSpace(m.PushName)
				return in
			}
		}
		return nil
	}
	return nil
}

func hasMessage(m eventMessage) bool {
	return m.Key.RemoteJID != ""
}
