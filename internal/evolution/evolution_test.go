package evolution

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func testClient(baseURL string) *Client {
	return New(baseURL, "55", testLogger()).WithRetry(0, time.Millisecond)
}

var cred = Credentials{Instance: "salon1", Token: "secret"}

func TestCheckConnection(t *testing.T) {
	t.Run("open state", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/instance/connectionState/salon1", r.URL.Path)
			assert.Equal(t, "secret", r.Header.Get("apikey"))
			_, _ = w.Write([]byte(`{"instance":{"instanceName":"salon1","state":"open"}}`))
		}))
		defer srv.Close()
		assert.True(t, testClient(srv.URL).CheckConnection(context.Background(), cred))
	})

	t.Run("closed state", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"instance":{"state":"close"}}`))
		}))
		defer srv.Close()
		assert.False(t, testClient(srv.URL).CheckConnection(context.Background(), cred))
	})

	t.Run("auth failure is false, not an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()
		assert.False(t, testClient(srv.URL).CheckConnection(context.Background(), cred))
	})

	t.Run("unreachable server is false", func(t *testing.T) {
		assert.False(t, testClient("http://127.0.0.1:1").CheckConnection(context.Background(), cred))
	})

	t.Run("malformed body is false", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		}))
		defer srv.Close()
		assert.False(t, testClient(srv.URL).CheckConnection(context.Background(), cred))
	})
}

func TestSendTextNormalizesNumber(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/message/sendText/salon1", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"status":"PENDING"}`))
	}))
	defer srv.Close()

	err := testClient(srv.URL).SendText(context.Background(), cred, "+55 (11) 98765-4321@c.us", "Olá!")
	require.NoError(t, err)
	assert.Equal(t, "5511987654321", got["number"])
	assert.Equal(t, "Olá!", got["text"])
}

func TestSendTextProviderRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"number not on whatsapp"}`))
	}))
	defer srv.Close()

	err := testClient(srv.URL).SendText(context.Background(), cred, "5511987654321", "Olá!")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "number not on whatsapp")
}

func TestDownloadMedia(t *testing.T) {
	t.Run("decodes payload", func(t *testing.T) {
		audio := []byte("fake-ogg-bytes")
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/chat/getBase64FromMediaMessage/salon1", r.URL.Path)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"base64": base64.StdEncoding.EncodeToString(audio),
			})
		}))
		defer srv.Close()

		data, err := testClient(srv.URL).DownloadMedia(context.Background(), cred, "MSG1")
		require.NoError(t, err)
		assert.Equal(t, audio, data)
	})

	t.Run("failures wrap ErrMediaFetch", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		_, err := testClient(srv.URL).DownloadMedia(context.Background(), cred, "MSG1")
		assert.ErrorIs(t, err, ErrMediaFetch)
	})

	t.Run("empty payload wraps ErrMediaFetch", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		}))
		defer srv.Close()

		_, err := testClient(srv.URL).DownloadMedia(context.Background(), cred, "MSG1")
		assert.ErrorIs(t, err, ErrMediaFetch)
	})
}

func TestConfigureWebhook(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/webhook/set/salon1", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"webhook":{"enabled":true}}`))
	}))
	defer srv.Close()

	err := testClient(srv.URL).ConfigureWebhook(context.Background(), cred,
		"https://api.example.com/webhook/salon1", []string{"messages.upsert"})
	require.NoError(t, err)

	wh, ok := got["webhook"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "https://api.example.com/webhook/salon1", wh["url"])
	assert.Equal(t, true, wh["enabled"])
}

func TestSendTextRetriesOnServerError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	cli := New(srv.URL, "55", testLogger()).WithRetry(2, time.Millisecond)
	err := cli.SendText(context.Background(), cred, "5511987654321", "Olá!")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
