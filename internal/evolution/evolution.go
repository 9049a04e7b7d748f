// Package evolution talks to the WhatsApp transport provider: outbound sends,
// media download, connection state and webhook registration. It hides the
// provider's wire format behind a uniform envelope; credentials are threaded
// explicitly on every call, one instance per establishment.
package evolution

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/your-org/salon-receptionist/internal/phone"
)

// ErrMediaFetch marks a failed media download. This is the one transport path
// allowed to fail loudly: the caller has a user-facing fallback for it.
var ErrMediaFetch = errors.New("media fetch failed")

// Credentials identify one provider instance. Resolved per turn from the
// establishment config row, never held in any ambient global.
type Credentials struct {
	Instance string
	Token    string
}

type Client struct {
	baseURL string
	http    *http.Client
	log     *logrus.Logger

	countryCode string
	maxRetries  int
	backoff     time.Duration
}

func New(baseURL, countryCode string, log *logrus.Logger) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		http:        &http.Client{Timeout: 30 * time.Second},
		log:         log,
		countryCode: countryCode,
		maxRetries:  3,
		backoff:     250 * time.Millisecond,
	}
}

func (c *Client) WithHTTPClient(h *http.Client) *Client {
	if h != nil {
		c.http = h
	}
	return c
}

func (c *Client) WithRetry(maxRetries int, backoff time.Duration) *Client {
	if maxRetries >= 0 {
		c.maxRetries = maxRetries
	}
	if backoff > 0 {
		c.backoff = backoff
	}
	return c
}

// ----------------- helpers -----------------

func (c *Client) url(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

func (c *Client) doOnce(ctx context.Context, method, url, token string, body any) (int, []byte, error) {
	var rd io.Reader
	if body != nil {
		buf, _ := json.Marshal(body)
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("apikey", token)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func (c *Client) doWithRetry(ctx context.Context, method, url, token string, body any) (int, []byte, error) {
	for try := 1; ; try++ {
		code, b, err := c.doOnce(ctx, method, url, token, body)
		if err != nil {
			if try <= c.maxRetries && isRetryableNetErr(err) {
				time.Sleep(c.backoff * time.Duration(try))
				continue
			}
			return 0, nil, err
		}
		if code >= 500 && code <= 599 && try <= c.maxRetries {
			time.Sleep(c.backoff * time.Duration(try))
			continue
		}
		return code, b, nil
	}
}

func isRetryableNetErr(err error) bool {
	if err == nil {
		return false
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return nerr.Timeout()
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "connection reset") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "broken pipe") ||
		strings.Contains(s, "unexpected eof")
}

// ----------------- connection state -----------------

// CheckConnection reports whether the instance session is connected. Any
// failure (network, auth, malformed response) is false, never an error: a
// connectivity probe must not crash the caller.
func (c *Client) CheckConnection(ctx context.Context, cred Credentials) bool {
	code, b, err := c.doWithRetry(ctx, http.MethodGet,
		c.url("/instance/connectionState/"+cred.Instance), cred.Token, nil)
	if err != nil || code > 299 {
		c.log.WithField("instance", cred.Instance).WithError(err).
			Debug("connection state check failed")
		return false
	}
	var out struct {
		Instance struct {
			State string `json:"state"`
		} `json:"instance"`
		State string `json:"state"`
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return false
	}
	state := out.Instance.State
	if state == "" {
		state = out.State
	}
	return strings.EqualFold(state, "open") || strings.EqualFold(state, "connected")
}

// ----------------- sending -----------------

// SendText delivers a text message. The destination is normalized to the
// canonical phone form before transmission. Non-2xx responses come back as an
// error carrying the provider detail; the caller decides how fatal that is.
func (c *Client) SendText(ctx context.Context, cred Credentials, to, text string) error {
	number := phone.Normalize(to, c.countryCode)
	body := map[string]any{
		"number": number,
		"text":   text,
	}
	code, b, err := c.doWithRetry(ctx, http.MethodPost,
		c.url("/message/sendText/"+cred.Instance), cred.Token, body)
	if err != nil {
		return err
	}
	if code > 299 {
		return fmt.Errorf("send text %d: %s", code, string(b))
	}
	return nil
}

// SendMedia delivers a media message from raw bytes, base64-encoded for the
// provider.
func (c *Client) SendMedia(ctx context.Context, cred Credentials, to, mediaType string, data []byte) error {
	number := phone.Normalize(to, c.countryCode)
	body := map[string]any{
		"number":    number,
		"mediatype": mediaType,
		"media":     base64.StdEncoding.EncodeToString(data),
	}
	code, b, err := c.doWithRetry(ctx, http.MethodPost,
		c.url("/message/sendMedia/"+cred.Instance), cred.Token, body)
	if err != nil {
		return err
	}
	if code > 299 {
		return fmt.Errorf("send media %d: %s", code, string(b))
	}
	return nil
}

// ----------------- media download -----------------

// DownloadMedia fetches the binary payload for a media reference (the provider
// message id). All failures wrap ErrMediaFetch.
func (c *Client) DownloadMedia(ctx context.Context, cred Credentials, mediaRef string) ([]byte, error) {
	body := map[string]any{
		"message": map[string]any{
			"key": map[string]any{"id": mediaRef},
		},
	}
	code, b, err := c.doWithRetry(ctx, http.MethodPost,
		c.url("/chat/getBase64FromMediaMessage/"+cred.Instance), cred.Token, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMediaFetch, err)
	}
	if code > 299 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrMediaFetch, code, string(b))
	}
	var out struct {
		Base64 string `json:"base64"`
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMediaFetch, err)
	}
	if out.Base64 == "" {
		return nil, fmt.Errorf("%w: empty media payload", ErrMediaFetch)
	}
	data, err := base64.StdEncoding.DecodeString(out.Base64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMediaFetch, err)
	}
	return data, nil
}

// ----------------- webhook registration -----------------

// ConfigureWebhook points the instance's event delivery at url for the given
// event names.
func (c *Client) ConfigureWebhook(ctx context.Context, cred Credentials, url string, events []string) error {
	body := map[string]any{
		"webhook": map[string]any{
			"enabled": true,
			"url":     url,
			"events":  events,
		},
	}
	code, b, err := c.doWithRetry(ctx, http.MethodPost,
		c.url("/webhook/set/"+cred.Instance), cred.Token, body)
	if err != nil {
		return err
	}
	if code > 299 {
		return fmt.Errorf("configure webhook %d: %s", code, string(b))
	}
	return nil
}
