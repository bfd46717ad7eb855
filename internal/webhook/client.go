package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

const attachmentName = "bsgo_stats.png"

// Client publishes a rendered image plus summary text to webhook endpoints.
// The first publish to a destination creates a message; later publishes edit
// that message in place, replacing its image attachment and text.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
}

// New creates a publisher backed by the provided HTTP client. If client is
// nil a default client with a publish-sized timeout is used. Sends are rate
// limited; webhook endpoints throttle aggressively.
func New(client *http.Client) *Client {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		http:    client,
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 2),
	}
}

type messageResponse struct {
	ID string `json:"id"`
}

// messagePayload is the JSON-encoded body sent alongside the image. On edit
// the attachments list is cleared so the replacement image is the only one
// left on the message.
type messagePayload struct {
	Content     string `json:"content"`
	Attachments *[]any `json:"attachments,omitempty"`
}

// Publish sends the image and text to endpointURL. When lastID is empty a
// new message is created; otherwise the message with that id is edited in
// place. The returned id (possibly unchanged) should be recorded by the
// caller only on success.
func (c *Client) Publish(ctx context.Context, endpointURL, lastID string, image []byte, text string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", errors.Wrap(err, "webhook: rate limit wait")
	}

	var (
		method string
		target string
	)
	if lastID == "" {
		method = http.MethodPost
		target = appendQuery(endpointURL, "wait=true")
	} else {
		method = http.MethodPatch
		target = strings.TrimRight(endpointURL, "/") + "/messages/" + lastID
	}

	body, contentType, err := buildMultipart(image, text, lastID != "")
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return "", errors.Wrap(err, "webhook: build request")
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "webhook: send")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", errors.Wrap(err, "webhook: read response")
	}
	if resp.StatusCode/100 != 2 {
		return "", errors.Errorf("webhook: status %s: %s", resp.Status, snippet(respBody))
	}

	var msg messageResponse
	if err := json.Unmarshal(respBody, &msg); err != nil {
		return "", errors.Wrap(err, "webhook: decode response")
	}
	if msg.ID == "" {
		return "", errors.New("webhook: response missing message id")
	}
	return msg.ID, nil
}

func buildMultipart(image []byte, text string, edit bool) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	msg := messagePayload{Content: text}
	if edit {
		empty := []any{}
		msg.Attachments = &empty
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, "", errors.Wrap(err, "webhook: marshal payload")
	}
	if err := w.WriteField("payload_json", string(payload)); err != nil {
		return nil, "", errors.Wrap(err, "webhook: write payload field")
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file1"; filename="`+attachmentName+`"`)
	header.Set("Content-Type", "image/png")
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", errors.Wrap(err, "webhook: create image part")
	}
	if _, err := part.Write(image); err != nil {
		return nil, "", errors.Wrap(err, "webhook: write image")
	}

	if err := w.Close(); err != nil {
		return nil, "", errors.Wrap(err, "webhook: finish multipart")
	}
	return buf, w.FormDataContentType(), nil
}

func appendQuery(endpointURL, q string) string {
	if strings.Contains(endpointURL, "?") {
		return endpointURL + "&" + q
	}
	return endpointURL + "?" + q
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
