package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sjsage522/pricewatch/logger"

	werrors "sjsage522/pricewatch/pkg/errors"
)

const component = "telegram"

// DefaultTimeout bounds a single sendMessage call
const DefaultTimeout = 30 * time.Second

// TelegramNotifier sends messages through the Telegram Bot API
type TelegramNotifier struct {
	client  *http.Client
	baseURL string
	token   string
	chatID  string
	log     *logger.Logger
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

// NewTelegramNotifier creates a notifier for chatID. baseURL is the API root,
// normally https://api.telegram.org.
func NewTelegramNotifier(baseURL, token, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		client:  &http.Client{Timeout: DefaultTimeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		chatID:  chatID,
		log:     logger.ForComponent(component),
	}
}

// Send posts text to the chat with link previews enabled
func (n *TelegramNotifier) Send(ctx context.Context, text string) error {
	payload, err := json.Marshal(sendMessageRequest{
		ChatID:                n.chatID,
		Text:                  text,
		DisableWebPagePreview: false,
	})
	if err != nil {
		return werrors.NewNotification(component, "failed to encode message", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return werrors.NewNotification(component, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		// the URL carries the bot token, keep it out of the error
		return werrors.NewNotification(component, "sendMessage request failed", redact(err, n.token))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return werrors.NewNotification(component,
			fmt.Sprintf("sendMessage returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	n.log.Debug().Int("length", len(text)).Msg("Message sent")
	return nil
}

func redact(err error, token string) error {
	if token == "" {
		return err
	}
	return fmt.Errorf("%s", strings.ReplaceAll(err.Error(), token, "<token>"))
}
