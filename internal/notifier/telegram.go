package notifier

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

type TelegramNotifier struct {
	Token      string
	ChatID     string
	Retries    int
	RetryDelay time.Duration
	log        zerolog.Logger
}

func NewTelegramNotifier(token, chatID string, retries int, retryDelay time.Duration, log zerolog.Logger) *TelegramNotifier {
	if retries < 1 {
		retries = 1
	}
	return &TelegramNotifier{
		Token:      token,
		ChatID:     chatID,
		Retries:    retries,
		RetryDelay: retryDelay,
		log:        log,
	}
}

func (t *TelegramNotifier) Send(message string) error {
	apiURL := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.Token)
	resp, err := http.PostForm(apiURL, url.Values{
		"chat_id": {t.ChatID},
		"text":    {message},
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return fmt.Errorf("telegram send failed: %s", resp.Status)
	}
	return nil
}

func (t *TelegramNotifier) SendWithRetry(message string) error {
	var err error
	for attempt := 1; attempt <= t.Retries; attempt++ {
		err = t.Send(message)
		if err == nil {
			return nil
		}
		t.log.Warn().Err(err).Int("attempt", attempt).Int("max", t.Retries).Msg("telegram send failed")
		if attempt < t.Retries {
			time.Sleep(t.RetryDelay)
		}
	}
	return fmt.Errorf("telegram send failed after %d attempts: %w", t.Retries, err)
}
