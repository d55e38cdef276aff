// Package line is a minimal LINE Messaging API client covering the two
// outbound channels the bot uses: reply (one shot per inbound command) and
// push (direct and group broadcast).
package line

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

const maxAttempts = 3

var retryBackoff = 1 * time.Second

type Client struct {
	Token    string
	ReplyURL string
	PushURL  string

	httpClient *http.Client
}

func NewClient(token, replyURL, pushURL string) *Client {
	return &Client{
		Token:      token,
		ReplyURL:   replyURL,
		PushURL:    pushURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type replyPayload struct {
	ReplyToken string        `json:"replyToken"`
	Messages   []textMessage `json:"messages"`
}

type pushPayload struct {
	To       string        `json:"to"`
	Messages []textMessage `json:"messages"`
}

// Reply answers an inbound message via its reply token.
func (c *Client) Reply(ctx context.Context, replyToken, text string) error {
	return c.post(ctx, c.ReplyURL, replyPayload{
		ReplyToken: replyToken,
		Messages:   []textMessage{{Type: "text", Text: text}},
	})
}

// Push sends a message to a user or group id.
func (c *Client) Push(ctx context.Context, to, text string) error {
	return c.post(ctx, c.PushURL, pushPayload{
		To:       to,
		Messages: []textMessage{{Type: "text", Text: text}},
	})
}

// post delivers one payload with a short bounded retry. The caller treats
// the returned error as a delivery failure to log, not to roll back.
func (c *Client) post(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.Token)

		resp, err := c.httpClient.Do(req)
		if err == nil {
			if resp.StatusCode == http.StatusOK {
				resp.Body.Close()
				return nil
			}
			lastErr = fmt.Errorf("line api status %d", resp.StatusCode)
			resp.Body.Close()
		} else {
			lastErr = err
		}

		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryBackoff):
			}
		}
	}
	log.Printf("line send failed after %d attempts: %v", maxAttempts, lastErr)
	return lastErr
}
