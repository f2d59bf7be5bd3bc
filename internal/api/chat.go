package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rickgao/market-chat/internal/codec"
)

// ErrEmptyMessage is returned when SendMessage is called with blank text.
var ErrEmptyMessage = errors.New("message text is empty")

// SendMessage persists an outbound chat message. It is not retried: a
// lost response must not turn into a duplicate message.
func (c *Client) SendMessage(ctx context.Context, conversationID, senderID, text string) (codec.ChatMessage, error) {
	if strings.TrimSpace(text) == "" {
		return codec.ChatMessage{}, ErrEmptyMessage
	}

	if c.sendLimiter != nil {
		if err := c.sendLimiter.Wait(ctx); err != nil {
			return codec.ChatMessage{}, fmt.Errorf("send message: %w", err)
		}
	}

	req := SendMessageRequest{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        text,
	}

	body, err := c.doRequest(ctx, http.MethodPost, "/api/chat/message", nil, req)
	if err != nil {
		return codec.ChatMessage{}, fmt.Errorf("send message: %w", err)
	}

	now := time.Now()
	frame, err := codec.Decode(body, now)
	if err != nil || frame.Kind != codec.KindData {
		// Persisted, but the echo is unusable; hand back what we sent.
		c.logger.Debug("unparseable send response", "error", err)
		return codec.ChatMessage{
			ConversationID: conversationID,
			SenderID:       senderID,
			Text:           text,
			Timestamp:      now,
		}, nil
	}

	return frame.Message, nil
}

// ListConversations fetches the conversations a user takes part in.
func (c *Client) ListConversations(ctx context.Context, userID string) ([]Conversation, error) {
	query := url.Values{}
	query.Set("user_id", userID)

	var resp []Conversation
	if err := c.get(ctx, "/api/chat/conversations", query, &resp); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	return resp, nil
}

// GetMessages fetches the history of a conversation. Entries that do not
// decode as chat messages are skipped.
func (c *Client) GetMessages(ctx context.Context, conversationID string) ([]codec.ChatMessage, error) {
	path := "/api/chat/conversations/" + url.PathEscape(conversationID) + "/messages"

	var resp messagesResponse
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}

	now := time.Now()
	msgs := make([]codec.ChatMessage, 0, len(resp))
	for _, raw := range resp {
		frame, err := codec.Decode(raw, now)
		if err != nil || frame.Kind != codec.KindData {
			c.logger.Debug("skipping history entry", "conversation", conversationID, "error", err)
			continue
		}
		msgs = append(msgs, frame.Message)
	}

	return msgs, nil
}
