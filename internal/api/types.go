package api

import (
	"encoding/json"

	"github.com/rickgao/market-chat/internal/codec"
)

// SendMessageRequest is the body of POST /api/chat/message.
type SendMessageRequest struct {
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	Content        string `json:"content"`
}

// Conversation is one entry of GET /api/chat/conversations.
type Conversation struct {
	ID          codec.ID `json:"id"`
	ListingID   codec.ID `json:"listing_id"`
	BuyerID     codec.ID `json:"buyer_id"`
	SellerID    codec.ID `json:"seller_id"`
	ListingName string   `json:"listing_title"`
	LastMessage string   `json:"last_message"`
	UpdatedAt   string   `json:"updated_at"`
}

// messagesResponse accepts both a bare array and {"messages": [...]}.
type messagesResponse []json.RawMessage

func (m *messagesResponse) UnmarshalJSON(data []byte) error {
	var list []json.RawMessage
	if err := json.Unmarshal(data, &list); err == nil {
		*m = list
		return nil
	}
	var wrapped struct {
		Messages []json.RawMessage `json:"messages"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	*m = wrapped.Messages
	return nil
}
