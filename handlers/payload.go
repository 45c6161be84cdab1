package handlers

import "encoding/json"

// ObjectPage marks a delivery from a Page subscription.
const ObjectPage = "page"

// WebhookPayload is the body of a webhook delivery. One delivery may batch
// several entries, each with several messaging items. Entries stay raw so a
// badly typed item cannot sink the items next to it.
type WebhookPayload struct {
	Object string          `json:"object"`
	Entry  json.RawMessage `json:"entry"`
}

// Entry groups the messaging items of one page. Only the items are read.
type Entry struct {
	Messaging []json.RawMessage `json:"messaging"`
}

// MessagingItem is one event: a message, a postback or a receipt.
type MessagingItem struct {
	Sender    Party           `json:"sender"`
	Recipient Party           `json:"recipient" validate:"-"`
	Timestamp int64           `json:"timestamp"`
	Message   *Message        `json:"message,omitempty"`
	Postback  *Postback       `json:"postback,omitempty"`
	Delivery  json.RawMessage `json:"delivery,omitempty"`
	Read      json.RawMessage `json:"read,omitempty"`
}

// Party is a page-scoped user id or the page id.
type Party struct {
	ID string `json:"id" validate:"required"`
}

// Message is a user message, or an echo of one the page sent.
type Message struct {
	MID         string            `json:"mid"`
	Text        string            `json:"text"`
	IsEcho      bool              `json:"is_echo"`
	QuickReply  *QuickReply       `json:"quick_reply,omitempty"`
	Attachments []json.RawMessage `json:"attachments,omitempty"`
}

// QuickReply carries the payload of a pressed quick reply.
type QuickReply struct {
	Payload string `json:"payload" validate:"max=1000"`
}

// Postback is sent when the user presses a postback button.
type Postback struct {
	MID     string `json:"mid"`
	Title   string `json:"title"`
	Payload string `json:"payload" validate:"max=1000"`
}
