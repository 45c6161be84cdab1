package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/semchie/sahajjo-messenger-bot/dialog"
)

var (
	// ErrMalformedPayload marks a delivery or item without the expected shape.
	ErrMalformedPayload = errors.New("malformed webhook payload")
	// ErrSkipped marks an item that is valid but needs no reply.
	ErrSkipped = errors.New("event needs no reply")
)

// Inbound is a normalized event plus the key used to spot redeliveries.
type Inbound struct {
	Event     dialog.Event
	DedupeKey string
}

// Item is the ingestion outcome of one messaging item.
type Item struct {
	Entry   int
	Index   int
	Inbound Inbound
	Err     error
}

// Ingestor validates webhook items and turns them into dialog events.
type Ingestor struct {
	validate *validator.Validate
}

// NewIngestor creates an ingestor. Validation errors name fields by their
// JSON keys.
func NewIngestor() *Ingestor {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Ingestor{validate: v}
}

// Ingest decodes and normalizes every messaging item of every entry. A bad
// entry or item yields an Item with Err set and does not affect the others.
func (in *Ingestor) Ingest(p WebhookPayload) []Item {
	if len(p.Entry) == 0 || string(p.Entry) == "null" {
		return nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(p.Entry, &entries); err != nil {
		return []Item{{Err: fmt.Errorf("%w: entry is not a list: %v", ErrMalformedPayload, err)}}
	}

	var items []Item
	for e, rawEntry := range entries {
		var entry Entry
		if err := json.Unmarshal(rawEntry, &entry); err != nil {
			items = append(items, Item{Entry: e, Err: fmt.Errorf("%w: entry: %v", ErrMalformedPayload, err)})
			continue
		}
		for i, rawItem := range entry.Messaging {
			var msg MessagingItem
			if err := json.Unmarshal(rawItem, &msg); err != nil {
				items = append(items, Item{Entry: e, Index: i, Err: fmt.Errorf("%w: %v", ErrMalformedPayload, err)})
				continue
			}
			inbound, err := in.Normalize(msg)
			items = append(items, Item{Entry: e, Index: i, Inbound: inbound, Err: err})
		}
	}
	return items
}

// Normalize converts one messaging item. Quick replies count as postbacks:
// they are selections, not free text.
func (in *Ingestor) Normalize(item MessagingItem) (Inbound, error) {
	if err := in.validate.Struct(item); err != nil {
		return Inbound{}, fmt.Errorf("%w: %s", ErrMalformedPayload, describe(err))
	}
	sender := item.Sender.ID

	switch {
	case item.Message != nil:
		msg := item.Message
		if msg.IsEcho {
			return Inbound{}, fmt.Errorf("%w: echo", ErrSkipped)
		}
		key := dedupeKey("m", msg.MID)
		if msg.QuickReply != nil {
			return Inbound{Event: dialog.Postback(sender, msg.QuickReply.Payload), DedupeKey: key}, nil
		}
		return Inbound{Event: dialog.TextMessage(sender, msg.Text), DedupeKey: key}, nil

	case item.Postback != nil:
		key := dedupeKey("p", item.Postback.MID)
		if key == "" && item.Timestamp > 0 {
			key = fmt.Sprintf("p:%s:%d", sender, item.Timestamp)
		}
		return Inbound{Event: dialog.Postback(sender, item.Postback.Payload), DedupeKey: key}, nil

	case len(item.Delivery) > 0:
		return Inbound{}, fmt.Errorf("%w: delivery receipt", ErrSkipped)

	case len(item.Read) > 0:
		return Inbound{}, fmt.Errorf("%w: read receipt", ErrSkipped)
	}
	return Inbound{}, fmt.Errorf("%w: neither message nor postback", ErrMalformedPayload)
}

func dedupeKey(prefix, mid string) string {
	if mid == "" {
		return ""
	}
	return prefix + ":" + mid
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		ns := fe.Namespace()
		if i := strings.Index(ns, "."); i >= 0 {
			ns = ns[i+1:]
		}
		parts = append(parts, fmt.Sprintf("%s failed %q", ns, fe.Tag()))
	}
	return strings.Join(parts, ", ")
}
