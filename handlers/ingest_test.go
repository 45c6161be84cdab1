package handlers

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semchie/sahajjo-messenger-bot/dialog"
)

func decodeItem(t *testing.T, raw string) MessagingItem {
	t.Helper()
	var item MessagingItem
	require.NoError(t, json.Unmarshal([]byte(raw), &item))
	return item
}

func TestNormalize(t *testing.T) {
	in := NewIngestor()

	tests := []struct {
		name    string
		raw     string
		want    Inbound
		wantErr error
	}{
		{
			name: "text message",
			raw:  `{"sender":{"id":"U1"},"message":{"mid":"m1","text":"hi"}}`,
			want: Inbound{Event: dialog.TextMessage("U1", "hi"), DedupeKey: "m:m1"},
		},
		{
			name: "attachment without text",
			raw:  `{"sender":{"id":"U1"},"message":{"mid":"m2","attachments":[{"type":"image"}]}}`,
			want: Inbound{Event: dialog.TextMessage("U1", ""), DedupeKey: "m:m2"},
		},
		{
			name: "quick reply",
			raw:  `{"sender":{"id":"U1"},"message":{"mid":"m3","text":"Salary","quick_reply":{"payload":"salary"}}}`,
			want: Inbound{Event: dialog.Postback("U1", "salary"), DedupeKey: "m:m3"},
		},
		{
			name: "postback with mid",
			raw:  `{"sender":{"id":"U1"},"timestamp":42,"postback":{"mid":"p1","payload":"salary"}}`,
			want: Inbound{Event: dialog.Postback("U1", "salary"), DedupeKey: "p:p1"},
		},
		{
			name: "postback keyed by timestamp",
			raw:  `{"sender":{"id":"U1"},"timestamp":42,"postback":{"payload":"salary"}}`,
			want: Inbound{Event: dialog.Postback("U1", "salary"), DedupeKey: "p:U1:42"},
		},
		{
			name: "postback without key",
			raw:  `{"sender":{"id":"U1"},"postback":{"payload":""}}`,
			want: Inbound{Event: dialog.Postback("U1", "")},
		},
		{name: "echo", raw: `{"sender":{"id":"P"},"message":{"mid":"m4","is_echo":true}}`, wantErr: ErrSkipped},
		{name: "delivery receipt", raw: `{"sender":{"id":"U1"},"delivery":{"watermark":1}}`, wantErr: ErrSkipped},
		{name: "read receipt", raw: `{"sender":{"id":"U1"},"read":{"watermark":1}}`, wantErr: ErrSkipped},
		{name: "no sender", raw: `{"postback":{"payload":"salary"}}`, wantErr: ErrMalformedPayload},
		{name: "nothing to answer", raw: `{"sender":{"id":"U1"}}`, wantErr: ErrMalformedPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := in.Normalize(decodeItem(t, tt.raw))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_NamesJSONFields(t *testing.T) {
	_, err := NewIngestor().Normalize(decodeItem(t, `{"sender":{"id":""},"postback":{"payload":"x"}}`))
	require.ErrorIs(t, err, ErrMalformedPayload)
	assert.Contains(t, err.Error(), "sender.id")
}

func TestIngest_KeepsPositions(t *testing.T) {
	var p WebhookPayload
	require.NoError(t, json.Unmarshal([]byte(`{"object":"page","entry":[
		{"messaging":[{"sender":{"id":"U1"},"postback":{"payload":"a"}}]},
		{"messaging":[{"sender":{}},{"sender":{"id":"U2"},"message":{"text":"b"}}]}
	]}`), &p))

	items := NewIngestor().Ingest(p)
	require.Len(t, items, 3)

	assert.Equal(t, 0, items[0].Entry)
	assert.NoError(t, items[0].Err)

	assert.Equal(t, 1, items[1].Entry)
	assert.Equal(t, 0, items[1].Index)
	assert.ErrorIs(t, items[1].Err, ErrMalformedPayload)

	assert.Equal(t, 1, items[2].Index)
	assert.Equal(t, "U2", items[2].Inbound.Event.SenderID)
}

func TestIngest_DecodesItemsOneByOne(t *testing.T) {
	var p WebhookPayload
	require.NoError(t, json.Unmarshal([]byte(`{"object":"page","entry":[
		{"messaging":[{"sender":{"id":42}},{"sender":{"id":"U1"},"postback":{"payload":"a"}}]},
		{"messaging":7},
		{"messaging":[{"sender":{"id":"U2"},"message":{"mid":"m1","text":"b"}}]}
	]}`), &p))

	items := NewIngestor().Ingest(p)
	require.Len(t, items, 4)

	assert.ErrorIs(t, items[0].Err, ErrMalformedPayload)
	assert.Equal(t, "U1", items[1].Inbound.Event.SenderID)
	assert.ErrorIs(t, items[2].Err, ErrMalformedPayload)
	assert.Equal(t, 1, items[2].Entry)
	assert.Equal(t, "U2", items[3].Inbound.Event.SenderID)
	assert.Equal(t, 2, items[3].Entry)
}

func TestIngest_EntryNotAList(t *testing.T) {
	items := NewIngestor().Ingest(WebhookPayload{Object: ObjectPage, Entry: json.RawMessage(`{"id":"PAGE"}`)})
	require.Len(t, items, 1)
	assert.ErrorIs(t, items[0].Err, ErrMalformedPayload)

	assert.Empty(t, NewIngestor().Ingest(WebhookPayload{Object: ObjectPage}))
}
