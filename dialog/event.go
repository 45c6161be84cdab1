package dialog

// Kind distinguishes free text from a button selection.
type Kind int

const (
	KindText Kind = iota + 1
	KindPostback
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindPostback:
		return "postback"
	default:
		return "unknown"
	}
}

// Event is one inbound user action, independent of any other event.
type Event struct {
	SenderID string
	Kind     Kind
	Text     string
	Selector string
}

// TextMessage builds a free-text event.
func TextMessage(senderID, text string) Event {
	return Event{SenderID: senderID, Kind: KindText, Text: text}
}

// Postback builds a button selection event.
func Postback(senderID, selector string) Event {
	return Event{SenderID: senderID, Kind: KindPostback, Selector: selector}
}
