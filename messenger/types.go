// Package messenger speaks the Send API of the Messenger platform: message
// payloads, the recipient envelope and the user settings call that installs
// the persistent menu.
package messenger

// Attachment and template identifiers used by the Send API.
const (
	AttachmentTemplate  = "template"
	TemplateGeneric     = "generic"
	ButtonPostback      = "postback"
	MessagingTypeReply  = "RESPONSE"
	DefaultMenuLocale   = "default"
	maxErrorBodyPreview = 512
)

// Response is the "message" object of a Send API request: either plain text
// or a template attachment.
type Response struct {
	Text       string      `json:"text,omitempty"`
	Attachment *Attachment `json:"attachment,omitempty"`
}

// Attachment wraps a structured template.
type Attachment struct {
	Type    string          `json:"type"`
	Payload TemplatePayload `json:"payload"`
}

// TemplatePayload describes a generic template.
type TemplatePayload struct {
	TemplateType string    `json:"template_type"`
	Elements     []Element `json:"elements"`
}

// Element is one card of a generic template.
type Element struct {
	Title    string   `json:"title"`
	Subtitle string   `json:"subtitle,omitempty"`
	Buttons  []Button `json:"buttons,omitempty"`
}

// Button sends Payload back to the webhook as a postback when pressed.
type Button struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Payload string `json:"payload"`
}

// TextResponse builds a plain text message.
func TextResponse(text string) Response {
	return Response{Text: text}
}

// GenericTemplate builds a generic template message from elements.
func GenericTemplate(elements ...Element) Response {
	return Response{
		Attachment: &Attachment{
			Type: AttachmentTemplate,
			Payload: TemplatePayload{
				TemplateType: TemplateGeneric,
				Elements:     elements,
			},
		},
	}
}

// PostbackButton builds a button that posts payload back.
func PostbackButton(title, payload string) Button {
	return Button{Type: ButtonPostback, Title: title, Payload: payload}
}

// IsTemplate reports whether the response carries a template attachment.
func (r Response) IsTemplate() bool {
	return r.Attachment != nil
}

// Buttons returns every button of every element in display order.
func (r Response) Buttons() []Button {
	if r.Attachment == nil {
		return nil
	}
	var out []Button
	for _, el := range r.Attachment.Payload.Elements {
		out = append(out, el.Buttons...)
	}
	return out
}

// Recipient identifies the user a message goes to.
type Recipient struct {
	ID string `json:"id"`
}

// SendRequest is the body of POST /me/messages.
type SendRequest struct {
	Recipient     Recipient `json:"recipient"`
	MessagingType string    `json:"messaging_type,omitempty"`
	Message       Response  `json:"message"`
}

// SendResult is returned by the Send API on success.
type SendResult struct {
	RecipientID string `json:"recipient_id"`
	MessageID   string `json:"message_id"`
}

// MenuAction is one call to action of a persistent menu.
type MenuAction struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Payload string `json:"payload"`
}

// PersistentMenu is the menu shown next to the composer for one locale.
type PersistentMenu struct {
	Locale                string       `json:"locale"`
	ComposerInputDisabled bool         `json:"composer_input_disabled"`
	CallToActions         []MenuAction `json:"call_to_actions"`
}

// UserSettingsRequest is the body of POST /me/custom_user_settings.
type UserSettingsRequest struct {
	PSID           string           `json:"psid"`
	PersistentMenu []PersistentMenu `json:"persistent_menu"`
}

// graphError is the error object the Graph API returns on failure.
type graphError struct {
	Error struct {
		Message      string `json:"message"`
		Type         string `json:"type"`
		Code         int    `json:"code"`
		ErrorSubcode int    `json:"error_subcode"`
		FBTraceID    string `json:"fbtrace_id"`
	} `json:"error"`
}
