// Package dispatch sends outbound messages through a business number and
// records them in the number's conversation.
package dispatch

import (
	"fmt"
	"strings"

	"whatsapp-crm/internal/phone"
	"whatsapp-crm/internal/whatsapp"
)

const (
	KindText        = "text"
	KindTemplate    = "template"
	KindImage       = "image"
	KindVideo       = "video"
	KindAudio       = "audio"
	KindDocument    = "document"
	KindInteractive = "interactive"
)

// Request is the normalized send request accepted from callers.
type Request struct {
	WhatsAppNumberID string                   `json:"whatsapp_number_id"`
	To               string                   `json:"to"`
	MessageType      string                   `json:"message_type"`
	Content          string                   `json:"content,omitempty"`
	TemplateName     string                   `json:"template_name,omitempty"`
	TemplateLanguage string                   `json:"template_language,omitempty"`
	TemplateParams   *TemplateParams          `json:"template_params,omitempty"`
	MediaURL         string                   `json:"media_url,omitempty"`
	MediaCaption     string                   `json:"media_caption,omitempty"`
	MediaFilename    string                   `json:"media_filename,omitempty"`
	Interactive      *whatsapp.InteractiveObj `json:"interactive,omitempty"`
}

// TemplateParams groups template variables by the component they fill.
type TemplateParams struct {
	Header  []TemplateParam  `json:"header,omitempty"`
	Body    []TemplateParam  `json:"body,omitempty"`
	Buttons []TemplateButton `json:"buttons,omitempty"`
}

// TemplateParam is one variable. Type defaults to "text"; media types use Link.
type TemplateParam struct {
	Type string `json:"type,omitempty"`
	Text string `json:"text,omitempty"`
	Link string `json:"link,omitempty"`
}

type TemplateButton struct {
	Index   int      `json:"index"`
	SubType string   `json:"sub_type,omitempty"`
	Params  []string `json:"params"`
}

// ValidationError reports a request that cannot be sent as given.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func required(field string) error {
	return &ValidationError{Field: field, Reason: "is required"}
}

// Validate checks the fields the chosen kind needs. It does no I/O.
func (r *Request) Validate() error {
	if strings.TrimSpace(r.WhatsAppNumberID) == "" {
		return required("whatsapp_number_id")
	}
	if phone.Normalize(r.To) == "" {
		return &ValidationError{Field: "to", Reason: "must contain a phone number"}
	}

	switch r.MessageType {
	case KindText:
		if strings.TrimSpace(r.Content) == "" {
			return required("content")
		}
	case KindTemplate:
		if r.TemplateName == "" {
			return required("template_name")
		}
		if r.TemplateLanguage == "" {
			return required("template_language")
		}
	case KindImage, KindVideo, KindAudio, KindDocument:
		if strings.TrimSpace(r.MediaURL) == "" {
			return required("media_url")
		}
	case KindInteractive:
		if r.Interactive == nil || r.Interactive.Type == "" {
			return required("interactive")
		}
		if strings.TrimSpace(r.Interactive.Body.Text) == "" {
			return required("interactive.body.text")
		}
	case "":
		return required("message_type")
	default:
		return &ValidationError{Field: "message_type", Reason: fmt.Sprintf("%q is not supported", r.MessageType)}
	}
	return nil
}

// Render builds the provider wire payload. Call Validate first.
func (r *Request) Render() whatsapp.GenericMessage {
	msg := whatsapp.GenericMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               phone.Normalize(r.To),
		Type:             r.MessageType,
	}

	switch r.MessageType {
	case KindText:
		msg.Text = &whatsapp.TextObj{Body: r.Content}
	case KindTemplate:
		msg.Template = &whatsapp.TemplateObj{
			Name:       r.TemplateName,
			Language:   whatsapp.LanguageObj{Code: r.TemplateLanguage},
			Components: r.TemplateParams.components(),
		}
	case KindImage:
		msg.Image = &whatsapp.MediaObj{Link: r.MediaURL, Caption: r.MediaCaption}
	case KindVideo:
		msg.Video = &whatsapp.MediaObj{Link: r.MediaURL, Caption: r.MediaCaption}
	case KindAudio:
		// audio does not take a caption
		msg.Audio = &whatsapp.MediaObj{Link: r.MediaURL}
	case KindDocument:
		msg.Document = &whatsapp.MediaObj{Link: r.MediaURL, Caption: r.MediaCaption, Filename: r.MediaFilename}
	case KindInteractive:
		msg.Interactive = r.Interactive
	}
	return msg
}

// components emits one component per supplied parameter group only.
func (p *TemplateParams) components() []whatsapp.ComponentObj {
	if p == nil {
		return nil
	}
	var out []whatsapp.ComponentObj
	if len(p.Header) > 0 {
		out = append(out, whatsapp.ComponentObj{Type: "header", Parameters: parameters(p.Header)})
	}
	if len(p.Body) > 0 {
		out = append(out, whatsapp.ComponentObj{Type: "body", Parameters: parameters(p.Body)})
	}
	for _, b := range p.Buttons {
		subType := b.SubType
		if subType == "" {
			subType = "url"
		}
		params := make([]whatsapp.ParameterObj, 0, len(b.Params))
		for _, v := range b.Params {
			if subType == "quick_reply" {
				params = append(params, whatsapp.ParameterObj{Type: "payload", Payload: v})
			} else {
				params = append(params, whatsapp.ParameterObj{Type: "text", Text: v})
			}
		}
		out = append(out, whatsapp.ComponentObj{
			Type:       "button",
			SubType:    subType,
			Index:      fmt.Sprintf("%d", b.Index),
			Parameters: params,
		})
	}
	return out
}

func parameters(in []TemplateParam) []whatsapp.ParameterObj {
	out := make([]whatsapp.ParameterObj, 0, len(in))
	for _, p := range in {
		switch p.Type {
		case "image":
			out = append(out, whatsapp.ParameterObj{Type: "image", Image: &whatsapp.MediaObj{Link: p.Link}})
		case "video":
			out = append(out, whatsapp.ParameterObj{Type: "video", Video: &whatsapp.MediaObj{Link: p.Link}})
		case "document":
			out = append(out, whatsapp.ParameterObj{Type: "document", Document: &whatsapp.MediaObj{Link: p.Link}})
		default:
			out = append(out, whatsapp.ParameterObj{Type: "text", Text: p.Text})
		}
	}
	return out
}

// Summary is the preview text stored for the sent message.
func (r *Request) Summary() string {
	switch r.MessageType {
	case KindText:
		return r.Content
	case KindTemplate:
		return "[Template: " + r.TemplateName + "]"
	case KindImage, KindVideo, KindAudio, KindDocument:
		if r.MediaCaption != "" && r.MessageType != KindAudio {
			return r.MediaCaption
		}
		return "[" + strings.ToUpper(r.MessageType[:1]) + r.MessageType[1:] + "]"
	case KindInteractive:
		if r.Interactive != nil && r.Interactive.Body.Text != "" {
			return r.Interactive.Body.Text
		}
		return "[Interactive]"
	}
	return "[" + r.MessageType + "]"
}
