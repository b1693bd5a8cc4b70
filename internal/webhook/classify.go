package webhook

import (
	wamodels "whatsapp-crm/pkg/models"
)

// Classify reduces an inbound unit to the preview string shown in the inbox and
// the type tag stored on the message. It never fails; unknown types render as
// "[<type>]".
func Classify(msg *wamodels.InboundMessage) (summary, typeTag string) {
	if msg == nil {
		return "[unknown]", "unknown"
	}
	typeTag = msg.Type
	if typeTag == "" {
		typeTag = "unknown"
	}

	switch msg.Type {
	case "text":
		if msg.Text != nil {
			return msg.Text.Body, typeTag
		}
		return "", typeTag
	case "image":
		if msg.Image != nil && msg.Image.Caption != "" {
			return msg.Image.Caption, typeTag
		}
		return "[Image]", typeTag
	case "video":
		return "[Video]", typeTag
	case "audio":
		return "[Audio]", typeTag
	case "document":
		name := "file"
		if msg.Document != nil && msg.Document.Filename != "" {
			name = msg.Document.Filename
		}
		return "[Document: " + name + "]", typeTag
	case "location":
		return "[Location]", typeTag
	case "interactive":
		if in := msg.Interactive; in != nil {
			if in.ButtonReply != nil && in.ButtonReply.Title != "" {
				return in.ButtonReply.Title, typeTag
			}
			if in.ListReply != nil && in.ListReply.Title != "" {
				return in.ListReply.Title, typeTag
			}
		}
		return "[Interactive]", typeTag
	default:
		return "[" + typeTag + "]", typeTag
	}
}
