package llm

import "encoding/json"

// Part kinds for structured message content.
const (
	PartText     = "text"
	PartImage    = "image"
	PartDocument = "document"
)

// ContentPart is one segment of a structured message: either inline text
// or a reference to an uploaded attachment.
type ContentPart struct {
	Kind string
	Text string
	URL  string
}

// Message is a single entry of the model input. Content carries plain
// text; Parts, when non-empty, carries structured content (text segments
// mixed with attachment references) and takes precedence on the wire.
type Message struct {
	Role    string
	Content string
	Parts   []ContentPart
}

// wireTextPart and wireImagePart mirror the provider's structured
// content encoding.
type wireTextPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type wireImagePart struct {
	Type     string `json:"type"`
	ImageURL struct {
		URL string `json:"url"`
	} `json:"image_url"`
}

type wireMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// MarshalJSON encodes plain-text messages as {role, content} and
// structured messages with a content array of typed parts. Document
// references are sent as text segments naming the URL, which every
// provider accepts.
func (m Message) MarshalJSON() ([]byte, error) {
	if len(m.Parts) == 0 {
		return json.Marshal(wireMessage{Role: m.Role, Content: m.Content})
	}

	parts := make([]any, 0, len(m.Parts))
	for _, p := range m.Parts {
		switch p.Kind {
		case PartImage:
			var ip wireImagePart
			ip.Type = "image_url"
			ip.ImageURL.URL = p.URL
			parts = append(parts, ip)
		case PartDocument:
			parts = append(parts, wireTextPart{Type: "text", Text: "[attached document](" + p.URL + ")"})
		default:
			parts = append(parts, wireTextPart{Type: "text", Text: p.Text})
		}
	}
	return json.Marshal(wireMessage{Role: m.Role, Content: parts})
}
