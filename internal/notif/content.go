package notif

import "golang.org/x/text/unicode/norm"

// Content is what the platform renders for a notification.
//
// Title and Body are NFC-normalized on construction. Goal and arc titles
// come from arbitrary user input, and the platform's scheduled list may
// round-trip strings through a different normal form; normalizing here
// keeps ledger comparisons and golden output stable.
type Content struct {
	Kind    Kind              `json:"kind"`
	Title   string            `json:"title"`
	Body    string            `json:"body,omitempty"`
	Payload map[string]string `json:"payload,omitempty"`
}

// NewContent builds a Content with normalized text.
func NewContent(kind Kind, title, body string) Content {
	return Content{
		Kind:  kind,
		Title: norm.NFC.String(title),
		Body:  norm.NFC.String(body),
	}
}

// WithPayload attaches a payload entry, normalizing the value.
func (c Content) WithPayload(key, value string) Content {
	if c.Payload == nil {
		c.Payload = make(map[string]string, 1)
	}
	c.Payload[key] = norm.NFC.String(value)
	return c
}
