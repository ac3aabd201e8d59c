// Package card models Lark interactive message cards and the callback
// payloads their buttons carry.
package card

import (
	"encoding/json"
	"fmt"
)

// Button styles understood by the Lark card renderer.
const (
	StyleDefault = "default"
	StylePrimary = "primary"
	StyleDanger  = "danger"
)

// Header color templates used by the bridge.
const (
	TemplateBlue      = "blue"
	TemplateOrange    = "orange"
	TemplateTurquoise = "turquoise"
)

// Text is a text node. Tag is plain_text or lark_md.
type Text struct {
	Tag     string `json:"tag"`
	Content string `json:"content"`
}

// Button is one clickable action. Value carries a JSON-encoded Value so
// the callback can identify the pending action it belongs to.
type Button struct {
	Tag   string `json:"tag"`
	Text  Text   `json:"text"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Element is one card body block: a div with markdown text, a divider,
// or a row of action buttons.
type Element struct {
	Tag     string   `json:"tag"`
	Text    *Text    `json:"text,omitempty"`
	Actions []Button `json:"actions,omitempty"`
}

// Config holds card-level rendering options.
type Config struct {
	WideScreenMode bool `json:"wide_screen_mode"`
}

// Header is the colored title bar.
type Header struct {
	Title    Text   `json:"title"`
	Template string `json:"template"`
}

// Card is a complete interactive message card.
type Card struct {
	Config   Config    `json:"config"`
	Header   Header    `json:"header"`
	Elements []Element `json:"elements"`
}

// New returns a wide-screen card with a plain-text header in the given
// color template.
func New(title, template string) *Card {
	return &Card{
		Config: Config{WideScreenMode: true},
		Header: Header{
			Title:    Text{Tag: "plain_text", Content: title},
			Template: template,
		},
	}
}

// Markdown appends a div element with lark_md content.
func (c *Card) Markdown(content string) *Card {
	c.Elements = append(c.Elements, Element{
		Tag:  "div",
		Text: &Text{Tag: "lark_md", Content: content},
	})
	return c
}

// Divider appends a horizontal rule.
func (c *Card) Divider() *Card {
	c.Elements = append(c.Elements, Element{Tag: "hr"})
	return c
}

// Actions appends a button row.
func (c *Card) Actions(buttons ...Button) *Card {
	c.Elements = append(c.Elements, Element{Tag: "action", Actions: buttons})
	return c
}

// Value is the callback payload a button carries. Selection buttons set
// ActionType; the confirm/cancel pair sets Confirm instead. ActionID is
// always present.
type Value struct {
	ActionID   string `json:"action_id"`
	ActionType string `json:"action_type,omitempty"`
	Confirm    *bool  `json:"confirm,omitempty"`
}

// Selection is the payload for an action-offer button.
func Selection(actionID, actionType string) Value {
	return Value{ActionID: actionID, ActionType: actionType}
}

// Confirmation is the payload for the confirm/cancel button pair.
func Confirmation(actionID string, confirm bool) Value {
	return Value{ActionID: actionID, Confirm: &confirm}
}

// NewButton builds a button whose value round-trips through ParseValue.
func NewButton(label, style string, value Value) Button {
	encoded, _ := json.Marshal(value)
	return Button{
		Tag:   "button",
		Text:  Text{Tag: "plain_text", Content: label},
		Type:  style,
		Value: string(encoded),
	}
}

// ParseValue decodes a button callback payload. Lark delivers string
// values back as JSON strings, so both the bare object form and the
// string-encoded form are accepted.
func ParseValue(raw json.RawMessage) (Value, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		raw = json.RawMessage(s)
	}
	var v Value
	if err := json.Unmarshal(raw, &v); err != nil {
		return Value{}, fmt.Errorf("card: invalid action value: %w", err)
	}
	if v.ActionID == "" {
		return Value{}, fmt.Errorf("card: action value missing action_id")
	}
	return v, nil
}
