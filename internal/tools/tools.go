// Package tools defines the callable tool surface: a declarative
// catalog of JSON-Schema described tools bound to typed handlers. Every
// catalog entry has exactly one handler; the pairing is checked at
// construction so a drifting catalog fails startup instead of a call.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/soracane/larkbridge/internal/builder"
	"github.com/soracane/larkbridge/internal/catalog"
	"github.com/soracane/larkbridge/internal/dispatch"
	"github.com/soracane/larkbridge/internal/intent"
	"github.com/soracane/larkbridge/internal/lark"
	"github.com/soracane/larkbridge/internal/model"
)

// ErrUnknownTool reports a call to a name the catalog does not carry.
var ErrUnknownTool = errors.New("unknown tool")

// Property describes one argument in a tool's input schema. Items and
// the nested Properties/Required cover array-of-object arguments.
type Property struct {
	Type        string              `json:"type"`
	Description string              `json:"description,omitempty"`
	Enum        []string            `json:"enum,omitempty"`
	Default     any                 `json:"default,omitempty"`
	Items       *Property           `json:"items,omitempty"`
	Properties  map[string]Property `json:"properties,omitempty"`
	Required    []string            `json:"required,omitempty"`
}

// Schema is the JSON-Schema shape of a tool's arguments object.
type Schema struct {
	Type                 string              `json:"type"`
	Properties           map[string]Property `json:"properties"`
	Required             []string            `json:"required,omitempty"`
	AdditionalProperties *bool               `json:"additionalProperties,omitempty"`
}

// objectSchema builds an object schema. Properties render as {} rather
// than null when the tool takes no arguments.
func objectSchema(props map[string]Property, required ...string) Schema {
	if props == nil {
		props = map[string]Property{}
	}
	return Schema{Type: "object", Properties: props, Required: required}
}

// noArgsSchema is the closed empty-object schema of argument-free tools.
func noArgsSchema() Schema {
	closed := false
	s := objectSchema(nil)
	s.AdditionalProperties = &closed
	return s
}

// Tool is one catalog entry.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema Schema `json:"inputSchema"`
}

// Handler executes one tool call. args is the raw arguments object;
// the returned value must be JSON-marshalable.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// LarkAPI is the full remote surface the tool catalog exposes.
type LarkAPI interface {
	SendMessage(ctx context.Context, chatID, message, messageType string) (json.RawMessage, error)
	SendCard(ctx context.Context, chatID string, card any) (json.RawMessage, error)
	UpdateCard(ctx context.Context, messageID string, card any) (json.RawMessage, error)
	CreateBitableApp(ctx context.Context, name, folderToken string) (json.RawMessage, error)
	CreateBitableTable(ctx context.Context, appToken, name string, fields []model.APIField) (json.RawMessage, error)
	ListBitableTables(ctx context.Context, appToken string) (json.RawMessage, error)
	BatchCreateRecords(ctx context.Context, appToken, tableID string, records []lark.Record) (json.RawMessage, error)
	GetBitableRecords(ctx context.Context, appToken, tableID, viewID string, filter map[string]any) (json.RawMessage, error)
	CreateDocument(ctx context.Context, title, content, folderToken string) (json.RawMessage, error)
	SearchDocuments(ctx context.Context, query string, docTypes, ownerIDs, chatIDs []string) (json.RawMessage, error)
	CreateWikiSpace(ctx context.Context, name, description string, members []string) (json.RawMessage, error)
	CreateWikiPage(ctx context.Context, spaceID, title, content, parentPageID string) (json.RawMessage, error)
	ListWikiSpaces(ctx context.Context) (json.RawMessage, error)
	CreateTask(ctx context.Context, title, description, dueDate, assignee string, followers []string) (json.RawMessage, error)
	CreateCalendarEvent(ctx context.Context, title, description, startTime, endTime string, attendees []string) (json.RawMessage, error)
	GetUserInfo(ctx context.Context, userID string) (json.RawMessage, error)
	ListChats(ctx context.Context) (json.RawMessage, error)
	SearchMessages(ctx context.Context, query, chatID string) (json.RawMessage, error)
	GetMinute(ctx context.Context, minuteToken string) (json.RawMessage, error)
	GetMinuteTranscript(ctx context.Context, minuteToken string) (json.RawMessage, error)
	GetMinuteStatistics(ctx context.Context, minuteToken string) (json.RawMessage, error)
}

// Deps are the components the tool handlers delegate to.
type Deps struct {
	Lark       LarkAPI
	Builder    *builder.Builder
	DocGen     *builder.DocGenerator
	Dispatcher *dispatch.Dispatcher
	Classifier intent.Classifier
	Catalog    *catalog.Catalog
	Logger     *zap.Logger
}

// Registry holds the ordered tool catalog and its handlers.
type Registry struct {
	tools    []Tool
	handlers map[string]Handler
	logger   *zap.Logger
}

// NewRegistry builds the complete catalog and validates it.
func NewRegistry(deps Deps) (*Registry, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{handlers: make(map[string]Handler), logger: logger}
	r.registerLarkTools(deps)
	r.registerSmartTools(deps)
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) register(tool Tool, h Handler) {
	r.tools = append(r.tools, tool)
	r.handlers[tool.Name] = h
}

// Validate checks that the catalog and the handler table describe the
// same tool set.
func (r *Registry) Validate() error {
	seen := make(map[string]bool, len(r.tools))
	for _, tool := range r.tools {
		if tool.Name == "" {
			return errors.New("tools: catalog entry without a name")
		}
		if seen[tool.Name] {
			return fmt.Errorf("tools: duplicate tool %q", tool.Name)
		}
		seen[tool.Name] = true
		if r.handlers[tool.Name] == nil {
			return fmt.Errorf("tools: no handler for tool %q", tool.Name)
		}
		if tool.InputSchema.Type != "object" {
			return fmt.Errorf("tools: tool %q schema type must be object", tool.Name)
		}
	}
	for name := range r.handlers {
		if !seen[name] {
			return fmt.Errorf("tools: handler %q has no catalog entry", name)
		}
	}
	return nil
}

// Tools returns the catalog in registration order.
func (r *Registry) Tools() []Tool {
	out := make([]Tool, len(r.tools))
	copy(out, r.tools)
	return out
}

// Lookup returns the catalog entry for name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	for _, tool := range r.tools {
		if tool.Name == name {
			return tool, true
		}
	}
	return Tool{}, false
}

// Len reports the number of registered tools.
func (r *Registry) Len() int {
	return len(r.tools)
}

// Call executes the named tool. A nil args is treated as an empty
// arguments object.
func (r *Registry) Call(ctx context.Context, name string, args json.RawMessage) (any, error) {
	h, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	r.logger.Info("executing tool", zap.String("tool", name))
	result, err := h(ctx, args)
	if err != nil {
		r.logger.Warn("tool failed", zap.String("tool", name), zap.Error(err))
		return nil, err
	}
	return result, nil
}

// decodeArgs unmarshals the arguments object into a typed struct.
func decodeArgs(args json.RawMessage, into any) error {
	if err := json.Unmarshal(args, into); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// missing reports an absent required argument.
func missing(field string) error {
	return fmt.Errorf("missing required argument: %s", field)
}
