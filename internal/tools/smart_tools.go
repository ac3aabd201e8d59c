package tools

import (
	"context"
	"encoding/json"

	"github.com/soracane/larkbridge/internal/builder"
	"github.com/soracane/larkbridge/internal/model"
)

// templateField is one field of a catalog template as reported by
// list_bitable_templates.
type templateField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// templateInfo summarizes one catalog template.
type templateInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Fields      []templateField `json:"fields"`
}

// intentAnalysis is the result of analyze_message_intent.
type intentAnalysis struct {
	CommandType model.CommandType `json:"command_type"`
	Confidence  float64           `json:"confidence"`
	Parameters  model.Params      `json:"parameters"`
	Original    string            `json:"original_message"`
}

// bitableWithWikiResult bundles the three artifacts produced by
// create_bitable_with_wiki. Documentation is either the published page
// payload or an error object when no space id came back.
type bitableWithWikiResult struct {
	Bitable       builder.MessageBuildResult `json:"bitable"`
	Wiki          json.RawMessage            `json:"wiki"`
	Documentation any                        `json:"documentation"`
}

// registerSmartTools registers the composite tools that sit above the
// raw API surface: natural-language Bitable construction, message
// dispatch, intent analysis, and documentation generation.
func (r *Registry) registerSmartTools(deps Deps) {
	r.register(Tool{
		Name:        "smart_build_bitable",
		Description: "Design and build a Bitable app from a natural language message",
		InputSchema: objectSchema(map[string]Property{
			"message": {
				Type:        "string",
				Description: "Natural language description of the Bitable to build",
			},
			"name": {
				Type:        "string",
				Description: "Explicit app name overriding the generated one (optional)",
			},
			"folder_token": {
				Type:        "string",
				Description: "Folder token to create the app in (optional)",
			},
		}, "message"),
	}, func(ctx context.Context, args json.RawMessage) (any, error) {
		var a struct {
			Message     string `json:"message"`
			Name        string `json:"name"`
			FolderToken string `json:"folder_token"`
		}
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		if a.Message == "" {
			return nil, missing("message")
		}
		return deps.Builder.BuildFromMessage(ctx, a.Message, a.Name, a.FolderToken), nil
	})

	r.register(Tool{
		Name:        "process_lark_message",
		Description: "Process a chat message through the bot's command pipeline",
		InputSchema: objectSchema(map[string]Property{
			"message": {
				Type:        "string",
				Description: "The message text to process",
			},
		}, "message"),
	}, func(ctx context.Context, args json.RawMessage) (any, error) {
		var a struct {
			Message string `json:"message"`
		}
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		if a.Message == "" {
			return nil, missing("message")
		}
		return deps.Dispatcher.HandleMessage(ctx, a.Message), nil
	})

	r.register(Tool{
		Name:        "generate_bitable_documentation",
		Description: "Generate markdown documentation for a Bitable design",
		InputSchema: objectSchema(map[string]Property{
			"message": {
				Type:        "string",
				Description: "Natural language description of the Bitable to document",
			},
			"name": {
				Type:        "string",
				Description: "Explicit design name overriding the generated one (optional)",
			},
		}, "message"),
	}, func(_ context.Context, args json.RawMessage) (any, error) {
		var a struct {
			Message string `json:"message"`
			Name    string `json:"name"`
		}
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		if a.Message == "" {
			return nil, missing("message")
		}
		design := deps.Builder.Design(a.Message, a.Name)
		return struct {
			Documentation string `json:"documentation"`
			DesignName    string `json:"design_name"`
		}{deps.DocGen.Documentation(design), design.Name}, nil
	})

	r.register(Tool{
		Name:        "create_bitable_with_wiki",
		Description: "Build a Bitable app and publish its documentation to a new wiki space",
		InputSchema: objectSchema(map[string]Property{
			"message": {
				Type:        "string",
				Description: "Natural language description of the Bitable to build",
			},
			"name": {
				Type:        "string",
				Description: "Name for the app and the wiki space (optional)",
			},
			"folder_token": {
				Type:        "string",
				Description: "Folder token to create the app in (optional)",
			},
		}, "message"),
	}, func(ctx context.Context, args json.RawMessage) (any, error) {
		var a struct {
			Message     string `json:"message"`
			Name        string `json:"name"`
			FolderToken string `json:"folder_token"`
		}
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		if a.Message == "" {
			return nil, missing("message")
		}

		bitable := deps.Builder.BuildFromMessage(ctx, a.Message, a.Name, a.FolderToken)

		wikiName := a.Name
		if wikiName == "" {
			wikiName = "システムドキュメント"
		}
		wiki, err := deps.Lark.CreateWikiSpace(ctx, wikiName+" Wiki", wikiName+"のドキュメンテーション", nil)
		if err != nil {
			return nil, err
		}

		result := bitableWithWikiResult{Bitable: bitable, Wiki: wiki}

		design := deps.Builder.Design(a.Message, a.Name)
		if spaceID := wikiSpaceID(wiki); spaceID != "" {
			doc, err := deps.DocGen.PublishWiki(ctx, design, spaceID, "")
			if err != nil {
				return nil, err
			}
			result.Documentation = doc
		} else {
			result.Documentation = map[string]string{"error": "Failed to get wiki space_id"}
		}
		return result, nil
	})

	r.register(Tool{
		Name:        "list_bitable_templates",
		Description: "List the Bitable templates the bot can build from",
		InputSchema: noArgsSchema(),
	}, func(_ context.Context, _ json.RawMessage) (any, error) {
		templates := make(map[string]templateInfo)
		for _, name := range deps.Catalog.Names() {
			tmpl, ok := deps.Catalog.Lookup(name)
			if !ok {
				continue
			}
			fields := make([]templateField, len(tmpl.Fields))
			for i, f := range tmpl.Fields {
				fields[i] = templateField{Name: f.Name, Type: f.Type.String()}
			}
			templates[name] = templateInfo{
				Name:        tmpl.Name,
				Description: tmpl.Description,
				Fields:      fields,
			}
		}
		return map[string]map[string]templateInfo{"templates": templates}, nil
	})

	r.register(Tool{
		Name:        "analyze_message_intent",
		Description: "Classify a message's intent without executing it",
		InputSchema: objectSchema(map[string]Property{
			"message": {
				Type:        "string",
				Description: "The message text to analyze",
			},
		}, "message"),
	}, func(_ context.Context, args json.RawMessage) (any, error) {
		var a struct {
			Message string `json:"message"`
		}
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		if a.Message == "" {
			return nil, missing("message")
		}
		parsed := deps.Classifier.Classify(a.Message)
		return intentAnalysis{
			CommandType: parsed.Type,
			Confidence:  parsed.Confidence,
			Parameters:  parsed.Params,
			Original:    parsed.RawText,
		}, nil
	})

	r.register(Tool{
		Name:        "get_lark_bot_help",
		Description: "Get the bot's usage guide and available templates",
		InputSchema: noArgsSchema(),
	}, func(ctx context.Context, _ json.RawMessage) (any, error) {
		result := deps.Dispatcher.HandleMessage(ctx, "ヘルプ")
		var templates any = []string{}
		if data, ok := result.Data.(map[string]any); ok {
			if t, ok := data["templates"]; ok {
				templates = t
			}
		}
		return struct {
			HelpText  string `json:"help_text"`
			Templates any    `json:"templates"`
		}{result.Message, templates}, nil
	})
}

// wikiSpaceID pulls the space id out of a create-wiki-space payload.
func wikiSpaceID(data json.RawMessage) string {
	var payload struct {
		Space struct {
			SpaceID string `json:"space_id"`
		} `json:"space"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return ""
	}
	return payload.Space.SpaceID
}
