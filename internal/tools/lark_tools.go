package tools

import (
	"context"
	"encoding/json"

	"github.com/soracane/larkbridge/internal/lark"
	"github.com/soracane/larkbridge/internal/model"
)

// registerLarkTools registers the tools that map one-to-one onto the
// Lark API client: messaging, Bitable, documents, wiki, tasks and
// calendar, users and chats, and meeting minutes.
func (r *Registry) registerLarkTools(deps Deps) {
	api := deps.Lark

	r.register(Tool{
		Name:        "send_message",
		Description: "Send a message to a Lark chat or user",
		InputSchema: objectSchema(map[string]Property{
			"chat_id": {
				Type:        "string",
				Description: "The chat ID or user ID to send the message to",
			},
			"message": {
				Type:        "string",
				Description: "The message content to send",
			},
			"message_type": {
				Type:        "string",
				Enum:        []string{"text", "post", "image", "file"},
				Default:     "text",
				Description: "Type of message to send",
			},
		}, "chat_id", "message"),
	}, func(ctx context.Context, args json.RawMessage) (any, error) {
		var a struct {
			ChatID      string `json:"chat_id"`
			Message     string `json:"message"`
			MessageType string `json:"message_type"`
		}
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		if a.ChatID == "" {
			return nil, missing("chat_id")
		}
		if a.Message == "" {
			return nil, missing("message")
		}
		if a.MessageType == "" {
			a.MessageType = "text"
		}
		return api.SendMessage(ctx, a.ChatID, a.Message, a.MessageType)
	})

	r.register(Tool{
		Name:        "send_card",
		Description: "Send an interactive card to a Lark chat",
		InputSchema: objectSchema(map[string]Property{
			"chat_id": {
				Type:        "string",
				Description: "The chat ID to send the card to",
			},
			"card": {
				Type:        "object",
				Description: "Interactive card payload",
			},
		}, "chat_id", "card"),
	}, func(ctx context.Context, args json.RawMessage) (any, error) {
		var a struct {
			ChatID string          `json:"chat_id"`
			Card   json.RawMessage `json:"card"`
		}
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		if a.ChatID == "" {
			return nil, missing("chat_id")
		}
		if len(a.Card) == 0 {
			return nil, missing("card")
		}
		return api.SendCard(ctx, a.ChatID, a.Card)
	})

	r.register(Tool{
		Name:        "update_card",
		Description: "Update a previously sent interactive card",
		InputSchema: objectSchema(map[string]Property{
			"message_id": {
				Type:        "string",
				Description: "Message ID of the card to update",
			},
			"card": {
				Type:        "object",
				Description: "Replacement card payload",
			},
		}, "message_id", "card"),
	}, func(ctx context.Context, args json.RawMessage) (any, error) {
		var a struct {
			MessageID string          `json:"message_id"`
			Card      json.RawMessage `json:"card"`
		}
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		if a.MessageID == "" {
			return nil, missing("message_id")
		}
		if len(a.Card) == 0 {
			return nil, missing("card")
		}
		return api.UpdateCard(ctx, a.MessageID, a.Card)
	})

	r.register(Tool{
		Name:        "create_bitable_app",
		Description: "Create a new Bitable app",
		InputSchema: objectSchema(map[string]Property{
			"name": {
				Type:        "string",
				Description: "Name of the Bitable app",
			},
			"folder_token": {
				Type:        "string",
				Description: "Folder token to create the app in (optional)",
			},
		}, "name"),
	}, func(ctx context.Context, args json.RawMessage) (any, error) {
		var a struct {
			Name        string `json:"name"`
			FolderToken string `json:"folder_token"`
		}
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		if a.Name == "" {
			return nil, missing("name")
		}
		return api.CreateBitableApp(ctx, a.Name, a.FolderToken)
	})

	r.register(Tool{
		Name:        "create_bitable_table",
		Description: "Create a table in a Bitable app",
		InputSchema: objectSchema(map[string]Property{
			"app_token": {
				Type:        "string",
				Description: "Bitable app token",
			},
			"name": {
				Type:        "string",
				Description: "Table name",
			},
			"fields": {
				Type: "array",
				Items: &Property{
					Type: "object",
					Properties: map[string]Property{
						"field_name": {
							Type:        "string",
							Description: "Field name",
						},
						"type": {
							Type:        "integer",
							Description: "Numeric Bitable field type",
						},
					},
					Required: []string{"field_name", "type"},
				},
				Description: "Field definitions for the table",
			},
		}, "app_token", "name", "fields"),
	}, func(ctx context.Context, args json.RawMessage) (any, error) {
		var a struct {
			AppToken string           `json:"app_token"`
			Name     string           `json:"name"`
			Fields   []model.APIField `json:"fields"`
		}
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		if a.AppToken == "" {
			return nil, missing("app_token")
		}
		if a.Name == "" {
			return nil, missing("name")
		}
		if len(a.Fields) == 0 {
			return nil, missing("fields")
		}
		return api.CreateBitableTable(ctx, a.AppToken, a.Name, a.Fields)
	})

	r.register(Tool{
		Name:        "list_bitable_tables",
		Description: "List the tables of a Bitable app",
		InputSchema: objectSchema(map[string]Property{
			"app_token": {
				Type:        "string",
				Description: "Bitable app token",
			},
		}, "app_token"),
	}, func(ctx context.Context, args json.RawMessage) (any, error) {
		var a struct {
			AppToken string `json:"app_token"`
		}
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		if a.AppToken == "" {
			return nil, missing("app_token")
		}
		return api.ListBitableTables(ctx, a.AppToken)
	})

	r.register(Tool{
		Name:        "batch_create_records",
		Description: "Batch create multiple records in a Bitable table",
		InputSchema: objectSchema(map[string]Property{
			"app_token": {
				Type:        "string",
				Description: "Bitable app token",
			},
			"table_id": {
				Type:        "string",
				Description: "Table ID",
			},
			"records": {
				Type: "array",
				Items: &Property{
					Type: "object",
					Properties: map[string]Property{
						"fields": {
							Type:        "object",
							Description: "Record field values",
						},
					},
					Required: []string{"fields"},
				},
				Description: "Array of records to create",
			},
		}, "app_token", "table_id", "records"),
	}, func(ctx context.Context, args json.RawMessage) (any, error) {
		var a struct {
			AppToken string        `json:"app_token"`
			TableID  string        `json:"table_id"`
			Records  []lark.Record `json:"records"`
		}
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		if a.AppToken == "" {
			return nil, missing("app_token")
		}
		if a.TableID == "" {
			return nil, missing("table_id")
		}
		if len(a.Records) == 0 {
			return nil, missing("records")
		}
		return api.BatchCreateRecords(ctx, a.AppToken, a.TableID, a.Records)
	})

	r.register(Tool{
		Name:        "get_bitable_records",
		Description: "Get records from a Bitable table",
		InputSchema: objectSchema(map[string]Property{
			"app_token": {
				Type:        "string",
				Description: "Bitable app token",
			},
			"table_id": {
				Type:        "string",
				Description: "Table ID",
			},
			"view_id": {
				Type:        "string",
				Description: "View ID to read from (optional)",
			},
			"filter": {
				Type:        "object",
				Description: "Filter conditions (optional)",
			},
		}, "app_token", "table_id"),
	}, func(ctx context.Context, args json.RawMessage) (any, error) {
		var a struct {
			AppToken string         `json:"app_token"`
			TableID  string         `json:"table_id"`
			ViewID   string         `json:"view_id"`
			Filter   map[string]any `json:"filter"`
		}
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		if a.AppToken == "" {
			return nil, missing("app_token")
		}
		if a.TableID == "" {
			return nil, missing("table_id")
		}
		return api.GetBitableRecords(ctx, a.AppToken, a.TableID, a.ViewID, a.Filter)
	})

	r.register(Tool{
		Name:        "create_document",
		Description: "Create a new document in Lark Docs",
		InputSchema: objectSchema(map[string]Property{
			"title": {
				Type:        "string",
				Description: "Title of the document",
			},
			"content": {
				Type:        "string",
				Description: "Initial content of the document",
			},
			"folder_token": {
				Type:        "string",
				Description: "Folder token to create document in (optional)",
			},
		}, "title"),
	}, func(ctx context.Context, args json.RawMessage) (any, error) {
		var a struct {
			Title       string `json:"title"`
			Content     string `json:"content"`
			FolderToken string `json:"folder_token"`
		}
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		if a.Title == "" {
			return nil, missing("title")
		}
		return api.CreateDocument(ctx, a.Title, a.Content, a.FolderToken)
	})

	r.register(Tool{
		Name:        "search_documents",
		Description: "Search for documents across Lark Docs, Sheets, and other cloud documents",
		InputSchema: objectSchema(map[string]Property{
			"query": {
				Type:        "string",
				Description: "Search query",
			},
			"doc_types": {
				Type: "array",
				Items: &Property{
					Type: "string",
					Enum: []string{"doc", "sheet", "bitable", "mindnote", "file", "wiki", "docx"},
				},
				Description: "Document types to search",
			},
			"owner_ids": {
				Type:        "array",
				Items:       &Property{Type: "string"},
				Description: "Filter by document owner IDs",
			},
			"chat_ids": {
				Type:        "array",
				Items:       &Property{Type: "string"},
				Description: "Filter by chat IDs where documents are shared",
			},
		}, "query"),
	}, func(ctx context.Context, args json.RawMessage) (any, error) {
		var a struct {
			Query    string   `json:"query"`
			DocTypes []string `json:"doc_types"`
			OwnerIDs []string `json:"owner_ids"`
			ChatIDs  []string `json:"chat_ids"`
		}
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		if a.Query == "" {
			return nil, missing("query")
		}
		return api.SearchDocuments(ctx, a.Query, a.DocTypes, a.OwnerIDs, a.ChatIDs)
	})

	r.register(Tool{
		Name:        "create_wiki_space",
		Description: "Create a wiki space for knowledge management",
		InputSchema: objectSchema(map[string]Property{
			"name": {
				Type:        "string",
				Description: "Name of the wiki space",
			},
			"description": {
				Type:        "string",
				Description: "Description of the wiki space",
			},
			"members": {
				Type:        "array",
				Items:       &Property{Type: "string"},
				Description: "List of member user IDs",
			},
		}, "name"),
	}, func(ctx context.Context, args json.RawMessage) (any, error) {
		var a struct {
			Name        string   `json:"name"`
			Description string   `json:"description"`
			Members     []string `json:"members"`
		}
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		if a.Name == "" {
			return nil, missing("name")
		}
		return api.CreateWikiSpace(ctx, a.Name, a.Description, a.Members)
	})

	r.register(Tool{
		Name:        "create_wiki_page",
		Description: "Create a page in a wiki space",
		InputSchema: objectSchema(map[string]Property{
			"space_id": {
				Type:        "string",
				Description: "Wiki space ID",
			},
			"title": {
				Type:        "string",
				Description: "Page title",
			},
			"content": {
				Type:        "string",
				Description: "Page content in markdown or HTML",
			},
			"parent_page_id": {
				Type:        "string",
				Description: "Parent page ID for nested pages",
			},
		}, "space_id", "title"),
	}, func(ctx context.Context, args json.RawMessage) (any, error) {
		var a struct {
			SpaceID      string `json:"space_id"`
			Title        string `json:"title"`
			Content      string `json:"content"`
			ParentPageID string `json:"parent_page_id"`
		}
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		if a.SpaceID == "" {
			return nil, missing("space_id")
		}
		if a.Title == "" {
			return nil, missing("title")
		}
		return api.CreateWikiPage(ctx, a.SpaceID, a.Title, a.Content, a.ParentPageID)
	})

	r.register(Tool{
		Name:        "list_wiki_spaces",
		Description: "List wiki spaces visible to the bot",
		InputSchema: noArgsSchema(),
	}, func(ctx context.Context, _ json.RawMessage) (any, error) {
		return api.ListWikiSpaces(ctx)
	})

	r.register(Tool{
		Name:        "create_task",
		Description: "Create a task in Lark",
		InputSchema: objectSchema(map[string]Property{
			"title": {
				Type:        "string",
				Description: "Task title",
			},
			"description": {
				Type:        "string",
				Description: "Task description",
			},
			"due_date": {
				Type:        "string",
				Description: "Due date in ISO format",
			},
			"assignee": {
				Type:        "string",
				Description: "User ID of the assignee",
			},
			"followers": {
				Type:        "array",
				Items:       &Property{Type: "string"},
				Description: "List of follower user IDs",
			},
		}, "title"),
	}, func(ctx context.Context, args json.RawMessage) (any, error) {
		var a struct {
			Title       string   `json:"title"`
			Description string   `json:"description"`
			DueDate     string   `json:"due_date"`
			Assignee    string   `json:"assignee"`
			Followers   []string `json:"followers"`
		}
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		if a.Title == "" {
			return nil, missing("title")
		}
		return api.CreateTask(ctx, a.Title, a.Description, a.DueDate, a.Assignee, a.Followers)
	})

	r.register(Tool{
		Name:        "create_calendar_event",
		Description: "Create a calendar event in Lark",
		InputSchema: objectSchema(map[string]Property{
			"title": {
				Type:        "string",
				Description: "Title of the calendar event",
			},
			"start_time": {
				Type:        "string",
				Description: "Start time in ISO format (YYYY-MM-DDTHH:MM:SS)",
			},
			"end_time": {
				Type:        "string",
				Description: "End time in ISO format (YYYY-MM-DDTHH:MM:SS)",
			},
			"attendees": {
				Type:        "array",
				Items:       &Property{Type: "string"},
				Description: "List of attendee user IDs",
			},
			"description": {
				Type:        "string",
				Description: "Event description",
			},
		}, "title", "start_time", "end_time"),
	}, func(ctx context.Context, args json.RawMessage) (any, error) {
		var a struct {
			Title       string   `json:"title"`
			StartTime   string   `json:"start_time"`
			EndTime     string   `json:"end_time"`
			Attendees   []string `json:"attendees"`
			Description string   `json:"description"`
		}
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		if a.Title == "" {
			return nil, missing("title")
		}
		if a.StartTime == "" {
			return nil, missing("start_time")
		}
		if a.EndTime == "" {
			return nil, missing("end_time")
		}
		return api.CreateCalendarEvent(ctx, a.Title, a.Description, a.StartTime, a.EndTime, a.Attendees)
	})

	r.register(Tool{
		Name:        "get_user_info",
		Description: "Get information about a Lark user",
		InputSchema: objectSchema(map[string]Property{
			"user_id": {
				Type:        "string",
				Description: "The user ID to get information for",
			},
		}, "user_id"),
	}, func(ctx context.Context, args json.RawMessage) (any, error) {
		var a struct {
			UserID string `json:"user_id"`
		}
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		if a.UserID == "" {
			return nil, missing("user_id")
		}
		return api.GetUserInfo(ctx, a.UserID)
	})

	r.register(Tool{
		Name:        "list_chats",
		Description: "List all chats the bot has access to",
		InputSchema: noArgsSchema(),
	}, func(ctx context.Context, _ json.RawMessage) (any, error) {
		return api.ListChats(ctx)
	})

	r.register(Tool{
		Name:        "search_messages",
		Description: "Search for messages in Lark chats",
		InputSchema: objectSchema(map[string]Property{
			"query": {
				Type:        "string",
				Description: "Search query string",
			},
			"chat_id": {
				Type:        "string",
				Description: "Specific chat ID to search in (optional)",
			},
		}, "query"),
	}, func(ctx context.Context, args json.RawMessage) (any, error) {
		var a struct {
			Query  string `json:"query"`
			ChatID string `json:"chat_id"`
		}
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		if a.Query == "" {
			return nil, missing("query")
		}
		return api.SearchMessages(ctx, a.Query, a.ChatID)
	})

	r.register(Tool{
		Name:        "get_minute_info",
		Description: "Get metadata for a Lark Minutes recording",
		InputSchema: objectSchema(map[string]Property{
			"minute_token": {
				Type:        "string",
				Description: "Minutes token from the recording URL",
			},
		}, "minute_token"),
	}, func(ctx context.Context, args json.RawMessage) (any, error) {
		token, err := minuteToken(args)
		if err != nil {
			return nil, err
		}
		return api.GetMinute(ctx, token)
	})

	r.register(Tool{
		Name:        "get_minute_transcript",
		Description: "Get the transcript of a Lark Minutes recording",
		InputSchema: objectSchema(map[string]Property{
			"minute_token": {
				Type:        "string",
				Description: "Minutes token from the recording URL",
			},
		}, "minute_token"),
	}, func(ctx context.Context, args json.RawMessage) (any, error) {
		token, err := minuteToken(args)
		if err != nil {
			return nil, err
		}
		return api.GetMinuteTranscript(ctx, token)
	})

	r.register(Tool{
		Name:        "get_minute_statistics",
		Description: "Get view statistics for a Lark Minutes recording",
		InputSchema: objectSchema(map[string]Property{
			"minute_token": {
				Type:        "string",
				Description: "Minutes token from the recording URL",
			},
		}, "minute_token"),
	}, func(ctx context.Context, args json.RawMessage) (any, error) {
		token, err := minuteToken(args)
		if err != nil {
			return nil, err
		}
		return api.GetMinuteStatistics(ctx, token)
	})
}

func minuteToken(args json.RawMessage) (string, error) {
	var a struct {
		MinuteToken string `json:"minute_token"`
	}
	if err := decodeArgs(args, &a); err != nil {
		return "", err
	}
	if a.MinuteToken == "" {
		return "", missing("minute_token")
	}
	return a.MinuteToken, nil
}
