package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/soracane/larkbridge/internal/model"
)

// Record is one Bitable record for batch creation.
type Record struct {
	Fields map[string]any `json:"fields"`
}

type sendMessageRequest struct {
	ReceiveID string `json:"receive_id"`
	MsgType   string `json:"msg_type"`
	Content   string `json:"content"`
}

// SendMessage sends a message to a chat. An empty messageType means
// plain text.
func (c *Client) SendMessage(ctx context.Context, chatID, message, messageType string) (json.RawMessage, error) {
	if messageType == "" {
		messageType = "text"
	}
	var payload any
	if messageType == "text" {
		payload = map[string]string{"text": message}
	} else {
		payload = map[string]string{"content": message}
	}
	content, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("lark: encode message content: %w", err)
	}
	return c.doRequest(ctx, http.MethodPost, "/im/v1/messages",
		sendMessageRequest{ReceiveID: chatID, MsgType: messageType, Content: string(content)},
		url.Values{"receive_id_type": {"chat_id"}})
}

// SendCard sends an interactive card message to a chat.
func (c *Client) SendCard(ctx context.Context, chatID string, card any) (json.RawMessage, error) {
	content, err := json.Marshal(card)
	if err != nil {
		return nil, fmt.Errorf("lark: encode card: %w", err)
	}
	return c.doRequest(ctx, http.MethodPost, "/im/v1/messages",
		sendMessageRequest{ReceiveID: chatID, MsgType: "interactive", Content: string(content)},
		url.Values{"receive_id_type": {"chat_id"}})
}

// UpdateCard replaces the content of an existing interactive message.
func (c *Client) UpdateCard(ctx context.Context, messageID string, card any) (json.RawMessage, error) {
	content, err := json.Marshal(card)
	if err != nil {
		return nil, fmt.Errorf("lark: encode card: %w", err)
	}
	return c.doRequest(ctx, http.MethodPatch, "/im/v1/messages/"+messageID,
		map[string]string{"content": string(content)}, nil)
}

type createAppRequest struct {
	Name        string `json:"name"`
	FolderToken string `json:"folder_token,omitempty"`
}

// CreateBitableApp creates a Bitable container. The data payload
// carries app.app_token for subsequent table creation.
func (c *Client) CreateBitableApp(ctx context.Context, name, folderToken string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/bitable/v1/apps",
		createAppRequest{Name: name, FolderToken: folderToken}, nil)
}

type createTableRequest struct {
	Table struct {
		Name   string           `json:"name"`
		Fields []model.APIField `json:"fields"`
	} `json:"table"`
}

// CreateBitableTable adds a table with the given fields to an app.
func (c *Client) CreateBitableTable(ctx context.Context, appToken, name string, fields []model.APIField) (json.RawMessage, error) {
	var body createTableRequest
	body.Table.Name = name
	body.Table.Fields = fields
	return c.doRequest(ctx, http.MethodPost,
		"/bitable/v1/apps/"+appToken+"/tables", body, nil)
}

// ListBitableTables lists the tables of an app.
func (c *Client) ListBitableTables(ctx context.Context, appToken string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet,
		"/bitable/v1/apps/"+appToken+"/tables", nil, nil)
}

// BatchCreateRecords inserts records into a table in one call.
func (c *Client) BatchCreateRecords(ctx context.Context, appToken, tableID string, records []Record) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost,
		"/bitable/v1/apps/"+appToken+"/tables/"+tableID+"/records/batch_create",
		map[string][]Record{"records": records}, nil)
}

// GetBitableRecords reads records from a table, optionally scoped to a
// view or filter expression.
func (c *Client) GetBitableRecords(ctx context.Context, appToken, tableID, viewID string, filter map[string]any) (json.RawMessage, error) {
	query := url.Values{}
	if viewID != "" {
		query.Set("view_id", viewID)
	}
	if filter != nil {
		encoded, err := json.Marshal(filter)
		if err != nil {
			return nil, fmt.Errorf("lark: encode record filter: %w", err)
		}
		query.Set("filter", string(encoded))
	}
	return c.doRequest(ctx, http.MethodGet,
		"/bitable/v1/apps/"+appToken+"/tables/"+tableID+"/records", nil, query)
}

type createDocumentRequest struct {
	Title       string `json:"title"`
	Type        string `json:"type"`
	FolderToken string `json:"folder_token,omitempty"`
}

// CreateDocument creates a document and, when content is non-empty,
// inserts it at the top. The returned payload is from the creation
// call; document.document_id identifies the new document.
func (c *Client) CreateDocument(ctx context.Context, title, content, folderToken string) (json.RawMessage, error) {
	created, err := c.doRequest(ctx, http.MethodPost, "/docx/v1/documents",
		createDocumentRequest{Title: title, Type: "doc", FolderToken: folderToken}, nil)
	if err != nil {
		return nil, err
	}
	if content == "" {
		return created, nil
	}

	var doc struct {
		Document struct {
			DocumentID string `json:"document_id"`
		} `json:"document"`
	}
	if err := json.Unmarshal(created, &doc); err != nil {
		return nil, fmt.Errorf("lark: parse created document: %w", err)
	}
	insert := map[string]any{
		"requests": []any{
			map[string]any{
				"insert_text": map[string]any{
					"location": map[string]any{"index": 0},
					"text":     content,
				},
			},
		},
	}
	if _, err := c.doRequest(ctx, http.MethodPatch,
		"/docx/v1/documents/"+doc.Document.DocumentID+"/content", insert, nil); err != nil {
		return nil, err
	}
	return created, nil
}

// SearchDocuments searches the docs suite. The list filters travel as
// comma-joined query parameters.
func (c *Client) SearchDocuments(ctx context.Context, query string, docTypes, ownerIDs, chatIDs []string) (json.RawMessage, error) {
	q := url.Values{"query": {query}}
	if len(docTypes) > 0 {
		q.Set("doc_types", strings.Join(docTypes, ","))
	}
	if len(ownerIDs) > 0 {
		q.Set("owner_ids", strings.Join(ownerIDs, ","))
	}
	if len(chatIDs) > 0 {
		q.Set("chat_ids", strings.Join(chatIDs, ","))
	}
	return c.doRequest(ctx, http.MethodGet, "/suite/docs-api/search/object", nil, q)
}

type createWikiSpaceRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Members     []string `json:"members,omitempty"`
}

// CreateWikiSpace creates a wiki space. The data payload carries
// space.space_id for page creation.
func (c *Client) CreateWikiSpace(ctx context.Context, name, description string, members []string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/wiki/v2/spaces",
		createWikiSpaceRequest{Name: name, Description: description, Members: members}, nil)
}

type createWikiPageRequest struct {
	Title        string `json:"title"`
	Content      string `json:"content"`
	ParentPageID string `json:"parent_page_id,omitempty"`
}

// CreateWikiPage creates a page inside a wiki space.
func (c *Client) CreateWikiPage(ctx context.Context, spaceID, title, content, parentPageID string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/wiki/v2/spaces/"+spaceID+"/pages",
		createWikiPageRequest{Title: title, Content: content, ParentPageID: parentPageID}, nil)
}

// ListWikiSpaces lists the wiki spaces visible to the app.
func (c *Client) ListWikiSpaces(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/wiki/v2/spaces", nil, nil)
}

type createTaskRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	DueDate     string   `json:"due_date,omitempty"`
	Assignee    string   `json:"assignee,omitempty"`
	Followers   []string `json:"followers,omitempty"`
}

// CreateTask creates a task.
func (c *Client) CreateTask(ctx context.Context, title, description, dueDate, assignee string, followers []string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/tasks/v1/tasks",
		createTaskRequest{
			Title:       title,
			Description: description,
			DueDate:     dueDate,
			Assignee:    assignee,
			Followers:   followers,
		}, nil)
}

type eventAttendee struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
}

type eventTime struct {
	Timestamp string `json:"timestamp"`
}

type createEventRequest struct {
	Summary         string          `json:"summary"`
	Description     string          `json:"description"`
	StartTime       eventTime       `json:"start_time"`
	EndTime         eventTime       `json:"end_time"`
	AttendeeAbility string          `json:"attendee_ability"`
	FreeBusyStatus  string          `json:"free_busy_status"`
	Attendees       []eventAttendee `json:"attendees"`
}

// CreateCalendarEvent creates an event on the primary calendar.
func (c *Client) CreateCalendarEvent(ctx context.Context, title, description, startTime, endTime string, attendees []string) (json.RawMessage, error) {
	list := make([]eventAttendee, 0, len(attendees))
	for _, uid := range attendees {
		list = append(list, eventAttendee{Type: "user", UserID: uid})
	}
	return c.doRequest(ctx, http.MethodPost, "/calendar/v4/calendars/primary/events",
		createEventRequest{
			Summary:         title,
			Description:     description,
			StartTime:       eventTime{Timestamp: startTime},
			EndTime:         eventTime{Timestamp: endTime},
			AttendeeAbility: "can_see_others",
			FreeBusyStatus:  "busy",
			Attendees:       list,
		}, nil)
}

// GetUserInfo fetches a user's profile.
func (c *Client) GetUserInfo(ctx context.Context, userID string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/contact/v3/users/"+userID,
		nil, url.Values{"user_id_type": {"user_id"}})
}

// ListChats lists chats the bot participates in.
func (c *Client) ListChats(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/im/v1/chats", nil, nil)
}

// SearchMessages searches messages, optionally within one chat.
func (c *Client) SearchMessages(ctx context.Context, query, chatID string) (json.RawMessage, error) {
	q := url.Values{"query": {query}}
	if chatID != "" {
		q.Set("chat_id", chatID)
	}
	return c.doRequest(ctx, http.MethodGet, "/im/v1/messages/search", nil, q)
}

// GetMinute fetches meeting-minutes metadata by token.
func (c *Client) GetMinute(ctx context.Context, minuteToken string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/minutes/v1/minutes/"+minuteToken, nil, nil)
}

// GetMinuteTranscript fetches the transcript of a meeting minute.
func (c *Client) GetMinuteTranscript(ctx context.Context, minuteToken string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/minutes/v1/minutes/"+minuteToken+"/transcript", nil, nil)
}

// GetMinuteStatistics fetches speaker and word statistics of a minute.
func (c *Client) GetMinuteStatistics(ctx context.Context, minuteToken string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/minutes/v1/minutes/"+minuteToken+"/statistics", nil, nil)
}
