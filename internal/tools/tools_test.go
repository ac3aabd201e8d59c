package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/soracane/larkbridge/internal/builder"
	"github.com/soracane/larkbridge/internal/catalog"
	"github.com/soracane/larkbridge/internal/dispatch"
	"github.com/soracane/larkbridge/internal/intent"
	"github.com/soracane/larkbridge/internal/lark"
	"github.com/soracane/larkbridge/internal/model"
)

// fakeLark implements LarkAPI with canned per-method payloads and a
// call log. Only the arguments the tests assert on are recorded.
type fakeLark struct {
	calls     []string
	responses map[string]json.RawMessage
	err       error

	chatID      string
	message     string
	messageType string
	fields      []model.APIField
	records     []lark.Record
	wikiName    string
	wikiDesc    string
	pageSpaceID string
	pageTitle   string
	minuteToken string
}

func (f *fakeLark) result(method string) (json.RawMessage, error) {
	f.calls = append(f.calls, method)
	if f.err != nil {
		return nil, f.err
	}
	if f.responses != nil {
		if data, ok := f.responses[method]; ok {
			return data, nil
		}
	}
	return json.RawMessage(`{}`), nil
}

func (f *fakeLark) SendMessage(_ context.Context, chatID, message, messageType string) (json.RawMessage, error) {
	f.chatID, f.message, f.messageType = chatID, message, messageType
	return f.result("SendMessage")
}

func (f *fakeLark) SendCard(_ context.Context, chatID string, _ any) (json.RawMessage, error) {
	f.chatID = chatID
	return f.result("SendCard")
}

func (f *fakeLark) UpdateCard(_ context.Context, _ string, _ any) (json.RawMessage, error) {
	return f.result("UpdateCard")
}

func (f *fakeLark) CreateBitableApp(_ context.Context, _, _ string) (json.RawMessage, error) {
	return f.result("CreateBitableApp")
}

func (f *fakeLark) CreateBitableTable(_ context.Context, _, _ string, fields []model.APIField) (json.RawMessage, error) {
	f.fields = fields
	return f.result("CreateBitableTable")
}

func (f *fakeLark) ListBitableTables(_ context.Context, _ string) (json.RawMessage, error) {
	return f.result("ListBitableTables")
}

func (f *fakeLark) BatchCreateRecords(_ context.Context, _, _ string, records []lark.Record) (json.RawMessage, error) {
	f.records = records
	return f.result("BatchCreateRecords")
}

func (f *fakeLark) GetBitableRecords(_ context.Context, _, _, _ string, _ map[string]any) (json.RawMessage, error) {
	return f.result("GetBitableRecords")
}

func (f *fakeLark) CreateDocument(_ context.Context, _, _, _ string) (json.RawMessage, error) {
	return f.result("CreateDocument")
}

func (f *fakeLark) SearchDocuments(_ context.Context, _ string, _, _, _ []string) (json.RawMessage, error) {
	return f.result("SearchDocuments")
}

func (f *fakeLark) CreateWikiSpace(_ context.Context, name, description string, _ []string) (json.RawMessage, error) {
	f.wikiName, f.wikiDesc = name, description
	return f.result("CreateWikiSpace")
}

func (f *fakeLark) CreateWikiPage(_ context.Context, spaceID, title, _, _ string) (json.RawMessage, error) {
	f.pageSpaceID, f.pageTitle = spaceID, title
	return f.result("CreateWikiPage")
}

func (f *fakeLark) ListWikiSpaces(_ context.Context) (json.RawMessage, error) {
	return f.result("ListWikiSpaces")
}

func (f *fakeLark) CreateTask(_ context.Context, _, _, _, _ string, _ []string) (json.RawMessage, error) {
	return f.result("CreateTask")
}

func (f *fakeLark) CreateCalendarEvent(_ context.Context, _, _, _, _ string, _ []string) (json.RawMessage, error) {
	return f.result("CreateCalendarEvent")
}

func (f *fakeLark) GetUserInfo(_ context.Context, _ string) (json.RawMessage, error) {
	return f.result("GetUserInfo")
}

func (f *fakeLark) ListChats(_ context.Context) (json.RawMessage, error) {
	return f.result("ListChats")
}

func (f *fakeLark) SearchMessages(_ context.Context, _, _ string) (json.RawMessage, error) {
	return f.result("SearchMessages")
}

func (f *fakeLark) GetMinute(_ context.Context, token string) (json.RawMessage, error) {
	f.minuteToken = token
	return f.result("GetMinute")
}

func (f *fakeLark) GetMinuteTranscript(_ context.Context, token string) (json.RawMessage, error) {
	f.minuteToken = token
	return f.result("GetMinuteTranscript")
}

func (f *fakeLark) GetMinuteStatistics(_ context.Context, token string) (json.RawMessage, error) {
	f.minuteToken = token
	return f.result("GetMinuteStatistics")
}

func newTestRegistry(t *testing.T, fake *fakeLark) *Registry {
	t.Helper()
	cat, err := catalog.New(zap.NewNop(), "")
	require.NoError(t, err)
	bld := builder.New(fake, cat, zap.NewNop())
	classifier := intent.NewRegexClassifier()
	disp := dispatch.New(classifier, bld, fake, cat, zap.NewNop())
	reg, err := NewRegistry(Deps{
		Lark:       fake,
		Builder:    bld,
		DocGen:     builder.NewDocGenerator(fake),
		Dispatcher: disp,
		Classifier: classifier,
		Catalog:    cat,
		Logger:     zap.NewNop(),
	})
	require.NoError(t, err)
	return reg
}

func callJSON(t *testing.T, reg *Registry, name, args string) (any, error) {
	t.Helper()
	return reg.Call(context.Background(), name, json.RawMessage(args))
}

func TestRegistryCatalogComplete(t *testing.T) {
	reg := newTestRegistry(t, &fakeLark{})

	assert.Equal(t, 28, reg.Len())
	require.NoError(t, reg.Validate())

	want := []string{
		"send_message", "send_card", "update_card",
		"create_bitable_app", "create_bitable_table", "list_bitable_tables",
		"batch_create_records", "get_bitable_records",
		"create_document", "search_documents",
		"create_wiki_space", "create_wiki_page", "list_wiki_spaces",
		"create_task", "create_calendar_event",
		"get_user_info", "list_chats", "search_messages",
		"get_minute_info", "get_minute_transcript", "get_minute_statistics",
		"smart_build_bitable", "process_lark_message",
		"generate_bitable_documentation", "create_bitable_with_wiki",
		"list_bitable_templates", "analyze_message_intent", "get_lark_bot_help",
	}
	var got []string
	for _, tool := range reg.Tools() {
		got = append(got, tool.Name)
	}
	assert.ElementsMatch(t, want, got)

	for _, tool := range reg.Tools() {
		assert.NotEmpty(t, tool.Description, "tool %s", tool.Name)
		assert.Equal(t, "object", tool.InputSchema.Type, "tool %s", tool.Name)
	}
}

func TestValidateRejectsDuplicates(t *testing.T) {
	r := &Registry{handlers: make(map[string]Handler), logger: zap.NewNop()}
	nop := func(context.Context, json.RawMessage) (any, error) { return nil, nil }
	r.register(Tool{Name: "dup", InputSchema: objectSchema(nil)}, nop)
	r.register(Tool{Name: "dup", InputSchema: objectSchema(nil)}, nop)

	err := r.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate tool "dup"`)
}

func TestValidateRejectsUnpairedHandler(t *testing.T) {
	r := &Registry{handlers: make(map[string]Handler), logger: zap.NewNop()}
	r.handlers["orphan"] = func(context.Context, json.RawMessage) (any, error) { return nil, nil }

	err := r.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `handler "orphan" has no catalog entry`)
}

func TestValidateRejectsMissingHandler(t *testing.T) {
	r := &Registry{handlers: make(map[string]Handler), logger: zap.NewNop()}
	r.tools = append(r.tools, Tool{Name: "bare", InputSchema: objectSchema(nil)})

	err := r.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no handler for tool "bare"`)
}

func TestLookup(t *testing.T) {
	reg := newTestRegistry(t, &fakeLark{})

	tool, ok := reg.Lookup("send_message")
	require.True(t, ok)
	assert.Equal(t, "Send a message to a Lark chat or user", tool.Description)

	_, ok = reg.Lookup("bogus")
	assert.False(t, ok)
}

func TestToolsReturnsCopy(t *testing.T) {
	reg := newTestRegistry(t, &fakeLark{})

	tools := reg.Tools()
	tools[0].Name = "mutated"

	_, ok := reg.Lookup("mutated")
	assert.False(t, ok)
}

func TestCallUnknownTool(t *testing.T) {
	reg := newTestRegistry(t, &fakeLark{})

	_, err := reg.Call(context.Background(), "bogus", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownTool)
	assert.EqualError(t, err, "unknown tool: bogus")
}

func TestCallNilArgs(t *testing.T) {
	fake := &fakeLark{responses: map[string]json.RawMessage{
		"ListChats": json.RawMessage(`{"items":[]}`),
	}}
	reg := newTestRegistry(t, fake)

	result, err := reg.Call(context.Background(), "list_chats", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[]}`, string(result.(json.RawMessage)))
	assert.Equal(t, []string{"ListChats"}, fake.calls)
}

func TestCallPropagatesAPIError(t *testing.T) {
	fake := &fakeLark{err: errors.New("boom")}
	reg := newTestRegistry(t, fake)

	_, err := callJSON(t, reg, "list_chats", `{}`)
	require.EqualError(t, err, "boom")
}

func TestCallRejectsMalformedArguments(t *testing.T) {
	reg := newTestRegistry(t, &fakeLark{})

	_, err := callJSON(t, reg, "send_message", `{"chat_id":`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid arguments")
}

func TestSendMessageRequiredArgs(t *testing.T) {
	fake := &fakeLark{}
	reg := newTestRegistry(t, fake)

	_, err := callJSON(t, reg, "send_message", `{"message":"こんにちは"}`)
	require.EqualError(t, err, "missing required argument: chat_id")

	_, err = callJSON(t, reg, "send_message", `{"chat_id":"oc_1"}`)
	require.EqualError(t, err, "missing required argument: message")
	assert.Empty(t, fake.calls)
}

func TestSendMessageDefaultsType(t *testing.T) {
	fake := &fakeLark{}
	reg := newTestRegistry(t, fake)

	_, err := callJSON(t, reg, "send_message", `{"chat_id":"oc_1","message":"hi"}`)
	require.NoError(t, err)
	assert.Equal(t, "oc_1", fake.chatID)
	assert.Equal(t, "hi", fake.message)
	assert.Equal(t, "text", fake.messageType)

	_, err = callJSON(t, reg, "send_message", `{"chat_id":"oc_1","message":"hi","message_type":"post"}`)
	require.NoError(t, err)
	assert.Equal(t, "post", fake.messageType)
}

func TestCreateBitableTableDecodesFields(t *testing.T) {
	fake := &fakeLark{}
	reg := newTestRegistry(t, fake)

	args := `{
		"app_token": "tokA",
		"name": "顧客",
		"fields": [
			{"field_name": "名前", "type": 1},
			{"field_name": "ステータス", "type": 3, "property": {"options": [{"name": "新規"}]}}
		]
	}`
	_, err := callJSON(t, reg, "create_bitable_table", args)
	require.NoError(t, err)

	require.Len(t, fake.fields, 2)
	assert.Equal(t, model.APIField{FieldName: "名前", Type: 1}, fake.fields[0])
	require.NotNil(t, fake.fields[1].Property)
	assert.Equal(t, []model.SelectOption{{Name: "新規"}}, fake.fields[1].Property.Options)
}

func TestBatchCreateRecordsRequiresRecords(t *testing.T) {
	fake := &fakeLark{}
	reg := newTestRegistry(t, fake)

	_, err := callJSON(t, reg, "batch_create_records", `{"app_token":"a","table_id":"t","records":[]}`)
	require.EqualError(t, err, "missing required argument: records")

	_, err = callJSON(t, reg, "batch_create_records",
		`{"app_token":"a","table_id":"t","records":[{"fields":{"名前":"佐藤"}}]}`)
	require.NoError(t, err)
	require.Len(t, fake.records, 1)
	assert.Equal(t, "佐藤", fake.records[0].Fields["名前"])
}

func TestMinuteTools(t *testing.T) {
	cases := []struct {
		tool   string
		method string
	}{
		{"get_minute_info", "GetMinute"},
		{"get_minute_transcript", "GetMinuteTranscript"},
		{"get_minute_statistics", "GetMinuteStatistics"},
	}
	for _, tc := range cases {
		t.Run(tc.tool, func(t *testing.T) {
			fake := &fakeLark{}
			reg := newTestRegistry(t, fake)

			_, err := callJSON(t, reg, tc.tool, `{}`)
			require.EqualError(t, err, "missing required argument: minute_token")

			_, err = callJSON(t, reg, tc.tool, `{"minute_token":"obcxyz"}`)
			require.NoError(t, err)
			assert.Equal(t, "obcxyz", fake.minuteToken)
			assert.Equal(t, []string{tc.method}, fake.calls)
		})
	}
}

func TestNoArgsSchemaShape(t *testing.T) {
	reg := newTestRegistry(t, &fakeLark{})

	tool, ok := reg.Lookup("list_chats")
	require.True(t, ok)

	data, err := json.Marshal(tool.InputSchema)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"object","properties":{},"additionalProperties":false}`, string(data))
}

func TestSendMessageSchemaShape(t *testing.T) {
	reg := newTestRegistry(t, &fakeLark{})

	tool, ok := reg.Lookup("send_message")
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"chat_id", "message"}, tool.InputSchema.Required)

	prop, ok := tool.InputSchema.Properties["message_type"]
	require.True(t, ok)
	assert.Equal(t, []string{"text", "post", "image", "file"}, prop.Enum)
	assert.Equal(t, "text", prop.Default)
}

func TestSmartBuildBitable(t *testing.T) {
	fake := &fakeLark{responses: map[string]json.RawMessage{
		"CreateBitableApp": json.RawMessage(`{"app":{"app_token":"tokA"}}`),
	}}
	reg := newTestRegistry(t, fake)

	result, err := callJSON(t, reg, "smart_build_bitable", `{"message":"顧客管理テーブルを作成して"}`)
	require.NoError(t, err)

	build, ok := result.(builder.MessageBuildResult)
	require.True(t, ok)
	assert.True(t, build.Success)
	assert.Equal(t, "tokA", build.AppToken())
	assert.Equal(t, "顧客管理Base", build.Design.Name)
}

func TestSmartBuildBitableRequiresMessage(t *testing.T) {
	reg := newTestRegistry(t, &fakeLark{})

	_, err := callJSON(t, reg, "smart_build_bitable", `{}`)
	require.EqualError(t, err, "missing required argument: message")
}

func TestProcessLarkMessage(t *testing.T) {
	fake := &fakeLark{responses: map[string]json.RawMessage{
		"CreateBitableApp": json.RawMessage(`{"app":{"app_token":"tokA"}}`),
	}}
	reg := newTestRegistry(t, fake)

	result, err := callJSON(t, reg, "process_lark_message", `{"message":"顧客管理テーブルを作成して"}`)
	require.NoError(t, err)

	cmd, ok := result.(model.CommandResult)
	require.True(t, ok)
	assert.True(t, cmd.Success)
	assert.Equal(t, model.CommandCreateBitable, cmd.Type)

	data, err := json.Marshal(cmd)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"command_type":"create_bitable"`)
	assert.Contains(t, string(data), `"success":true`)
}

func TestAnalyzeMessageIntent(t *testing.T) {
	reg := newTestRegistry(t, &fakeLark{})

	result, err := callJSON(t, reg, "analyze_message_intent", `{"message":"顧客管理テーブルを作成して"}`)
	require.NoError(t, err)

	analysis, ok := result.(intentAnalysis)
	require.True(t, ok)
	assert.Equal(t, model.CommandCreateBitable, analysis.CommandType)
	assert.GreaterOrEqual(t, analysis.Confidence, intent.ConversationThreshold)
	assert.Equal(t, "顧客管理テーブルを作成して", analysis.Original)

	data, err := json.Marshal(analysis)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"command_type":"create_bitable"`)
	assert.Contains(t, string(data), `"original_message"`)
}

func TestListBitableTemplates(t *testing.T) {
	reg := newTestRegistry(t, &fakeLark{})

	result, err := callJSON(t, reg, "list_bitable_templates", `{}`)
	require.NoError(t, err)

	wrapped, ok := result.(map[string]map[string]templateInfo)
	require.True(t, ok)
	templates := wrapped["templates"]
	assert.NotEmpty(t, templates)

	customer, ok := templates["顧客管理"]
	require.True(t, ok)
	assert.Equal(t, "顧客管理", customer.Name)
	assert.NotEmpty(t, customer.Fields)
	assert.Equal(t, "text", customer.Fields[0].Type)
}

func TestGenerateBitableDocumentation(t *testing.T) {
	reg := newTestRegistry(t, &fakeLark{})

	result, err := callJSON(t, reg, "generate_bitable_documentation", `{"message":"顧客管理テーブルを作成して"}`)
	require.NoError(t, err)

	data, err := json.Marshal(result)
	require.NoError(t, err)

	var got struct {
		Documentation string `json:"documentation"`
		DesignName    string `json:"design_name"`
	}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "顧客管理Base", got.DesignName)
	assert.Contains(t, got.Documentation, "# 顧客管理Base")
	assert.Contains(t, got.Documentation, "## フィールド一覧")
}

func TestCreateBitableWithWiki(t *testing.T) {
	fake := &fakeLark{responses: map[string]json.RawMessage{
		"CreateBitableApp": json.RawMessage(`{"app":{"app_token":"tokA"}}`),
		"CreateWikiSpace":  json.RawMessage(`{"space":{"space_id":"sp1"}}`),
		"CreateWikiPage":   json.RawMessage(`{"page":{"page_id":"pg1"}}`),
	}}
	reg := newTestRegistry(t, fake)

	result, err := callJSON(t, reg, "create_bitable_with_wiki",
		`{"message":"顧客管理テーブルを作成して","name":"販売管理"}`)
	require.NoError(t, err)

	combined, ok := result.(bitableWithWikiResult)
	require.True(t, ok)
	assert.True(t, combined.Bitable.Success)
	assert.JSONEq(t, `{"space":{"space_id":"sp1"}}`, string(combined.Wiki))
	assert.JSONEq(t, `{"page":{"page_id":"pg1"}}`, string(combined.Documentation.(json.RawMessage)))

	assert.Equal(t, "販売管理 Wiki", fake.wikiName)
	assert.Equal(t, "販売管理のドキュメンテーション", fake.wikiDesc)
	assert.Equal(t, "sp1", fake.pageSpaceID)
	assert.Equal(t, "販売管理 マニュアル", fake.pageTitle)
}

func TestCreateBitableWithWikiDefaultName(t *testing.T) {
	fake := &fakeLark{responses: map[string]json.RawMessage{
		"CreateBitableApp": json.RawMessage(`{"app":{"app_token":"tokA"}}`),
		"CreateWikiSpace":  json.RawMessage(`{"space":{"space_id":"sp1"}}`),
	}}
	reg := newTestRegistry(t, fake)

	_, err := callJSON(t, reg, "create_bitable_with_wiki", `{"message":"顧客管理テーブルを作成して"}`)
	require.NoError(t, err)
	assert.Equal(t, "システムドキュメント Wiki", fake.wikiName)
	assert.Equal(t, "システムドキュメントのドキュメンテーション", fake.wikiDesc)
}

func TestCreateBitableWithWikiMissingSpaceID(t *testing.T) {
	fake := &fakeLark{responses: map[string]json.RawMessage{
		"CreateBitableApp": json.RawMessage(`{"app":{"app_token":"tokA"}}`),
		"CreateWikiSpace":  json.RawMessage(`{}`),
	}}
	reg := newTestRegistry(t, fake)

	result, err := callJSON(t, reg, "create_bitable_with_wiki", `{"message":"顧客管理テーブルを作成して"}`)
	require.NoError(t, err)

	combined := result.(bitableWithWikiResult)
	assert.Equal(t, map[string]string{"error": "Failed to get wiki space_id"}, combined.Documentation)
	assert.NotContains(t, fake.calls, "CreateWikiPage")
}

func TestGetLarkBotHelp(t *testing.T) {
	reg := newTestRegistry(t, &fakeLark{})

	result, err := callJSON(t, reg, "get_lark_bot_help", `{}`)
	require.NoError(t, err)

	data, err := json.Marshal(result)
	require.NoError(t, err)

	var got struct {
		HelpText  string   `json:"help_text"`
		Templates []string `json:"templates"`
	}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Contains(t, got.HelpText, "顧客管理")
	assert.Contains(t, got.Templates, "顧客管理")
}
