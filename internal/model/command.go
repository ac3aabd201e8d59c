// Package model defines the shared data structures for larkbridge: Bitable
// field and table designs, parsed chat commands, and the meeting-minutes
// workflow records.
package model

// CommandType classifies an inbound chat message.
type CommandType string

const (
	CommandCreateBitable CommandType = "create_bitable"
	CommandCreateTable   CommandType = "create_table"
	CommandCreateWiki    CommandType = "create_wiki"
	CommandCreateDoc     CommandType = "create_doc"
	CommandSendMessage   CommandType = "send_message"
	CommandCreateTask    CommandType = "create_task"
	CommandSearch        CommandType = "search"
	CommandHelp          CommandType = "help"
	CommandGreeting      CommandType = "greeting"
	CommandConversation  CommandType = "conversation"
	CommandUnknown       CommandType = "unknown"
)

// Params is the category-specific parameter set extracted by the classifier.
// Each command category that carries parameters has its own concrete type;
// categories without parameters leave ParsedCommand.Params nil.
type Params interface {
	isParams()
}

// BitableParams are the parameters of a create-bitable command.
type BitableParams struct {
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	Fields      []string `json:"fields,omitempty"`
}

// WikiParams are the parameters of a create-wiki command.
type WikiParams struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// DocParams are the parameters of a create-document command.
type DocParams struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// TaskParams are the parameters of a create-task command.
type TaskParams struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// SearchParams are the parameters of a search command.
type SearchParams struct {
	Query string `json:"query,omitempty"`
}

func (BitableParams) isParams() {}
func (WikiParams) isParams()    {}
func (DocParams) isParams()     {}
func (TaskParams) isParams()    {}
func (SearchParams) isParams()  {}

// ParsedCommand is the immutable result of classifying one message.
// RawText always holds the stripped input so handlers can fall back to it.
type ParsedCommand struct {
	Type       CommandType
	Params     Params
	RawText    string
	Confidence float64
}

// CommandResult is what a handler produces for one command: a machine
// payload plus the user-facing reply text.
type CommandResult struct {
	Success bool        `json:"success"`
	Data    any         `json:"data,omitempty"`
	Message string      `json:"message"`
	Type    CommandType `json:"command_type"`
}
