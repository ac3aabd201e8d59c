package model

import "time"

// ActionType is an operation that can be performed on a meeting minute.
type ActionType string

const (
	ActionExtractTasks         ActionType = "extract_tasks"
	ActionCreateSummaryBitable ActionType = "create_summary_bitable"
	ActionArchiveToWiki        ActionType = "archive_to_wiki"
	ActionExtractDecisions     ActionType = "extract_decisions"
	ActionFullAnalysis         ActionType = "full_analysis"
)

// PendingAction links an interactive card button back to the workflow state
// that produced it. Single use: consumed on confirm or cancel, swept after
// the configured TTL.
type PendingAction struct {
	ID          string
	Type        ActionType
	MinuteToken string
	ChatID      string
	UserID      string
	CreatedAt   time.Time
}

// TaskItem is one task extracted from a transcript.
type TaskItem struct {
	Task     string `json:"task"`
	Assignee string `json:"assignee"`
	Deadline string `json:"deadline"`
}

// MinuteAnalysis is the derived summary of one meeting transcript.
// Recomputed on demand, never cached across requests.
type MinuteAnalysis struct {
	Title           string     `json:"title"`
	DurationSeconds int        `json:"duration_seconds"`
	Participants    []string   `json:"participants"`
	Tasks           []TaskItem `json:"tasks"`
	Decisions       []string   `json:"decisions"`
	KeyPoints       []string   `json:"key_points"`
	Summary         string     `json:"summary"`
}
