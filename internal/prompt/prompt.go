// Package prompt assembles the system prompt, per-call context and tool
// definitions sent upstream.
package prompt

import (
	"embed"
	"encoding/json"
	"strings"
)

//go:embed templates/*.md templates/*.json
var templates embed.FS

// Modes accepted on chat requests.
const (
	ModeExpert       = "expert"
	ModeGeneralAgent = "general_agent"
	ModeAsk          = "ask"
)

// Expert mode steps.
const (
	StepSupervisor = "supervisor"
	StepPlanner    = "planner"
	StepExecutor   = "executor"
	StepAuditor    = "auditor"
)

const emptyPlaceholder = "(empty)"

// ContextFiles are the editor memory files sent with each call.
type ContextFiles struct {
	Todo         string `json:"todo"`
	Notes        string `json:"notes"`
	Continuity   string `json:"continuity"`
	Diff         string `json:"diff"`
	Project      string `json:"project"`
	PreviousChat string `json:"previousChat"`
}

var (
	modePrompts = map[string]string{
		ModeGeneralAgent: mustRead("templates/general_agent.md"),
		ModeAsk:          mustRead("templates/ask.md"),
	}
	expertPrompts = map[string]string{
		StepSupervisor: mustRead("templates/expert_supervisor.md"),
		StepPlanner:    mustRead("templates/expert_planner.md"),
		StepExecutor:   mustRead("templates/expert_executor.md"),
		StepAuditor:    mustRead("templates/expert_auditor.md"),
	}
	modeTools = map[string]json.RawMessage{
		ModeAsk: json.RawMessage(mustRead("templates/ask_tools.json")),
	}
)

func mustRead(name string) string {
	data, err := templates.ReadFile(name)
	if err != nil {
		panic(err)
	}
	return string(data)
}

// SystemPrompt returns the static instructions for a mode. Unknown modes use
// the general agent prompt; unknown expert steps use the supervisor prompt.
func SystemPrompt(mode, expertStep string) string {
	if mode == ModeExpert {
		if p, ok := expertPrompts[strings.ToLower(strings.TrimSpace(expertStep))]; ok {
			return p
		}
		return expertPrompts[StepSupervisor]
	}
	if p, ok := modePrompts[mode]; ok {
		return p
	}
	return modePrompts[ModeGeneralAgent]
}

// DynamicContext renders the memory files block. It changes on every call
// and is sent separately from the cacheable system prompt.
func DynamicContext(files *ContextFiles) string {
	var f ContextFiles
	if files != nil {
		f = *files
	}
	sections := []struct {
		name string
		body string
	}{
		{"todo.md", f.Todo},
		{"notes.txt", f.Notes},
		{"continuity.txt", f.Continuity},
		{"diff.txt", f.Diff},
		{"project.txt", f.Project},
		{"previousChat.txt", f.PreviousChat},
	}

	var b strings.Builder
	b.WriteString("\n## Context Files\n")
	for _, s := range sections {
		body := s.body
		if body == "" {
			body = emptyPlaceholder
		}
		b.WriteString("### ")
		b.WriteString(s.name)
		b.WriteString("\n")
		b.WriteString(body)
		b.WriteString("\n\n")
	}
	return b.String()
}

// Tools returns the tool definitions for a mode, or nil.
func Tools(mode string) json.RawMessage {
	tools, ok := modeTools[mode]
	if !ok {
		return nil
	}
	return append(json.RawMessage(nil), tools...)
}
