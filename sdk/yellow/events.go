package yellow

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Event types emitted by the agent stream. The server is an independent,
// evolving system; types not listed here still decode into an Event and are
// left to the consumer to ignore.
const (
	EventRunStarted     = "run_started"
	EventRunFinished    = "run_finished"
	EventThought        = "thought"
	EventToolStart      = "tool_start"
	EventToolEnd        = "tool_end"
	EventFileTree       = "file_tree"
	EventFileContent    = "file_content"
	EventTerminal       = "terminal"
	EventAudit          = "audit"
	EventDiff           = "diff"
	EventProposedFile   = "proposed_file"
	EventAwaitingReview = "awaiting_user_review"
	EventBuild          = "build"

	// EventCodeUpdate is the legacy whole-file replace emitted by older
	// producers; it carries no path and targets whichever file is open.
	EventCodeUpdate = "code_update"
)

// Build sub-statuses carried by EventBuild.
const (
	BuildStart   = "start"
	BuildOutput  = "output"
	BuildSuccess = "success"
	BuildError   = "error"
)

// Event is one decoded frame from the agent stream. The wire format is a
// single flat JSON object discriminated by Type; only the fields relevant to
// a given type are populated.
type Event struct {
	Type  string `json:"type"`
	RunID string `json:"runId,omitempty"`

	Prompt      string `json:"prompt,omitempty"`      // run_started
	Interrupted bool   `json:"interrupted,omitempty"` // run_finished

	Content string `json:"content,omitempty"` // thought, proposed_file, code_update
	Name    string `json:"name,omitempty"`    // tool_start, tool_end
	Status  string `json:"status,omitempty"`  // tool_end, build

	Tree *FileNode `json:"tree,omitempty"` // file_tree
	Path string    `json:"path,omitempty"` // file_content, proposed_file

	Line     string `json:"line,omitempty"`     // terminal
	Analysis string `json:"analysis,omitempty"` // audit

	File    string `json:"file,omitempty"`    // diff
	OldCode string `json:"oldCode,omitempty"` // diff
	NewCode string `json:"newCode,omitempty"` // diff

	Files []string `json:"files,omitempty"` // awaiting_user_review
	Data  string   `json:"data,omitempty"`  // build

	// Raw is the undecoded frame payload, kept for forward compatibility.
	Raw json.RawMessage `json:"-"`
}

// DecodeEvent parses one frame payload. The type discriminator is sniffed
// with gjson first so a frame missing it fails fast without a full decode.
func DecodeEvent(data []byte) (*Event, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("malformed frame: not valid JSON")
	}
	t := gjson.GetBytes(data, "type")
	if !t.Exists() || t.String() == "" {
		return nil, fmt.Errorf("malformed frame: missing type discriminator")
	}

	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("decode %s frame: %w", t.String(), err)
	}
	ev.Raw = append(json.RawMessage(nil), data...)
	return &ev, nil
}
