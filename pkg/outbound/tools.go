package outbound

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/kaptinlin/jsonschema"
)

// Tool names exposed to the language model.
const (
	ToolEndCall                  = "end_call"
	ToolLookUpAvailability       = "look_up_availability"
	ToolConfirmAppointment       = "confirm_appointment"
	ToolDetectedAnsweringMachine = "detected_answering_machine"
)

// Hanguper removes the call participant from the room. Implementations
// must be idempotent and must not fail when the participant is already
// gone.
type Hanguper interface {
	Hangup(ctx context.Context) error
}

// ToolDefinition is the schema-typed declaration handed to the model.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// ToolExecutor is one named, atomically-invoked action.
type ToolExecutor interface {
	Name() string
	Definition() ToolDefinition
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// ToolSet validates and executes tool invocations. Arguments are checked
// against each tool's declared schema before execution.
type ToolSet struct {
	byName  map[string]ToolExecutor
	schemas map[string]*jsonschema.Schema
	logger  *slog.Logger
}

// NewToolSet builds the call-control tool set bound to a hangup side
// effect. The availability lookup simulates backend latency; clamp it to
// zero in tests.
func NewToolSet(hangup Hanguper, lookupLatency time.Duration, logger *slog.Logger) (*ToolSet, error) {
	if logger == nil {
		logger = slog.Default()
	}
	executors := []ToolExecutor{
		&endCallTool{hangup: hangup, logger: logger},
		&lookupAvailabilityTool{latency: lookupLatency, logger: logger},
		&confirmAppointmentTool{logger: logger},
		&answeringMachineTool{hangup: hangup, logger: logger},
	}

	ts := &ToolSet{
		byName:  make(map[string]ToolExecutor, len(executors)),
		schemas: make(map[string]*jsonschema.Schema, len(executors)),
		logger:  logger,
	}
	compiler := jsonschema.NewCompiler()
	for _, ex := range executors {
		def := ex.Definition()
		schema, err := compiler.Compile(def.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("compile schema for %s: %w", def.Name, err)
		}
		ts.byName[def.Name] = ex
		ts.schemas[def.Name] = schema
	}
	return ts, nil
}

// Names returns the registered tool names, sorted.
func (ts *ToolSet) Names() []string {
	out := make([]string, 0, len(ts.byName))
	for name := range ts.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Definitions returns the declarations for every registered tool.
func (ts *ToolSet) Definitions() []ToolDefinition {
	out := make([]ToolDefinition, 0, len(ts.byName))
	for _, name := range ts.Names() {
		out = append(out, ts.byName[name].Definition())
	}
	return out
}

// Has reports whether a tool is registered.
func (ts *ToolSet) Has(name string) bool {
	_, ok := ts.byName[name]
	return ok
}

// Execute validates args against the tool's schema and runs it. Failures
// are logged and returned; callers must not let them escape the session.
func (ts *ToolSet) Execute(ctx context.Context, name string, args json.RawMessage) (string, error) {
	ex, ok := ts.byName[name]
	if !ok {
		return "", fmt.Errorf("unknown tool %q", name)
	}

	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	if result := ts.schemas[name].ValidateJSON(args); !result.IsValid() {
		err := fmt.Errorf("tool %s arguments failed schema validation: %v", name, result.Errors)
		ts.logger.Warn("rejecting tool invocation", "tool", name, "error", err)
		return "", err
	}

	var decoded map[string]any
	if err := json.Unmarshal(args, &decoded); err != nil {
		return "", fmt.Errorf("decode tool %s arguments: %w", name, err)
	}

	out, err := ex.Execute(ctx, decoded)
	if err != nil {
		ts.logger.Error("tool invocation failed", "tool", name, "error", err)
		return "", err
	}
	return out, nil
}

// CallToolDefinitions returns the static declarations for the
// call-control tools, for handing to the language-model layer without
// constructing a ToolSet.
func CallToolDefinitions() []ToolDefinition {
	return []ToolDefinition{
		(&confirmAppointmentTool{}).Definition(),
		(&answeringMachineTool{}).Definition(),
		(&endCallTool{}).Definition(),
		(&lookupAvailabilityTool{}).Definition(),
	}
}

const emptyObjectSchema = `{"type":"object","additionalProperties":false}`

type endCallTool struct {
	hangup Hanguper
	logger *slog.Logger
}

func (t *endCallTool) Name() string { return ToolEndCall }

func (t *endCallTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolEndCall,
		Description: "Called when the conversation is over and the call should be hung up.",
		InputSchema: json.RawMessage(emptyObjectSchema),
	}
}

func (t *endCallTool) Execute(ctx context.Context, _ map[string]any) (string, error) {
	t.logger.Info("ending the call")
	if err := t.hangup.Hangup(ctx); err != nil {
		// The call is ending regardless; log and carry on.
		t.logger.Warn("error while hanging up", "error", err)
	}
	return "call ended", nil
}

type lookupAvailabilityTool struct {
	latency time.Duration
	logger  *slog.Logger
}

func (t *lookupAvailabilityTool) Name() string { return ToolLookUpAvailability }

func (t *lookupAvailabilityTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolLookUpAvailability,
		Description: "Called when the user asks about alternative callback availability on a date.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {"date": {"type": "string", "description": "The date to check availability for"}},
			"required": ["date"],
			"additionalProperties": false
		}`),
	}
}

func (t *lookupAvailabilityTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	date, _ := args["date"].(string)
	t.logger.Info("looking up availability", "date", date)

	// Read-only; the latency stands in for a real calendar backend.
	if t.latency > 0 {
		select {
		case <-time.After(t.latency):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	out, err := json.Marshal(map[string]any{"available_times": []string{"1pm", "2pm", "3pm"}})
	if err != nil {
		return "", fmt.Errorf("marshal availability: %w", err)
	}
	return string(out), nil
}

type confirmAppointmentTool struct {
	logger *slog.Logger
}

func (t *confirmAppointmentTool) Name() string { return ToolConfirmAppointment }

func (t *confirmAppointmentTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolConfirmAppointment,
		Description: "Called when the user confirms a callback on a specific date and time.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"date": {"type": "string", "description": "Date of the callback"},
				"time": {"type": "string", "description": "Time of the callback"}
			},
			"required": ["date", "time"],
			"additionalProperties": false
		}`),
	}
}

func (t *confirmAppointmentTool) Execute(_ context.Context, args map[string]any) (string, error) {
	date, _ := args["date"].(string)
	at, _ := args["time"].(string)
	t.logger.Info("confirming callback", "date", date, "time", at)
	return "reservation confirmed", nil
}

type answeringMachineTool struct {
	hangup Hanguper
	logger *slog.Logger
}

func (t *answeringMachineTool) Name() string { return ToolDetectedAnsweringMachine }

func (t *answeringMachineTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolDetectedAnsweringMachine,
		Description: "Called when the call reaches voicemail or an auto-attendant.",
		InputSchema: json.RawMessage(emptyObjectSchema),
	}
}

func (t *answeringMachineTool) Execute(ctx context.Context, _ map[string]any) (string, error) {
	t.logger.Info("answering machine detected, hanging up")
	if err := t.hangup.Hangup(ctx); err != nil {
		t.logger.Warn("error while hanging up", "error", err)
	}
	return "", nil
}
