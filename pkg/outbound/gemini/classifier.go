// Package gemini implements the utterance classifier on Google's Gemini
// API. The model only interprets what the callee said; control flow stays
// in the conversation controller.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/outdial-ai/outdial/pkg/outbound"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

// Classifier labels utterances with one intent per turn and surfaces any
// function calls the model makes. Stateless across calls.
type Classifier struct {
	client *genai.Client
	model  string
	tools  []outbound.ToolDefinition
	logger *slog.Logger
}

// New creates a classifier. tools are declared to the model so it can
// request call-control actions (answering-machine detection in
// particular) on its own.
func New(ctx context.Context, apiKey, model string, tools []outbound.ToolDefinition, logger *slog.Logger) (*Classifier, error) {
	if apiKey == "" {
		return nil, outbound.NewConfigurationError("GEMINI_API_KEY is not set")
	}
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, outbound.NewClassifierError("create genai client", err)
	}
	return &Classifier{client: client, model: model, tools: tools, logger: logger}, nil
}

// Classify labels one utterance given the current script state.
func (c *Classifier) Classify(ctx context.Context, state outbound.CallState, transcript string) (outbound.Classification, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt(state), genai.RoleUser),
		Temperature:       genai.Ptr[float32](0),
	}
	if decls := c.functionDeclarations(); len(decls) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(transcript), config)
	if err != nil {
		return outbound.Classification{}, outbound.NewClassifierError("generate content", err)
	}

	cls := outbound.Classification{Intent: outbound.IntentUnknown}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return cls, nil
	}

	for _, part := range resp.Candidates[0].Content.Parts {
		if part.FunctionCall != nil {
			args, err := json.Marshal(part.FunctionCall.Args)
			if err != nil {
				c.logger.Warn("unmarshalable function call args", "tool", part.FunctionCall.Name, "error", err)
				continue
			}
			cls.ToolCalls = append(cls.ToolCalls, outbound.ToolCall{Name: part.FunctionCall.Name, Args: args})
			continue
		}
		if part.Text != "" && cls.Intent == outbound.IntentUnknown {
			cls.Intent = parseLabel(part.Text)
		}
	}
	return cls, nil
}

func (c *Classifier) functionDeclarations() []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(c.tools))
	for _, def := range c.tools {
		schema, err := schemaFromJSON(def.InputSchema)
		if err != nil {
			c.logger.Warn("skipping tool with unconvertible schema", "tool", def.Name, "error", err)
			continue
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  schema,
		})
	}
	return decls
}

// schemaFromJSON converts a JSON Schema object declaration into the
// genai schema type. Only the subset the call-control tools use (flat
// object with string properties) is supported.
func schemaFromJSON(raw json.RawMessage) (*genai.Schema, error) {
	var decl struct {
		Type       string `json:"type"`
		Properties map[string]struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"properties"`
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(raw, &decl); err != nil {
		return nil, fmt.Errorf("decode input schema: %w", err)
	}
	if decl.Type != "object" {
		return nil, fmt.Errorf("unsupported schema type %q", decl.Type)
	}

	out := &genai.Schema{Type: genai.TypeObject, Required: decl.Required}
	if len(decl.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(decl.Properties))
		for name, prop := range decl.Properties {
			if prop.Type != "string" {
				return nil, fmt.Errorf("unsupported property type %q for %s", prop.Type, name)
			}
			out.Properties[name] = &genai.Schema{Type: genai.TypeString, Description: prop.Description}
		}
	}
	return out, nil
}

func parseLabel(text string) outbound.Intent {
	label := strings.ToLower(strings.TrimSpace(text))
	label = strings.Trim(label, "\"'.` ")
	return outbound.IntentFromLabel(label)
}

func systemPrompt(state outbound.CallState) string {
	var b strings.Builder
	b.WriteString("You classify one utterance from a phone callee during an outbound ")
	b.WriteString("real-estate qualification call. The agent just asked the question for the ")
	b.WriteString(state.String())
	b.WriteString(" step. Respond with exactly one label from: affirm, deny, answer, vague, ")
	b.WriteString("voicemail, hostile, busy, which_property, already_listed, who_are_you, ")
	b.WriteString("number_source, off_script.\n")
	b.WriteString("Rules:\n")
	b.WriteString("- voicemail: any automated voicemail, AI assistant, or auto-attendant, e.g. ")
	b.WriteString(`"I am their assistant", "Google Assistant", "I'll take a message", `)
	b.WriteString(`"this is a voicemail", "can't take your call right now", "please leave your name and number".` + "\n")
	b.WriteString(`- hostile: "take me off your list", "I'm not interested", or a rude response.` + "\n")
	b.WriteString(`- busy: "I can't talk now", "I'm at work", "call me later", "I'm busy".` + "\n")
	b.WriteString(`- which_property: asking which property the call is about.` + "\n")
	b.WriteString(`- already_listed: the property is already listed or on the market.` + "\n")
	b.WriteString(`- who_are_you: "who are you", "which company are you with", "are you an agent or investor".` + "\n")
	b.WriteString(`- number_source: "how did you get my number", "where did you get my information".` + "\n")
	b.WriteString("- off_script: valuation requests, offer amounts, process questions.\n")
	b.WriteString(`- vague: a non-answer like "yes", "maybe", "I don't know" where the question needed substance.` + "\n")
	b.WriteString("- answer: a substantive answer to the question asked.\n")
	b.WriteString("- affirm / deny: a clear yes-type or no-type reply.\n")
	b.WriteString("If the utterance is clearly voicemail, call the detected_answering_machine function instead of replying.")
	return b.String()
}
