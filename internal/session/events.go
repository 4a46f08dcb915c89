package session

import "encoding/json"

// EventType is the closed set of session protocol events. Inbound:
// turn_start, interim_transcript, turn_finalized, tool_call_request.
// Outbound: everything else.
type EventType string

const (
	EventTurnStart         EventType = "turn_start"
	EventInterimTranscript EventType = "interim_transcript"
	EventTurnFinalized     EventType = "turn_finalized"
	EventToolCallRequest   EventType = "tool_call_request"

	EventToolCallResult     EventType = "tool_call_result"
	EventResponseTextDelta  EventType = "response_text_delta"
	EventResponseAudioDelta EventType = "response_audio_delta"
	EventResponseDone       EventType = "response_done"
	EventState              EventType = "state"
	EventError              EventType = "error"
)

// Event is the wire representation of one session protocol message.
// Fields are populated per event type; unused fields are omitted.
type Event struct {
	Type       EventType       `json:"type"`
	Transcript string          `json:"transcript,omitempty"`
	IsVoice    bool            `json:"is_voice,omitempty"`
	CallID     string          `json:"call_id,omitempty"`
	ToolName   string          `json:"tool_name,omitempty"`
	ToolArgs   json.RawMessage `json:"tool_args,omitempty"`
	Output     string          `json:"output,omitempty"`
	Delta      string          `json:"delta,omitempty"`
	Audio      []byte          `json:"audio,omitempty"`
	State      string          `json:"state,omitempty"`
	Message    string          `json:"message,omitempty"`
}

// ToolSearchManual is the single tool exposed to the conversational
// model.
const ToolSearchManual = "search_manual"

// Schema defaults for search_manual arguments left unset by the model.
const (
	DefaultToolK      = 8
	DefaultToolMinSim = 0.35
)

// SearchManualArgs are the parameters of the search_manual tool. Zero
// K/MinSim mean the argument was not supplied; the orchestrator fills
// those from the schema defaults or the voice profile.
type SearchManualArgs struct {
	Query   string  `json:"query"`
	K       int     `json:"k"`
	MinSim  float64 `json:"minSim"`
	IsVoice bool    `json:"isVoice"`
}

// ParseSearchManualArgs decodes tool arguments without filling
// defaults, so explicitly supplied values stay distinguishable from
// absent ones.
func ParseSearchManualArgs(raw json.RawMessage) (SearchManualArgs, error) {
	var args SearchManualArgs
	if len(raw) == 0 {
		return args, nil
	}
	err := json.Unmarshal(raw, &args)
	return args, err
}

// ToolSchema returns the JSON schema advertised for search_manual.
func ToolSchema() map[string]any {
	return map[string]any{
		"name":        ToolSearchManual,
		"description": "Search the active factory manual for evidence relevant to the operator's question.",
		"parameters": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query":   map[string]any{"type": "string"},
				"k":       map[string]any{"type": "integer", "default": DefaultToolK},
				"minSim":  map[string]any{"type": "number", "default": DefaultToolMinSim},
				"isVoice": map[string]any{"type": "boolean", "default": false},
			},
			"required": []string{"query"},
		},
	}
}
