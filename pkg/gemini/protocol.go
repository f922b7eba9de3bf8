// Package gemini implements the client side of the Gemini Live API
// (BidiGenerateContent) over WebSocket: the wire protocol types, the
// connection handshake, and a typed event stream for server frames.
package gemini

import (
	"encoding/json"
	"fmt"
)

// DefaultEndpoint is the BidiGenerateContent WebSocket endpoint.
const DefaultEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

// Part is one content part: text or inline binary data.
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

// InlineData carries base64-encoded media with a self-describing MIME type.
type InlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

// Content is a role-tagged list of parts.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// FunctionDeclaration describes one callable tool exposed to the model.
type FunctionDeclaration struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Tool groups function declarations.
type Tool struct {
	FunctionDeclarations []FunctionDeclaration `json:"functionDeclarations,omitempty"`
}

// PrebuiltVoiceConfig selects a named synthesis voice.
type PrebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

// VoiceConfig wraps the voice selection.
type VoiceConfig struct {
	PrebuiltVoiceConfig *PrebuiltVoiceConfig `json:"prebuiltVoiceConfig,omitempty"`
}

// SpeechConfig configures synthesis voice and language.
type SpeechConfig struct {
	VoiceConfig  *VoiceConfig `json:"voiceConfig,omitempty"`
	LanguageCode string       `json:"languageCode,omitempty"`
}

// GenerationConfig configures the live generation behavior.
type GenerationConfig struct {
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	SpeechConfig       *SpeechConfig `json:"speechConfig,omitempty"`
}

// Setup is the first client frame on a new connection.
type Setup struct {
	Model                    string            `json:"model"`
	GenerationConfig         *GenerationConfig `json:"generationConfig,omitempty"`
	SystemInstruction        *Content          `json:"systemInstruction,omitempty"`
	Tools                    []Tool            `json:"tools,omitempty"`
	InputAudioTranscription  *struct{}         `json:"inputAudioTranscription,omitempty"`
	OutputAudioTranscription *struct{}         `json:"outputAudioTranscription,omitempty"`
}

// MediaChunk is one block of streamed input media.
type MediaChunk struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

// RealtimeInput streams captured media to the model.
type RealtimeInput struct {
	MediaChunks []MediaChunk `json:"mediaChunks"`
}

// FunctionCall is a tool invocation requested by the model.
type FunctionCall struct {
	ID   string          `json:"id,omitempty"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// FunctionResponse acknowledges a tool invocation.
type FunctionResponse struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// ToolResponse carries function responses back to the model.
type ToolResponse struct {
	FunctionResponses []FunctionResponse `json:"functionResponses"`
}

// clientMessage is the envelope for all outbound frames.
type clientMessage struct {
	Setup         *Setup         `json:"setup,omitempty"`
	RealtimeInput *RealtimeInput `json:"realtimeInput,omitempty"`
	ToolResponse  *ToolResponse  `json:"toolResponse,omitempty"`
}

// Transcription is a streamed transcription fragment.
type Transcription struct {
	Text string `json:"text"`
}

// ServerContent is the model's streamed conversational output.
type ServerContent struct {
	ModelTurn           *Content       `json:"modelTurn,omitempty"`
	TurnComplete        bool           `json:"turnComplete,omitempty"`
	Interrupted         bool           `json:"interrupted,omitempty"`
	InputTranscription  *Transcription `json:"inputTranscription,omitempty"`
	OutputTranscription *Transcription `json:"outputTranscription,omitempty"`
}

// ToolCall is a batch of function calls from the model.
type ToolCall struct {
	FunctionCalls []FunctionCall `json:"functionCalls"`
}

// serverMessage is the envelope for all inbound frames.
type serverMessage struct {
	SetupComplete *struct{}      `json:"setupComplete,omitempty"`
	ServerContent *ServerContent `json:"serverContent,omitempty"`
	ToolCall      *ToolCall      `json:"toolCall,omitempty"`
}

// DecodeError reports a server frame that could not be parsed.
type DecodeError struct {
	Frame []byte
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("gemini: decode server frame: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ServerEventKind discriminates decoded server events.
type ServerEventKind int

const (
	// EventSetupComplete acknowledges the setup frame.
	EventSetupComplete ServerEventKind = iota
	// EventAudio carries one synthesized audio fragment.
	EventAudio
	// EventInputTranscription carries a user speech transcription fragment.
	EventInputTranscription
	// EventOutputTranscription carries a model speech transcription fragment.
	EventOutputTranscription
	// EventTurnComplete marks the end of a model turn.
	EventTurnComplete
	// EventInterrupted signals that in-flight model audio was cancelled.
	EventInterrupted
	// EventToolCall carries function calls from the model.
	EventToolCall
)

// String returns a human-readable event kind.
func (k ServerEventKind) String() string {
	switch k {
	case EventSetupComplete:
		return "setup_complete"
	case EventAudio:
		return "audio"
	case EventInputTranscription:
		return "input_transcription"
	case EventOutputTranscription:
		return "output_transcription"
	case EventTurnComplete:
		return "turn_complete"
	case EventInterrupted:
		return "interrupted"
	case EventToolCall:
		return "tool_call"
	default:
		return "unknown"
	}
}

// ServerEvent is one decoded unit of server output. A single wire frame
// can expand into several events; they are delivered in wire order.
type ServerEvent struct {
	Kind ServerEventKind

	// Audio holds the inline audio payload for EventAudio.
	Audio *InlineData

	// Text holds the fragment for transcription events.
	Text string

	// Calls holds the function calls for EventToolCall.
	Calls []FunctionCall
}

// decodeServerFrame expands one wire frame into ordered server events.
// Frames with no recognizable payload decode to an empty slice rather
// than an error so unknown message types pass through harmlessly.
func decodeServerFrame(data []byte) ([]ServerEvent, error) {
	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, &DecodeError{Frame: data, Err: err}
	}

	var events []ServerEvent

	if msg.SetupComplete != nil {
		events = append(events, ServerEvent{Kind: EventSetupComplete})
	}

	if sc := msg.ServerContent; sc != nil {
		if sc.Interrupted {
			events = append(events, ServerEvent{Kind: EventInterrupted})
		}
		if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
			events = append(events, ServerEvent{
				Kind: EventInputTranscription,
				Text: sc.InputTranscription.Text,
			})
		}
		if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
			events = append(events, ServerEvent{
				Kind: EventOutputTranscription,
				Text: sc.OutputTranscription.Text,
			})
		}
		if sc.ModelTurn != nil {
			for i := range sc.ModelTurn.Parts {
				if inline := sc.ModelTurn.Parts[i].InlineData; inline != nil && inline.Data != "" {
					events = append(events, ServerEvent{Kind: EventAudio, Audio: inline})
				}
			}
		}
		if sc.TurnComplete {
			events = append(events, ServerEvent{Kind: EventTurnComplete})
		}
	}

	if msg.ToolCall != nil && len(msg.ToolCall.FunctionCalls) > 0 {
		events = append(events, ServerEvent{
			Kind:  EventToolCall,
			Calls: msg.ToolCall.FunctionCalls,
		})
	}

	return events, nil
}
