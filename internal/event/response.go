package event

import (
	"encoding/json"
	"io"
)

// Response is the JSON object a blocking hook writes to stdout.
type Response struct {
	Continue           bool                `json:"continue"`
	StopReason         string              `json:"stopReason,omitempty"`
	HookSpecificOutput *HookSpecificOutput `json:"hookSpecificOutput,omitempty"`
}

// HookSpecificOutput carries context text the host injects into the
// conversation.
type HookSpecificOutput struct {
	HookEventName     string `json:"hookEventName"`
	AdditionalContext string `json:"additionalContext,omitempty"`
}

// Continue is the response that lets the host proceed with nothing added.
// It doubles as the degraded response after any internal failure.
func Continue() Response {
	return Response{Continue: true}
}

// WithContext lets the host proceed and injects text under hostEvent.
func WithContext(hostEvent, text string) Response {
	return Response{
		Continue: true,
		HookSpecificOutput: &HookSpecificOutput{
			HookEventName:     hostEvent,
			AdditionalContext: text,
		},
	}
}

// Deny stops the host's turn. Only explicit policy decisions use it.
func Deny(reason string) Response {
	return Response{Continue: false, StopReason: reason}
}

// Write encodes r as a single JSON line.
func (r Response) Write(w io.Writer) error {
	return json.NewEncoder(w).Encode(r)
}
