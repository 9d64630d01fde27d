package messages

import (
	"encoding/json"
	"fmt"
)

// Bus deliveries arrive either as a plain JSON document or wrapped in a
// CloudEvents-style envelope. The two shapes are told apart by the "type"
// discriminator: a non-empty type marks an envelope carrying the document
// under "data".

// EventTypeFlowResponse is the envelope type for plant responses.
const EventTypeFlowResponse = "com.dispatch.flowres"

// EventTypeFlowRequest is the envelope type for flow requests.
const EventTypeFlowRequest = "com.dispatch.flowint"

// EventTypeBrokerDefault is the generic type some brokers stamp on every
// envelope instead of a payload-specific one.
const EventTypeBrokerDefault = "com.dapr.event.sent"

// Envelope is the CloudEvents-style wrapper some bus components add around a
// payload.
type Envelope struct {
	ID   string          `json:"id,omitempty"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type discriminator struct {
	Type string `json:"type"`
}

// unwrap returns the inner document when b is an envelope, or b unchanged
// when it is a plain document.
func unwrap(b []byte, wantType string) ([]byte, error) {
	var disc discriminator
	if err := json.Unmarshal(b, &disc); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if disc.Type == "" {
		return b, nil
	}
	if disc.Type != wantType && disc.Type != EventTypeBrokerDefault {
		return nil, fmt.Errorf("unexpected event type %q, want %q", disc.Type, wantType)
	}
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if len(env.Data) == 0 {
		return nil, fmt.Errorf("envelope %q has no data", disc.Type)
	}
	return env.Data, nil
}

// DecodeResponse decodes a plant response from a bus delivery, accepting both
// plain and enveloped shapes.
func DecodeResponse(b []byte) (Response, error) {
	inner, err := unwrap(b, EventTypeFlowResponse)
	if err != nil {
		return Response{}, err
	}
	var resp Response
	if err := json.Unmarshal(inner, &resp); err != nil {
		return Response{}, fmt.Errorf("decode flow response: %w", err)
	}
	return resp, nil
}

// DecodeRequest decodes a flow request from a bus delivery, accepting both
// plain and enveloped shapes.
func DecodeRequest(b []byte) (Request, error) {
	inner, err := unwrap(b, EventTypeFlowRequest)
	if err != nil {
		return Request{}, err
	}
	var req Request
	if err := json.Unmarshal(inner, &req); err != nil {
		return Request{}, fmt.Errorf("decode flow request: %w", err)
	}
	return req, nil
}
