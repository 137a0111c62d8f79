package server

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"
)

// ChatRequest is the body of POST /api/chat
type ChatRequest struct {
	Query     string `json:"query" jsonschema:"minLength=1,description=The user's message"`
	SessionID string `json:"sessionId,omitempty" jsonschema:"description=Conversation id; a new one is issued when omitted"`
}

// ChatResponse is the body of a successful POST /api/chat
type ChatResponse struct {
	Answer       string `json:"answer"`
	SessionID    string `json:"sessionId"`
	MessageCount int    `json:"messageCount"`
	NewSession   bool   `json:"newSession"`
}

// RequestValidationError lists every schema violation in a request body
type RequestValidationError struct {
	Errors []string
}

func (e *RequestValidationError) Error() string {
	return "invalid request: " + strings.Join(e.Errors, "; ")
}

// reflectSchema builds a JSON schema for v's type
func reflectSchema(v any) (*gojsonschema.Schema, error) {
	r := &jsonschema.Reflector{
		AllowAdditionalProperties: true,
		DoNotReference:            true,
		ExpandedStruct:            true,
	}
	s := r.Reflect(v)
	// gojsonschema predates draft 2020-12; drop the $schema marker
	s.Version = ""

	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request schema: %w", err)
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to compile request schema: %w", err)
	}
	return schema, nil
}

// validateBody checks body against schema
func validateBody(schema *gojsonschema.Schema, body []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return &RequestValidationError{Errors: []string{"body is not valid JSON"}}
	}
	if result.Valid() {
		return nil
	}

	errs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		errs = append(errs, e.String())
	}
	return &RequestValidationError{Errors: errs}
}
