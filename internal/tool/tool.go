// Package tool defines the callable operations the model can request during
// a conversation, the per-tenant registry that assembles them, and the
// executor that runs a batch of requested calls.
//
// Tool invocation never returns an error to the control loop. Failures are
// folded into a {"status":"error","message":...} payload so the model can
// read the failure and adjust, instead of the whole turn dying.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

// Tool is one callable operation. ArgSchema describes the JSON argument
// object the model must produce.
type Tool struct {
	Name        string
	Description string
	ArgSchema   *jsonschema.Schema

	invoke func(ctx context.Context, args string) string
}

// Invoke runs the tool with the raw JSON argument string the model produced.
// The result is always a structured string, error payloads included.
func (t *Tool) Invoke(ctx context.Context, args string) string {
	return t.invoke(ctx, args)
}

// New builds a Tool whose argument schema is derived from In. The handler
// returns the observation text; any handler error, malformed argument JSON
// included, becomes an error payload.
func New[In any](name, description string, handler func(ctx context.Context, in In) (string, error)) (*Tool, error) {
	schema, err := jsonschema.For[In](nil)
	if err != nil {
		return nil, fmt.Errorf("schema for %s: %w", name, err)
	}

	return &Tool{
		Name:        name,
		Description: description,
		ArgSchema:   schema,
		invoke: func(ctx context.Context, args string) string {
			if strings.TrimSpace(args) == "" {
				args = "{}"
			}
			var in In
			if err := json.Unmarshal([]byte(args), &in); err != nil {
				return errorPayload(fmt.Errorf("invalid arguments: %w", err))
			}
			out, err := handler(ctx, in)
			if err != nil {
				return errorPayload(err)
			}
			return out
		},
	}, nil
}

// errorPayload renders err in the shape the model is prompted to understand.
func errorPayload(err error) string {
	b, marshalErr := json.Marshal(map[string]string{
		"status":  "error",
		"message": err.Error(),
	})
	if marshalErr != nil {
		return `{"status":"error","message":"internal error"}`
	}
	return string(b)
}
