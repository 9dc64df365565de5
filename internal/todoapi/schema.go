package todoapi

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// todoSchema is the shape of a stored todo: all four fields required.
const todoSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id", "userId", "title", "completed"],
  "properties": {
    "id":        {"type": "integer", "minimum": 1},
    "userId":    {"type": "integer", "minimum": 1},
    "title":     {"type": "string"},
    "completed": {"type": "boolean"}
  }
}`

// createdSchema is the echo of a create: only the assigned id is certain.
const createdSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id"],
  "properties": {
    "id": {"type": "integer"}
  }
}`

var (
	todoLoader    = gojsonschema.NewStringLoader(todoSchema)
	createdLoader = gojsonschema.NewStringLoader(createdSchema)
	listLoader    = gojsonschema.NewStringLoader(`{"type": "array", "items": ` + todoSchema + `}`)
)

// SchemaError lists every violation found in a document.
type SchemaError struct {
	Problems []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema validation failed: %s", strings.Join(e.Problems, "; "))
}

func validate(schema gojsonschema.JSONLoader, doc []byte) error {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}
	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return &SchemaError{Problems: problems}
}

// ValidateTodo checks one stored todo document.
func ValidateTodo(doc []byte) error { return validate(todoLoader, doc) }

// ValidateTodoList checks a list document item by item.
func ValidateTodoList(doc []byte) error { return validate(listLoader, doc) }

// ValidateCreated checks the answer of a create.
func ValidateCreated(doc []byte) error { return validate(createdLoader, doc) }

// ValidateValue marshals v and checks it as a stored todo.
func ValidateValue(v any) error {
	doc, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return ValidateTodo(doc)
}
