package service

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/noah-isme/edu-center-api/internal/apperror"
)

const examQuestionSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id", "type", "prompt", "points"],
    "properties": {
      "id": {"type": "string", "minLength": 1},
      "type": {"enum": ["multiple_choice", "true_false", "short_answer", "essay"]},
      "prompt": {"type": "string", "minLength": 1},
      "points": {"type": "number", "minimum": 0},
      "options": {"type": "array", "items": {"type": "string"}, "minItems": 2},
      "answer": {}
    },
    "if": {"properties": {"type": {"const": "multiple_choice"}}},
    "then": {"required": ["options"]}
  }
}`

var (
	questionSchemaOnce sync.Once
	questionSchema     *jsonschema.Schema
	questionSchemaErr  error
)

func compiledQuestionSchema() (*jsonschema.Schema, error) {
	questionSchemaOnce.Do(func() {
		questionSchema, questionSchemaErr = jsonschema.CompileString("exam-questions.schema.json", examQuestionSchema)
	})
	return questionSchema, questionSchemaErr
}

// validateQuestions checks an exam question document. An empty document is allowed.
func validateQuestions(raw json.RawMessage) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	schema, err := compiledQuestionSchema()
	if err != nil {
		return apperror.Internal(err)
	}

	var document interface{}
	if err := json.Unmarshal(trimmed, &document); err != nil {
		return apperror.Wrap(apperror.KindValidation, err, "questions must be valid JSON")
	}
	if err := schema.Validate(document); err != nil {
		return apperror.Wrap(apperror.KindValidation, err, "questions do not match the question schema")
	}
	return nil
}

// redactAnswers strips answer keys so students never receive the key.
func redactAnswers(raw []byte) []byte {
	if len(raw) == 0 {
		return raw
	}
	var questions []map[string]interface{}
	if err := json.Unmarshal(raw, &questions); err != nil {
		return raw
	}
	for _, question := range questions {
		delete(question, "answer")
	}
	redacted, err := json.Marshal(questions)
	if err != nil {
		return raw
	}
	return redacted
}
