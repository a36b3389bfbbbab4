package wordgame

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// wordSetSchemaJSON describes the array the completion service is asked to produce.
// Membership of "correct" in "options" cannot be expressed here and is checked in Go.
const wordSetSchemaJSON = `{
	"type": "array",
	"minItems": 10,
	"maxItems": 10,
	"items": {
		"type": "object",
		"properties": {
			"word": {"type": "string", "minLength": 1, "pattern": "\\S"},
			"options": {
				"type": "array",
				"items": {"type": "string", "minLength": 1, "pattern": "\\S"},
				"minItems": 3,
				"maxItems": 3,
				"uniqueItems": true
			},
			"correct": {"type": "string", "minLength": 1, "pattern": "\\S"}
		},
		"required": ["word", "options", "correct"],
		"additionalProperties": false
	}
}`

var wordSetSchema = mustSchema(wordSetSchemaJSON)

func mustSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("wordgame: invalid word set schema: %v", err))
	}
	return schema
}
