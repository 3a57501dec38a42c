package nlp

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// intentSchemaJSON constrains the LLM's JSON-mode output. The model is
// untrusted: anything that does not conform is rejected before the payload
// can influence the pipeline, so a hallucinated action name or a confidence
// of 7 never reaches the disambiguation engine.
const intentSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["action", "confidence"],
  "additionalProperties": false,
  "properties": {
    "action": {
      "type": "string",
      "enum": ["add", "remove", "search", "status", "unknown"]
    },
    "titles": {
      "type": "array",
      "items": {"type": "string", "minLength": 1},
      "maxItems": 5
    },
    "media_kind": {
      "type": "string",
      "enum": ["movie", "show", ""]
    },
    "year": {
      "type": "integer",
      "minimum": 1880,
      "maximum": 2100
    },
    "confidence": {
      "type": "number",
      "minimum": 0,
      "maximum": 1
    },
    "reply": {"type": "string"}
  }
}`

var intentSchema = jsonschema.MustCompileString("intent.json", intentSchemaJSON)

// validateIntentPayload checks the decoded LLM payload against the intent
// schema. The argument is the result of json.Unmarshal into interface{}.
func validateIntentPayload(doc interface{}) error {
	if err := intentSchema.Validate(doc); err != nil {
		// The validator's multi-line output is unhelpful in logs; keep the
		// first line, which names the failing keyword and location.
		msg := err.Error()
		if i := strings.IndexByte(msg, '\n'); i > 0 {
			msg = msg[:i]
		}
		return fmt.Errorf("%w: %s", ErrMalformedOutput, msg)
	}
	return nil
}
