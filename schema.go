package peac

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// claimsSchemaJSON is the embedded JSON Schema for the decoded receipt
// payload map, compiled once at first use. It backs claims.schema_unverified
// (§4.9 check 4): a schema-shape pass over the decoded payload, independent
// of (and ahead of) the hand-written structural validators in validate.go,
// which encode protocol-specific rules (currency regex, purpose vocabulary,
// payment/amt binding) no generic schema vocabulary expresses cleanly.
const claimsSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["iss", "aud", "iat", "rid", "amt", "cur", "payment"],
  "properties": {
    "iss": {"type": "string", "pattern": "^https://"},
    "aud": {"type": "string", "pattern": "^https://"},
    "iat": {"type": "integer", "minimum": 0},
    "rid": {"type": "string", "minLength": 1},
    "amt": {"type": "integer", "minimum": 0},
    "cur": {"type": "string", "pattern": "^[A-Z]{3}$"},
    "exp": {"type": "integer", "minimum": 0},
    "purpose_declared": {"type": "array", "items": {"type": "string"}},
    "purpose_enforced": {"type": "string"},
    "purpose_reason": {"type": "string"},
    "subject": {
      "type": "object",
      "required": ["uri"],
      "properties": {"uri": {"type": "string", "pattern": "^https://"}}
    },
    "payment": {
      "type": "object",
      "required": ["rail", "reference", "amount", "currency"],
      "properties": {
        "rail": {"type": "string", "minLength": 1},
        "reference": {"type": "string", "minLength": 1},
        "amount": {"type": "integer", "minimum": 0},
        "currency": {"type": "string", "pattern": "^[A-Z]{3}$"},
        "asset": {"type": "string"},
        "env": {"type": "string", "enum": ["live", "test"]}
      }
    },
    "ext": {"type": "object"}
  }
}`

const claimsSchemaURL = "https://peacframework.dev/schemas/receipt-claims.json"

var (
	claimsSchemaOnce    sync.Once
	claimsSchemaCompile *jsonschema.Schema
	claimsSchemaErr     error
)

// compiledClaimsSchema compiles claimsSchemaJSON on first use, following the
// compile-once-resource-URL pattern used throughout the corpus for
// santhosh-tekuri/jsonschema (NewCompiler + AddResource + Compile against a
// synthetic schema URL, not a filesystem path).
func compiledClaimsSchema() (*jsonschema.Schema, error) {
	claimsSchemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(claimsSchemaURL, strings.NewReader(claimsSchemaJSON)); err != nil {
			claimsSchemaErr = fmt.Errorf("peac: loading claims schema: %w", err)
			return
		}
		schema, err := c.Compile(claimsSchemaURL)
		if err != nil {
			claimsSchemaErr = fmt.Errorf("peac: compiling claims schema: %w", err)
			return
		}
		claimsSchemaCompile = schema
	})
	return claimsSchemaCompile, claimsSchemaErr
}

// validateClaimsSchemaShape runs the generic JSON Schema pass over the raw
// decoded payload bytes, ahead of (and independent from) the Go struct
// decode that already produced a Claims value. This catches shape defects
// (a wrong JSON type, a missing required field) that a lenient
// encoding/json.Unmarshal into a typed struct can silently zero-value past.
func validateClaimsSchemaShape(payload []byte) error {
	schema, err := compiledClaimsSchema()
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("peac: decoding payload for schema check: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("peac: claims schema validation failed: %w", err)
	}
	return nil
}
