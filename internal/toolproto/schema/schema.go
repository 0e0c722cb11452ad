// Package schema generates a tool's InputSchema from its Go argument
// struct via reflection, grounded on kadirpekel-hector's
// pkg/tool/functiontool/schema.go generateSchema helper. Supported
// jsonschema struct tags: "required", "description=...", "enum=a,enum=b".
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Generate reflects T's fields into a JSON Schema object suitable for
// toolproto.Executor.InputSchema, inlining all definitions and dropping
// the $schema/$id metadata an LLM tool-call prompt has no use for.
func Generate[T any]() json.RawMessage {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}
	reflected := reflector.Reflect(new(T))

	data, err := json.Marshal(reflected)
	if err != nil {
		// T is always a plain argument struct; a marshal failure here is a
		// programming error in the tool, not a runtime condition.
		panic(fmt.Sprintf("toolproto/schema: reflect %T: %v", *new(T), err))
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		panic(fmt.Sprintf("toolproto/schema: decode reflected schema for %T: %v", *new(T), err))
	}
	delete(raw, "$schema")
	delete(raw, "$id")

	out, err := json.Marshal(raw)
	if err != nil {
		panic(fmt.Sprintf("toolproto/schema: re-encode schema for %T: %v", *new(T), err))
	}
	return json.RawMessage(out)
}
