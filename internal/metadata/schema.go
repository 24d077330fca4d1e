package metadata

import (
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// recordSchema describes the object a model must answer with. Author and
// pubdate may be omitted; extra keys are tolerated.
const recordSchema = `{
  "type": "object",
  "properties": {
    "author":  {"type": "string"},
    "title":   {"type": "string"},
    "pubdate": {"type": ["string", "number"]}
  },
  "required": ["title"]
}`

var compiledSchema = jsonschema.MustCompileString("record.json", recordSchema)
