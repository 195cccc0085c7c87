package input

import (
	"fmt"

	"github.com/mohitkumar/humanflow/model"
)

const TYPE_FILE string = "file"

const FILE_SUFFIX string = ":file"

var fileFields = []string{"id", "mime", "name", "type"}

// fileValidator accepts the descriptor a file provider hands back after an
// upload, tagged with the provider sentinel.
type fileValidator struct {
	name     string
	sentinel string
}

func newFileValidator(def model.InputDef) (Validator, error) {
	if def.Provider == "" {
		return nil, fmt.Errorf("file input needs a provider")
	}
	return &fileValidator{name: def.Name, sentinel: def.Provider + FILE_SUFFIX}, nil
}

func (v *fileValidator) Validate(raw any) (any, string, error) {
	doc, ok := raw.(map[string]any)
	if !ok {
		return nil, "", invalid("'%s' must be a file descriptor, got %s", v.name, typeName(raw))
	}
	for _, field := range fileFields {
		if _, ok := doc[field]; !ok {
			return nil, "", invalid("'%s' file descriptor has no %s", v.name, field)
		}
	}
	if len(doc) != len(fileFields) {
		return nil, "", invalid("'%s' file descriptor has unexpected fields", v.name)
	}
	if tag, _ := doc["type"].(string); tag != v.sentinel {
		return nil, "", invalid("'%s' file must come from %s", v.name, v.sentinel)
	}
	if _, ok := doc["name"].(string); !ok {
		return nil, "", invalid("'%s' file name must be a string", v.name)
	}
	if _, ok := doc["mime"].(string); !ok {
		return nil, "", invalid("'%s' file mime must be a string", v.name)
	}
	return doc, v.MakeCaption(doc), nil
}

func (v *fileValidator) MakeCaption(value any) string {
	doc, _ := value.(map[string]any)
	name, _ := doc["name"].(string)
	return name
}
