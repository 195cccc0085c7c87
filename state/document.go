package state

import (
	"encoding/json"

	"github.com/mohitkumar/humanflow/model"
)

// Document renders the parts of an execution that gateway expressions and
// guards can read:
//
//	{"execution": {...}, "nodes": {id: state}, "forms": {ref: {input: value}}}
//
// For forms submitted several times the last valid value wins.
func Document(exec *model.Execution) (map[string]any, error) {
	forms := make(map[string]map[string]any)
	Walk(exec.State, func(leaf *Leaf) bool {
		if !leaf.Valid() {
			return true
		}
		values, ok := forms[leaf.Form.Ref]
		if !ok {
			values = make(map[string]any)
			forms[leaf.Form.Ref] = values
		}
		values[leaf.InputName] = leaf.Input.Value
		return true
	})
	nodes := make(map[string]string, exec.State.Len())
	for _, node := range exec.State.Values() {
		nodes[node.Id] = string(node.State)
	}
	doc := map[string]any{
		"execution": map[string]any{
			"id":          exec.Id,
			"process":     exec.ProcessName,
			"name":        exec.Name,
			"description": exec.Description,
		},
		"nodes": nodes,
		"forms": forms,
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
