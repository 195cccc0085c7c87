package process

import (
	"encoding/json"
	"fmt"

	"github.com/dop251/goja"
	api "github.com/mohitkumar/humanflow/api/v1"
)

// guard is a javascript boolean expression over the state document, bound
// to $.
type guard struct {
	nodeId     string
	expression string
	program    *goja.Program
}

func compileGuard(nodeId string, edge int, expression string) (*guard, error) {
	program, err := goja.Compile(fmt.Sprintf("%s.edge.%d", nodeId, edge), expression, false)
	if err != nil {
		return nil, fmt.Errorf("node %s edge %d: invalid guard: %w", nodeId, edge, err)
	}
	return &guard{nodeId: nodeId, expression: expression, program: program}, nil
}

// plain turns doc into the json shaped values scripts expect.
func plain(doc map[string]any) (map[string]any, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any)
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (g *guard) eval(doc map[string]any) (bool, error) {
	data, err := plain(doc)
	if err != nil {
		return false, err
	}
	vm := goja.New()
	if err := vm.Set("$", data); err != nil {
		return false, err
	}
	val, err := vm.RunProgram(g.program)
	if err != nil {
		return false, api.NewGraphError(api.CODE_GRAPH_GUARD, g.nodeId, "error evaluating guard %s: %s", g.expression, err.Error())
	}
	return val.ToBoolean(), nil
}
