package process

import (
	"fmt"
	"strconv"
	"strings"

	api "github.com/mohitkumar/humanflow/api/v1"
	"github.com/mohitkumar/humanflow/input"
	"github.com/mohitkumar/humanflow/model"
	"github.com/oliveagle/jsonpath"
)

// DEFAULT_WHEN marks the edge an exclusive gateway takes when no other edge
// matched.
const DEFAULT_WHEN string = "default"

// exclusiveGateway takes exactly one edge. With an expression, edges are
// chosen by comparing the expression value with their when; otherwise by
// their guards.
type exclusiveGateway struct {
	*baseNode
	path string
}

func newExclusiveGateway(def model.NodeDef) *exclusiveGateway {
	return &exclusiveGateway{baseNode: newBaseNode(def)}
}

func (g *exclusiveGateway) Validate(registry *input.Registry) error {
	if len(g.def.Edges) == 0 {
		return fmt.Errorf("gateway %s should have at least one edge", g.def.Id)
	}
	if g.def.Expression != "" {
		path := strings.TrimSpace(g.def.Expression)
		if strings.HasPrefix(path, "{") {
			if !strings.HasSuffix(path, "}") {
				return fmt.Errorf("gateway %s: expression should be enclosed in {}", g.def.Id)
			}
			path = strings.TrimSuffix(strings.TrimPrefix(path, "{"), "}")
		}
		if _, err := jsonpath.Compile(path); err != nil {
			return fmt.Errorf("gateway %s: expression should be a valid jsonpath expression", g.def.Id)
		}
		g.path = path
	}
	defaults := 0
	for _, edge := range g.def.Edges {
		if edge.When == DEFAULT_WHEN {
			defaults++
		}
		if edge.When != "" && g.path == "" {
			return fmt.Errorf("gateway %s: edge to %s has when but gateway has no expression", g.def.Id, edge.To)
		}
	}
	if defaults > 1 {
		return fmt.Errorf("gateway %s has more than one default edge", g.def.Id)
	}
	return g.baseNode.Validate(registry)
}

func (g *exclusiveGateway) next(doc map[string]any) ([]model.EdgeDef, error) {
	edges, err := g.matches(doc)
	if err != nil {
		return nil, err
	}
	if g.path != "" {
		value, err := g.evaluate(doc)
		if err != nil {
			return nil, err
		}
		var chosen, fallback []model.EdgeDef
		for _, edge := range edges {
			switch edge.When {
			case DEFAULT_WHEN:
				fallback = append(fallback, edge)
			case "", value:
				chosen = append(chosen, edge)
			}
		}
		if len(chosen) == 0 {
			chosen = fallback
		}
		edges = chosen
	}
	return exactlyOne(g.def.Id, edges)
}

func (g *exclusiveGateway) evaluate(doc map[string]any) (string, error) {
	value, err := jsonpath.JsonPathLookup(doc, g.path)
	if err != nil {
		return "", api.NewGraphError(api.CODE_GRAPH_GUARD, g.def.Id, "error evaluating %s: %s", g.path, err.Error())
	}
	switch v := value.(type) {
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case nil:
		return "", nil
	}
	return fmt.Sprintf("%v", value), nil
}

// parallelGateway follows every matching edge.
type parallelGateway struct {
	*baseNode
}

func newParallelGateway(def model.NodeDef) *parallelGateway {
	return &parallelGateway{newBaseNode(def)}
}

func (g *parallelGateway) Validate(registry *input.Registry) error {
	if len(g.def.Edges) == 0 {
		return fmt.Errorf("gateway %s should have at least one edge", g.def.Id)
	}
	return g.baseNode.Validate(registry)
}

func (g *parallelGateway) next(doc map[string]any) ([]model.EdgeDef, error) {
	edges, err := g.matches(doc)
	if err != nil {
		return nil, err
	}
	if len(edges) == 0 {
		return nil, api.NewGraphError(api.CODE_GRAPH_GUARD, g.def.Id, "no edge of gateway %s matched", g.def.Id)
	}
	return edges, nil
}

func exactlyOne(nodeId string, edges []model.EdgeDef) ([]model.EdgeDef, error) {
	switch len(edges) {
	case 1:
		return edges, nil
	case 0:
		return nil, api.NewGraphError(api.CODE_GRAPH_GUARD, nodeId, "no edge of %s matched", nodeId)
	}
	return nil, api.NewGraphError(api.CODE_GRAPH_GUARD, nodeId, "%d edges of %s matched, expected one", len(edges), nodeId)
}
