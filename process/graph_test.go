package process

import (
	"testing"

	api "github.com/mohitkumar/humanflow/api/v1"
	"github.com/mohitkumar/humanflow/input"
	"github.com/mohitkumar/humanflow/model"
	"github.com/stretchr/testify/require"
)

func decisionProcess() model.Process {
	return model.Process{
		Name:      "decision",
		StartNode: "request",
		Nodes: []model.NodeDef{
			{
				Id:   "request",
				Kind: model.NODE_KIND_ACTION,
				Forms: []model.FormDef{{
					Ref: "request-form",
					Inputs: []model.InputDef{
						{Name: "amount", Type: input.TYPE_TEXT, Required: true},
						{Name: "kind", Type: input.TYPE_RADIO, Options: []model.Option{{Value: "travel"}, {Value: "office"}}},
					},
				}},
				Edges: []model.EdgeDef{{To: "route"}},
			},
			{
				Id:         "route",
				Kind:       model.NODE_KIND_EXCLUSIVE_GATEWAY,
				Expression: "{$.forms.request-form.kind}",
				Edges: []model.EdgeDef{
					{To: "travel-approval", When: "travel"},
					{To: "split", When: "default"},
				},
			},
			{
				Id:    "travel-approval",
				Kind:  model.NODE_KIND_VALIDATION,
				Deps:  []string{"request-form.amount"},
				Edges: []model.EdgeDef{{To: "split"}},
			},
			{
				Id:   "split",
				Kind: model.NODE_KIND_PARALLEL_GATEWAY,
				Edges: []model.EdgeDef{
					{To: "finance", Guard: "Number($.forms['request-form'].amount) > 100"},
					{To: "end"},
				},
			},
			{Id: "finance", Kind: model.NODE_KIND_ACTION, Actors: []string{"ana"}, Edges: []model.EdgeDef{{To: "end"}}},
			{Id: "end", Kind: model.NODE_KIND_END},
		},
	}
}

func executionWith(kind string, amount string) *model.Execution {
	tree := model.NewStateTree()
	n := model.NewNodeState("request", model.NODE_KIND_ACTION, "request")
	n.State = model.STATE_VALID
	f := model.NewFormState("request-form")
	f.Inputs.Set("amount", &model.InputState{Name: "amount", Value: amount, State: model.STATE_VALID})
	f.Inputs.Set("kind", &model.InputState{Name: "kind", Value: kind, State: model.STATE_VALID})
	n.Actors.Set("juan", model.NewActorState(model.User{Identifier: "juan"}, []*model.FormState{f}))
	tree.Set("request", n)
	return &model.Execution{Id: "e1", ProcessName: "decision", State: tree}
}

func ids(nodes []Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.GetId())
	}
	return out
}

func TestGraphOutbound(t *testing.T) {
	g, err := NewGraph(decisionProcess(), input.NewRegistry())
	require.NoError(t, err)
	require.Equal(t, "request", g.StartNode().GetId())
	require.True(t, g.StartNode().IsHuman())

	for scenario, fn := range map[string]func(t *testing.T, g *Graph){
		"plain node follows its edge": func(t *testing.T, g *Graph) {
			next, err := g.Outbound("request", executionWith("travel", "10"))
			require.NoError(t, err)
			require.Equal(t, []string{"route"}, ids(next))
		},
		"exclusive gateway picks by expression": func(t *testing.T, g *Graph) {
			next, err := g.Outbound("route", executionWith("travel", "10"))
			require.NoError(t, err)
			require.Equal(t, []string{"travel-approval"}, ids(next))

			next, err = g.Outbound("route", executionWith("office", "10"))
			require.NoError(t, err)
			require.Equal(t, []string{"split"}, ids(next))
		},
		"parallel gateway follows every match": func(t *testing.T, g *Graph) {
			next, err := g.Outbound("split", executionWith("office", "500"))
			require.NoError(t, err)
			require.Equal(t, []string{"finance", "end"}, ids(next))

			next, err = g.Outbound("split", executionWith("office", "50"))
			require.NoError(t, err)
			require.Equal(t, []string{"end"}, ids(next))
		},
		"end has no successors": func(t *testing.T, g *Graph) {
			next, err := g.Outbound("end", executionWith("office", "50"))
			require.NoError(t, err)
			require.Empty(t, next)
		},
		"unknown node": func(t *testing.T, g *Graph) {
			_, err := g.Node("nope")
			require.Error(t, err)
			ge, ok := err.(api.GraphError)
			require.True(t, ok)
			require.Equal(t, api.CODE_GRAPH_NOT_FOUND, ge.Code)
		},
	} {
		t.Run(scenario, func(t *testing.T) {
			fn(t, g)
		})
	}
}

func TestExclusiveGatewayAmbiguity(t *testing.T) {
	p := decisionProcess()
	p.Nodes[1] = model.NodeDef{
		Id:   "route",
		Kind: model.NODE_KIND_EXCLUSIVE_GATEWAY,
		Edges: []model.EdgeDef{
			{To: "travel-approval", Guard: "$.forms['request-form'].kind == 'travel'"},
			{To: "split", Guard: "Number($.forms['request-form'].amount) > 100"},
		},
	}
	g, err := NewGraph(p, input.NewRegistry())
	require.NoError(t, err)

	next, err := g.Outbound("route", executionWith("travel", "10"))
	require.NoError(t, err)
	require.Equal(t, []string{"travel-approval"}, ids(next))

	_, err = g.Outbound("route", executionWith("travel", "500"))
	require.Error(t, err)
	require.Equal(t, api.CODE_GRAPH_GUARD, err.(api.GraphError).Code)

	_, err = g.Outbound("route", executionWith("office", "10"))
	require.Error(t, err)
	require.Equal(t, api.CODE_GRAPH_GUARD, err.(api.GraphError).Code)
}

func TestGraphValidation(t *testing.T) {
	cases := map[string]func(p *model.Process){
		"duplicate node id":   func(p *model.Process) { p.Nodes[5].Id = "finance" },
		"unknown edge target": func(p *model.Process) { p.Nodes[0].Edges[0].To = "nowhere" },
		"unknown start":       func(p *model.Process) { p.StartNode = "nowhere" },
		"automatic start":     func(p *model.Process) { p.StartNode = "split" },
		"unknown input type":  func(p *model.Process) { p.Nodes[0].Forms[0].Inputs[0].Type = "signature" },
		"gateway without edges": func(p *model.Process) {
			p.Nodes[3].Edges = nil
		},
		"end with edges":   func(p *model.Process) { p.Nodes[5].Edges = []model.EdgeDef{{To: "request"}} },
		"broken guard":     func(p *model.Process) { p.Nodes[3].Edges[0].Guard = "$.forms[" },
		"broken jsonpath":  func(p *model.Process) { p.Nodes[1].Expression = "{forms.x}" },
		"bad dependency":   func(p *model.Process) { p.Nodes[2].Deps = []string{"amount"} },
		"deps on action":   func(p *model.Process) { p.Nodes[0].Deps = []string{"request-form.amount"} },
		"too many actors":  func(p *model.Process) { p.Nodes[4].RequiredActors = 2 },
		"unknown kind":     func(p *model.Process) { p.Nodes[4].Kind = "timer" },
		"repeated form":    func(p *model.Process) { p.Nodes[0].Forms = append(p.Nodes[0].Forms, p.Nodes[0].Forms[0]) },
		"radio no options": func(p *model.Process) { p.Nodes[0].Forms[0].Inputs[1].Options = nil },
		"dotted node id":   func(p *model.Process) { p.Nodes[4].Id = "fin.ance" },
		"dotted form ref":  func(p *model.Process) { p.Nodes[0].Forms[0].Ref = "request.form" },
		"dotted input":     func(p *model.Process) { p.Nodes[0].Forms[0].Inputs[0].Name = "amount.total" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := decisionProcess()
			mutate(&p)
			_, err := NewGraph(p, input.NewRegistry())
			require.Error(t, err)
			ge, ok := err.(api.GraphError)
			require.True(t, ok, "expected graph error, got %T", err)
			require.Equal(t, api.CODE_GRAPH_MALFORMED, ge.Code)
		})
	}
}
