package model

type Process struct {
	Name        string `json:"name" yaml:"name"`
	Version     string `json:"version" yaml:"version"`
	Description string `json:"description" yaml:"description"`
	// ExecutionName and ExecutionDescription are templates rendered against
	// the state document once the start node is submitted, e.g.
	// "Trip of {$.forms.request.traveler}".
	ExecutionName        string    `json:"execution_name,omitempty" yaml:"execution_name,omitempty"`
	ExecutionDescription string    `json:"execution_description,omitempty" yaml:"execution_description,omitempty"`
	StartNode            string    `json:"start_node" yaml:"start_node"`
	Nodes                []NodeDef `json:"nodes" yaml:"nodes"`
}

type NodeDef struct {
	Id             string    `json:"id" yaml:"id"`
	Kind           NodeKind  `json:"kind" yaml:"kind"`
	Name           string    `json:"name" yaml:"name"`
	Actors         []string  `json:"actors,omitempty" yaml:"actors,omitempty"`
	RequiredActors int       `json:"required_actors,omitempty" yaml:"required_actors,omitempty"`
	Forms          []FormDef `json:"forms,omitempty" yaml:"forms,omitempty"`
	Edges          []EdgeDef `json:"edges,omitempty" yaml:"edges,omitempty"`
	Expression     string    `json:"expression,omitempty" yaml:"expression,omitempty"`
	Deps           []string  `json:"deps,omitempty" yaml:"deps,omitempty"`
}

type FormDef struct {
	Ref      string     `json:"ref" yaml:"ref"`
	Multiple bool       `json:"multiple,omitempty" yaml:"multiple,omitempty"`
	Inputs   []InputDef `json:"inputs" yaml:"inputs"`
}

type Option struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
}

type InputDef struct {
	Name     string   `json:"name" yaml:"name"`
	Type     string   `json:"type" yaml:"type"`
	Label    string   `json:"label,omitempty" yaml:"label,omitempty"`
	Provider string   `json:"provider,omitempty" yaml:"provider,omitempty"`
	Required bool     `json:"required,omitempty" yaml:"required,omitempty"`
	Hidden   bool     `json:"hidden,omitempty" yaml:"hidden,omitempty"`
	Default  any      `json:"default,omitempty" yaml:"default,omitempty"`
	Options  []Option `json:"options,omitempty" yaml:"options,omitempty"`
	Min      int      `json:"min,omitempty" yaml:"min,omitempty"`
	Max      int      `json:"max,omitempty" yaml:"max,omitempty"`
}

func (d InputDef) DisplayLabel() string {
	if d.Label == "" {
		return d.Name
	}
	return d.Label
}

// EdgeDef is an outbound transition. When matches the value of the node
// expression, Guard is a javascript boolean over the state document.
type EdgeDef struct {
	To    string `json:"to" yaml:"to"`
	When  string `json:"when,omitempty" yaml:"when,omitempty"`
	Guard string `json:"guard,omitempty" yaml:"guard,omitempty"`
}
