package input

import (
	"fmt"
	"sync"

	api "github.com/mohitkumar/humanflow/api/v1"
	"github.com/mohitkumar/humanflow/model"
)

// Validator normalizes the raw value submitted for one declared input.
// Errors returned by Validate are api.ValidationError values without a
// location; the registry fills in where the input sits in the submission.
type Validator interface {
	Validate(raw any) (any, string, error)
	MakeCaption(value any) string
}

type Factory func(def model.InputDef) (Validator, error)

type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry holding the builtin input types.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register(TYPE_TEXT, newTextValidator)
	r.Register(TYPE_PASSWORD, newPasswordValidator)
	r.Register(TYPE_DATETIME, newDatetimeValidator)
	r.Register(TYPE_CHECKBOX, newCheckboxValidator)
	r.Register(TYPE_RADIO, newSingleChoiceValidator)
	r.Register(TYPE_SELECT, newSingleChoiceValidator)
	r.Register(TYPE_FILE, newFileValidator)
	return r
}

func (r *Registry) Register(inputType string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[inputType] = factory
}

// Get builds the validator for def. Unknown types are a process definition
// problem, not a submission problem.
func (r *Registry) Get(def model.InputDef) (Validator, error) {
	r.mu.RLock()
	factory, ok := r.factories[def.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, api.NewGraphError(api.CODE_GRAPH_MALFORMED, def.Name, "unknown input type %s for input %s", def.Type, def.Name)
	}
	v, err := factory(def)
	if err != nil {
		return nil, api.NewGraphError(api.CODE_GRAPH_MALFORMED, def.Name, "input %s: %s", def.Name, err.Error())
	}
	return v, nil
}

// Validate produces the recorded state of one input. An absent value takes
// the declared default; an absent required input without default fails
// with validation.required.
func (r *Registry) Validate(def model.InputDef, raw any, present bool, where string) (*model.InputState, error) {
	v, err := r.Get(def)
	if err != nil {
		return nil, err
	}
	state := &model.InputState{
		Name:   def.Name,
		Label:  def.DisplayLabel(),
		Type:   def.Type,
		State:  model.STATE_VALID,
		Hidden: def.Hidden,
	}
	if !present {
		if def.Default == nil {
			if def.Required {
				return nil, api.Required(where, def.Name)
			}
			return state, nil
		}
		raw = def.Default
	}
	value, caption, err := v.Validate(raw)
	if err != nil {
		if ve, ok := err.(api.ValidationError); ok {
			return nil, ve.At(where)
		}
		return nil, api.Invalid(where, "%s", err.Error())
	}
	state.Value = value
	state.ValueCaption = caption
	return state, nil
}

func invalid(format string, args ...any) api.ValidationError {
	return api.Invalid("", format, args...)
}

func typeName(raw any) string {
	switch raw.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "list"
	}
	return fmt.Sprintf("%T", raw)
}
