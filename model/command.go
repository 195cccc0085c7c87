package model

type CommandType string

const COMMAND_START CommandType = "start"
const COMMAND_STEP CommandType = "step"
const COMMAND_PATCH CommandType = "patch"
const COMMAND_CANCEL CommandType = "cancel"
const COMMAND_ADD_USER CommandType = "add_user"

const RESPONSE_ACCEPT string = "accept"
const RESPONSE_REJECT string = "reject"

// VALIDATION_FORM_REF is the form ref under which a validation decision is recorded.
const VALIDATION_FORM_REF string = "validation"

type Command struct {
	Command          CommandType      `json:"command"`
	ExecutionId      string           `json:"execution_id,omitempty"`
	PointerId        string           `json:"pointer_id,omitempty"`
	Process          string           `json:"process,omitempty"`
	ProcessVersion   string           `json:"process_version,omitempty"`
	UserIdentifier   string           `json:"user_identifier,omitempty"`
	HumanName        string           `json:"human_name,omitempty"`
	Input            []FormSubmission `json:"input,omitempty"`
	Comment          string           `json:"comment,omitempty"`
	Response         string           `json:"response,omitempty"`
	Inputs           []PatchInput     `json:"inputs,omitempty"`
	TargetIdentifier string           `json:"target_identifier,omitempty"`
}

func (c Command) User() User {
	name := c.HumanName
	if name == "" {
		name = c.UserIdentifier
	}
	return User{Identifier: c.UserIdentifier, HumanName: name}
}

// PatchInput names one leaf by ref. Value is absent for reject refs.
type PatchInput struct {
	Ref   string `json:"ref"`
	Value any    `json:"value,omitempty"`
}

type InputRecord struct {
	Name         string `json:"name,omitempty"`
	Type         string `json:"type,omitempty"`
	Value        any    `json:"value"`
	ValueCaption string `json:"value_caption,omitempty"`
	State        State  `json:"state,omitempty"`
}

type FormSubmission struct {
	Type   string                 `json:"_type"`
	Ref    string                 `json:"ref"`
	State  State                  `json:"state"`
	Inputs SortedMap[InputRecord] `json:"inputs"`
}

// NewFormSubmission builds a submission from plain name/value pairs in the
// given order.
func NewFormSubmission(ref string, names []string, data map[string]any) FormSubmission {
	inputs := NewSortedMap[InputRecord]()
	for _, name := range names {
		value, ok := data[name]
		if !ok {
			continue
		}
		inputs.Set(name, InputRecord{Name: name, Value: value})
	}
	return FormSubmission{
		Type:   TYPE_FORM,
		Ref:    ref,
		State:  STATE_VALID,
		Inputs: inputs,
	}
}

// Lookup returns the raw value submitted for name and whether it was present.
// An explicit null counts as absent.
func (f FormSubmission) Lookup(name string) (any, bool) {
	record, ok := f.Inputs.Get(name)
	if !ok || record.Value == nil {
		return nil, false
	}
	return record.Value, true
}
