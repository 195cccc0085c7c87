package input

import (
	"fmt"
	"strings"

	"github.com/mohitkumar/humanflow/model"
	"golang.org/x/exp/slices"
)

const TYPE_CHECKBOX string = "checkbox"
const TYPE_RADIO string = "radio"
const TYPE_SELECT string = "select"

type options struct {
	name   string
	values []string
	labels map[string]string
}

func newOptions(def model.InputDef) (options, error) {
	if len(def.Options) == 0 {
		return options{}, fmt.Errorf("%s input needs options", def.Type)
	}
	o := options{name: def.Name, labels: make(map[string]string, len(def.Options))}
	for _, opt := range def.Options {
		if _, ok := o.labels[opt.Value]; ok {
			return options{}, fmt.Errorf("option %s is repeated", opt.Value)
		}
		label := opt.Label
		if label == "" {
			label = opt.Value
		}
		o.values = append(o.values, opt.Value)
		o.labels[opt.Value] = label
	}
	return o, nil
}

func (o options) token(raw any) (string, error) {
	s, ok := raw.(string)
	if !ok {
		return "", invalid("'%s' options must be strings, got %s", o.name, typeName(raw))
	}
	if !slices.Contains(o.values, s) {
		return "", invalid("'%s' has no option %s", o.name, s)
	}
	return s, nil
}

// checkboxValidator takes a list of distinct tokens from the declared set.
type checkboxValidator struct {
	options
	min int
	max int
}

func newCheckboxValidator(def model.InputDef) (Validator, error) {
	o, err := newOptions(def)
	if err != nil {
		return nil, err
	}
	if def.Max > 0 && def.Min > def.Max {
		return nil, fmt.Errorf("min %d is greater than max %d", def.Min, def.Max)
	}
	return &checkboxValidator{options: o, min: def.Min, max: def.Max}, nil
}

func (v *checkboxValidator) Validate(raw any) (any, string, error) {
	list, ok := raw.([]any)
	if !ok {
		if strs, isStrs := raw.([]string); isStrs {
			list = make([]any, 0, len(strs))
			for _, s := range strs {
				list = append(list, s)
			}
		} else {
			return nil, "", invalid("'%s' must be a list, got %s", v.name, typeName(raw))
		}
	}
	tokens := make([]string, 0, len(list))
	for _, item := range list {
		token, err := v.token(item)
		if err != nil {
			return nil, "", err
		}
		if slices.Contains(tokens, token) {
			return nil, "", invalid("'%s' option %s is repeated", v.name, token)
		}
		tokens = append(tokens, token)
	}
	if len(tokens) < v.min {
		return nil, "", invalid("'%s' needs at least %d options", v.name, v.min)
	}
	if v.max > 0 && len(tokens) > v.max {
		return nil, "", invalid("'%s' accepts at most %d options", v.name, v.max)
	}
	return tokens, v.MakeCaption(tokens), nil
}

func (v *checkboxValidator) MakeCaption(value any) string {
	var tokens []string
	switch value := value.(type) {
	case []string:
		tokens = value
	case []any:
		for _, item := range value {
			if s, ok := item.(string); ok {
				tokens = append(tokens, s)
			}
		}
	}
	labels := make([]string, 0, len(tokens))
	for _, t := range tokens {
		labels = append(labels, v.labels[t])
	}
	return strings.Join(labels, ", ")
}

// singleChoiceValidator backs radio and select inputs: exactly one token,
// given bare or as a one element list.
type singleChoiceValidator struct {
	options
}

func newSingleChoiceValidator(def model.InputDef) (Validator, error) {
	o, err := newOptions(def)
	if err != nil {
		return nil, err
	}
	return &singleChoiceValidator{options: o}, nil
}

func (v *singleChoiceValidator) Validate(raw any) (any, string, error) {
	if list, ok := raw.([]any); ok {
		if len(list) != 1 {
			return nil, "", invalid("'%s' needs exactly one option, got %d", v.name, len(list))
		}
		raw = list[0]
	}
	token, err := v.token(raw)
	if err != nil {
		return nil, "", err
	}
	return token, v.MakeCaption(token), nil
}

func (v *singleChoiceValidator) MakeCaption(value any) string {
	s, _ := value.(string)
	return v.labels[s]
}
