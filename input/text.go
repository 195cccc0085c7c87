package input

import (
	"encoding/json"
	"strconv"

	"github.com/mohitkumar/humanflow/model"
)

const TYPE_TEXT string = "text"
const TYPE_PASSWORD string = "password"

type textValidator struct {
	name string
}

func newTextValidator(def model.InputDef) (Validator, error) {
	return &textValidator{name: def.Name}, nil
}

func (v *textValidator) Validate(raw any) (any, string, error) {
	s, ok := asString(raw)
	if !ok {
		return nil, "", invalid("'%s' must be text, got %s", v.name, typeName(raw))
	}
	return s, v.MakeCaption(s), nil
}

func (v *textValidator) MakeCaption(value any) string {
	s, _ := asString(value)
	return s
}

// passwordValidator keeps the secret as given; masking belongs to whoever
// displays it.
type passwordValidator struct {
	textValidator
}

func newPasswordValidator(def model.InputDef) (Validator, error) {
	return &passwordValidator{textValidator{name: def.Name}}, nil
}

func (v *passwordValidator) Validate(raw any) (any, string, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, "", invalid("'%s' must be a string, got %s", v.name, typeName(raw))
	}
	return s, v.MakeCaption(s), nil
}

func asString(raw any) (string, bool) {
	switch value := raw.(type) {
	case string:
		return value, true
	case json.Number:
		return value.String(), true
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(value), 'f', -1, 32), true
	case int:
		return strconv.Itoa(value), true
	case int32:
		return strconv.FormatInt(int64(value), 10), true
	case int64:
		return strconv.FormatInt(value, 10), true
	case bool:
		return strconv.FormatBool(value), true
	}
	return "", false
}
