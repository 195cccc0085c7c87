package input

import (
	"time"

	"github.com/mohitkumar/humanflow/model"
)

const TYPE_DATETIME string = "datetime"

var datetimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02",
}

type datetimeValidator struct {
	name string
}

func newDatetimeValidator(def model.InputDef) (Validator, error) {
	return &datetimeValidator{name: def.Name}, nil
}

// Validate accepts ISO-8601 strings. The stored value stays the string the
// actor sent.
func (v *datetimeValidator) Validate(raw any) (any, string, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, "", invalid("'%s' must be an ISO-8601 date, got %s", v.name, typeName(raw))
	}
	if _, err := ParseDatetime(s); err != nil {
		return nil, "", invalid("'%s' is not a valid date: %s", v.name, s)
	}
	return s, v.MakeCaption(s), nil
}

func (v *datetimeValidator) MakeCaption(value any) string {
	s, _ := value.(string)
	return s
}

func ParseDatetime(s string) (time.Time, error) {
	var err error
	for _, layout := range datetimeLayouts {
		var t time.Time
		t, err = time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}
