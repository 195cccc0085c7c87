package engine

import (
	"fmt"

	api "github.com/mohitkumar/humanflow/api/v1"
	"github.com/mohitkumar/humanflow/input"
	"github.com/mohitkumar/humanflow/model"
)

type formMatch struct {
	index int
	def   model.FormDef
	sub   model.FormSubmission
}

// matchForms pairs submitted forms with the node's declared forms. A plain
// form is submitted once, a multiple form one or more consecutive times, in
// declared order. No input is looked at here.
func matchForms(def model.NodeDef, submitted []model.FormSubmission) ([]formMatch, error) {
	matches := make([]formMatch, 0, len(submitted))
	i := 0
	for _, fd := range def.Forms {
		if i >= len(submitted) {
			return nil, api.Required("input", fd.Ref)
		}
		if submitted[i].Ref != fd.Ref {
			if !submittedRef(submitted[i:], fd.Ref) {
				return nil, api.Required(fmt.Sprintf("input.%d", i), fd.Ref)
			}
			return nil, api.Invalid(fmt.Sprintf("input.%d", i), "form %s was expected, got %s", fd.Ref, submitted[i].Ref)
		}
		for i < len(submitted) && submitted[i].Ref == fd.Ref {
			matches = append(matches, formMatch{index: i, def: fd, sub: submitted[i]})
			i++
			if !fd.Multiple {
				break
			}
		}
	}
	if i < len(submitted) {
		return nil, api.Invalid(fmt.Sprintf("input.%d", i), "form %s is not expected here", submitted[i].Ref)
	}
	return matches, nil
}

func submittedRef(submitted []model.FormSubmission, ref string) bool {
	for _, sub := range submitted {
		if sub.Ref == ref {
			return true
		}
	}
	return false
}

// collectForms validates a submission against the declared forms of def and
// returns the form states to record. The first failure in form then input
// order is returned.
func collectForms(registry *input.Registry, def model.NodeDef, submitted []model.FormSubmission) ([]*model.FormState, error) {
	matches, err := matchForms(def, submitted)
	if err != nil {
		return nil, err
	}
	forms := make([]*model.FormState, 0, len(matches))
	for _, m := range matches {
		form := model.NewFormState(m.def.Ref)
		for _, in := range m.def.Inputs {
			raw, present := m.sub.Lookup(in.Name)
			where := fmt.Sprintf("input.%d.%s", m.index, in.Name)
			st, err := registry.Validate(in, raw, present, where)
			if err != nil {
				return nil, err
			}
			form.Inputs.Set(in.Name, st)
		}
		forms = append(forms, form)
	}
	return forms, nil
}

// inputDef finds the declaration of input name in form ref of def.
func inputDef(def model.NodeDef, ref string, name string) (model.InputDef, bool) {
	for _, form := range def.Forms {
		if form.Ref != ref {
			continue
		}
		for _, in := range form.Inputs {
			if in.Name == name {
				return in, true
			}
		}
	}
	return model.InputDef{}, false
}
