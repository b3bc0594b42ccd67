// Package template implements template candidate selection against the
// search result table and retrieval of the normalized structure bundle.
package template

import (
	"strings"

	"github.com/foldprep/api/internal/model"
)

// Criteria is the validated, internal form of model.TemplateCriteria.
// Conformation fields are nil when relaxed to the "all" wildcard, so
// matching is a plain conjunction of the constraints that are present.
type Criteria struct {
	Mode    model.TemplateMode
	Codes   []string
	State   model.ActivationState
	DFG     *string
	ACHelix *string
	Salt    *string
	exclude map[string]bool
}

// NewCriteria validates a wire-level criteria and converts it. An
// unrecognized enum value in any field is a ConfigurationError: fatal,
// surfaced immediately, never retried.
func NewCriteria(tc *model.TemplateCriteria) (*Criteria, error) {
	c := &Criteria{Mode: model.TemplateModeNone, exclude: map[string]bool{}}
	if tc == nil {
		return c, nil
	}

	for _, code := range tc.Exclude {
		c.exclude[normalizePDBID(code)] = true
	}

	switch tc.Mode {
	case model.TemplateModeNone, "":
		c.Mode = model.TemplateModeNone

	case model.TemplateModeList:
		c.Mode = model.TemplateModeList
		c.Codes = tc.Codes

	case model.TemplateModeState:
		if !model.IsValidActivationState(tc.State) {
			return nil, &model.ConfigurationError{Field: "state", Value: tc.State}
		}
		c.Mode = model.TemplateModeState
		c.State = model.ActivationState(tc.State)

	case model.TemplateModeConformation:
		c.Mode = model.TemplateModeConformation

		dfg, err := constraintField("DFG", tc.DFG, "in", "out", "out-like")
		if err != nil {
			return nil, err
		}
		helix, err := constraintField("ac_helix", tc.ACHelix, "in", "out")
		if err != nil {
			return nil, err
		}
		salt, err := constraintField("salt_bridge", tc.SaltBridge, "yes", "no")
		if err != nil {
			return nil, err
		}
		c.DFG, c.ACHelix, c.Salt = dfg, helix, salt

	default:
		return nil, &model.ConfigurationError{Field: "mode", Value: string(tc.Mode)}
	}

	return c, nil
}

// constraintField maps "all" to nil (wildcard) and rejects anything outside
// the allowed values.
func constraintField(name, value string, allowed ...string) (*string, error) {
	if value == "all" {
		return nil, nil
	}
	for _, a := range allowed {
		if value == a {
			v := value
			return &v, nil
		}
	}
	return nil, &model.ConfigurationError{Field: name, Value: value}
}

// Excluded reports whether a PDB id was excluded by the caller. Comparison
// is case-insensitive and chain-stripped on every path.
func (c *Criteria) Excluded(pdbID string) bool {
	return c.exclude[normalizePDBID(pdbID)]
}

// normalizePDBID uppercases a code and drops any chain suffix, so 3sn6_A,
// 3SN6_R and 3sn6 all collapse to 3SN6.
func normalizePDBID(code string) string {
	id, _, _ := strings.Cut(code, "_")
	return strings.ToUpper(id)
}
