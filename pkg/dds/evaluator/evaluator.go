// Package evaluator computes custom variable values from normalized provider records.
//
// Each (respondent, definition) evaluation moves through
// PENDING -> FETCHED -> COMPUTED -> {SUCCEEDED, UNAVAILABLE, FAILED}. UNAVAILABLE is not a
// failure: the variable is still written, with an empty value, so the flow keeps the same
// entries for every respondent.
package evaluator

import (
	"fmt"

	"github.com/ddsurveys/dds-backend/pkg/dds/catalog"
	ddsTypes "github.com/ddsurveys/dds-backend/pkg/dds/types"
)

type State string

const (
	STATE_PENDING     State = "PENDING"
	STATE_FETCHED     State = "FETCHED"
	STATE_COMPUTED    State = "COMPUTED"
	STATE_SUCCEEDED   State = "SUCCEEDED"
	STATE_UNAVAILABLE State = "UNAVAILABLE"
	STATE_FAILED      State = "FAILED"
)

// UNAVAILABLE_PLACEHOLDER is the value written for variables without data.
const UNAVAILABLE_PLACEHOLDER = ""

var transitions = map[State][]State{
	STATE_PENDING:  {STATE_FETCHED, STATE_UNAVAILABLE, STATE_FAILED},
	STATE_FETCHED:  {STATE_COMPUTED, STATE_UNAVAILABLE, STATE_FAILED},
	STATE_COMPUTED: {STATE_SUCCEEDED, STATE_UNAVAILABLE, STATE_FAILED},
}

// IsTerminal reports whether no further transition is possible from s.
func (s State) IsTerminal() bool {
	return s == STATE_SUCCEEDED || s == STATE_UNAVAILABLE || s == STATE_FAILED
}

func canTransition(from State, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Result is the outcome of one evaluation, ready to be upserted into the flow.
type Result struct {
	Definition   ddsTypes.CustomVariable
	Field        string
	Description  string
	VariableType ddsTypes.VariableType
	State        State
	Value        string
	Err          error
	// States visited, starting with PENDING.
	Trace []State
}

func newResult(def ddsTypes.CustomVariable) *Result {
	return &Result{
		Definition:   def,
		Field:        def.Field(),
		Description:  def.Label(),
		VariableType: def.VariableType,
		State:        STATE_PENDING,
		Value:        UNAVAILABLE_PLACEHOLDER,
		Trace:        []State{STATE_PENDING},
	}
}

func (r *Result) advance(to State) {
	if !canTransition(r.State, to) {
		panic(fmt.Sprintf("invalid evaluation transition %s -> %s", r.State, to))
	}
	r.State = to
	r.Trace = append(r.Trace, to)
}

func (r *Result) fail(err error) {
	r.Value = UNAVAILABLE_PLACEHOLDER
	r.Err = err
	r.advance(STATE_FAILED)
}

func (r *Result) unavailable(err error) {
	r.Value = UNAVAILABLE_PLACEHOLDER
	r.Err = err
	r.advance(STATE_UNAVAILABLE)
}

// ErrorKind returns the error kind of a FAILED or UNAVAILABLE result, or "".
func (r Result) ErrorKind() ddsTypes.ErrorKind {
	k, _ := ddsTypes.KindOf(r.Err)
	return k
}

// Source is what was obtained for one provider of a respondent: a normalized record, or the
// error that prevented fetching it.
type Source struct {
	Record *ddsTypes.NormalizedRecord
	Err    error
}

type Evaluator struct {
	catalog *catalog.Catalog
}

func NewEvaluator(c *catalog.Catalog) *Evaluator {
	return &Evaluator{catalog: c}
}

// MissingExtractors lists catalog variables no extraction function is known for.
func (e *Evaluator) MissingExtractors() []string {
	missing := []string{}
	for _, name := range e.catalog.VariableNames() {
		if _, ok := extractors[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// Evaluate computes one definition from the source of its provider. A nil source means the
// respondent did not grant access to the provider.
func (e *Evaluator) Evaluate(def ddsTypes.CustomVariable, source *Source) Result {
	r := newResult(def)

	cat, ok := e.catalog.Lookup(def.Provider, def.Category)
	if !ok {
		r.fail(ddsTypes.NewConfigurationError("unknown category "+def.Field(), nil))
		return *r
	}
	if r.VariableType == "" {
		r.VariableType = cat.VariableType
	}

	switch {
	case source == nil:
		r.unavailable(ddsTypes.NewUnavailableDataError(def.Provider, def.Category, "provider access not granted"))
		return *r
	case source.Err != nil:
		if ddsTypes.IsKind(source.Err, ddsTypes.ERROR_KIND_UNAVAILABLE_DATA) {
			r.unavailable(source.Err)
		} else {
			r.fail(source.Err)
		}
		return *r
	case source.Record == nil:
		r.unavailable(ddsTypes.NewUnavailableDataError(def.Provider, def.Category, "no data fetched"))
		return *r
	}
	r.advance(STATE_FETCHED)

	extract, ok := extractors[def.Field()]
	if !ok {
		r.fail(ddsTypes.NewConfigurationError("no extraction for "+def.Field(), nil))
		return *r
	}
	v, ok := extract(source.Record)
	r.advance(STATE_COMPUTED)
	if !ok {
		r.unavailable(ddsTypes.NewUnavailableDataError(def.Provider, def.Category, "data not available"))
		return *r
	}

	formatted, err := format(v, cat)
	if err != nil {
		r.fail(err)
		return *r
	}
	r.Value = formatted
	r.advance(STATE_SUCCEEDED)
	return *r
}

// EvaluateAll evaluates definitions in order. Sources are keyed by provider name; a missing
// key means the provider access was not granted. A failing definition never affects others.
func (e *Evaluator) EvaluateAll(defs []ddsTypes.CustomVariable, sources map[string]Source) []Result {
	results := make([]Result, 0, len(defs))
	for _, def := range defs {
		var source *Source
		if s, ok := sources[def.Provider]; ok {
			source = &s
		}
		results = append(results, e.Evaluate(def, source))
	}
	return results
}
