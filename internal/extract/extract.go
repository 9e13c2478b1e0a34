package extract

import (
	"github.com/PuerkitoBio/goquery"
)

// FieldSpec is a named field with its ordered fallback strategies.
type FieldSpec struct {
	Name       string
	Strategies []Strategy
}

// Result is the outcome of extracting one field.
type Result struct {
	Value    string
	Found    bool
	Strategy Kind
}

// Extract returns the first non-empty value produced by the spec's strategies.
// A field no strategy can locate is reported with Found=false.
func Extract(scope *goquery.Selection, spec FieldSpec) Result {
	for _, s := range spec.Strategies {
		if v, ok := s.Apply(scope); ok {
			return Result{Value: v, Found: true, Strategy: s.Kind()}
		}
	}
	return Result{}
}

// Table is an ordered set of field specs applied to the same scope.
type Table []FieldSpec

// ExtractAll applies every spec in the table.
func (t Table) ExtractAll(scope *goquery.Selection) *Fields {
	f := &Fields{values: make(map[string]Result, len(t))}
	for _, spec := range t {
		r := Extract(scope, spec)
		f.values[spec.Name] = r
		if !r.Found {
			f.missing = append(f.missing, spec.Name)
		}
	}
	return f
}

// Fields holds the results of a table extraction.
type Fields struct {
	values  map[string]Result
	missing []string
}

// Get returns a field value and whether it was found.
func (f *Fields) Get(name string) (string, bool) {
	r, ok := f.values[name]
	if !ok {
		return "", false
	}
	return r.Value, r.Found
}

// String returns the field value or "".
func (f *Fields) String(name string) string {
	v, _ := f.Get(name)
	return v
}

// Strategy returns the strategy kind that produced a field.
func (f *Fields) Strategy(name string) Kind {
	return f.values[name].Strategy
}

// Missing lists fields no strategy could locate, in table order.
func (f *Fields) Missing() []string {
	return f.missing
}
