package tool

// Args holds validated call arguments keyed by field name. Values have the
// Go form produced by [Schema.Validate]. Handlers read them through the typed
// accessors, which return the zero value for absent fields.
type Args map[string]any

// String returns the string field name.
func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// Int returns the integer field name and whether it was present.
func (a Args) Int(name string) (int64, bool) {
	n, ok := a[name].(int64)
	return n, ok
}

// Strings returns the string-array field name.
func (a Args) Strings(name string) []string {
	s, _ := a[name].([]string)
	return s
}

// List returns the free-form array field name.
func (a Args) List(name string) []any {
	l, _ := a[name].([]any)
	return l
}
