package yarn

// ValidationError reports the first invalid field of a record. Field uses
// the record's JSON path, for example "messages[3].ordinal".
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// within prefixes the field path with the enclosing element.
func (e *ValidationError) within(path string) *ValidationError {
	return &ValidationError{Field: path + "." + e.Field, Message: e.Message}
}
