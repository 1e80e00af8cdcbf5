package export

import (
	"fmt"
	"reflect"
)

// NotExportableError reports a value whose type has no exported properties.
// ModelType and Property are set when the value was reached through a property.
type NotExportableError struct {
	Type      reflect.Type
	ModelType reflect.Type
	Property  string
}

func (e *NotExportableError) Error() string {
	if e.ModelType == nil {
		return fmt.Sprintf("%s has no exported properties", e.Type)
	}
	return fmt.Sprintf("%s has no exported properties so cannot write %s.%s", e.Type, e.ModelType, e.Property)
}
