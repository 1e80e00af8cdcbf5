package rest

// Action is a model attached to another object to contribute extra
// behaviour or data. Faults reading their properties are logged and
// exported as null.
type Action interface {
	DisplayName() string
	URLName() string
}
