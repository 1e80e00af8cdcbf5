package export

// DataWriter receives a document as a stream of events. Value accepts
// string, bool, int64, uint64 and float64.
type DataWriter interface {
	Name(name string) error
	Value(v any) error
	ValueNull() error
	StartArray() error
	EndArray() error
	StartObject() error
	EndObject() error
	// Type records the class of the object just started.
	Type(class string) error
	// Close flushes buffered output. It does not close the underlying writer.
	Close() error
}
