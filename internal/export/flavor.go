package export

import (
	"fmt"
	"io"
)

type Flavor int

const (
	JSON Flavor = iota
	JSONP
	XML
)

func (f Flavor) String() string {
	switch f {
	case JSON:
		return "json"
	case JSONP:
		return "jsonp"
	case XML:
		return "xml"
	default:
		return fmt.Sprintf("flavor(%d)", int(f))
	}
}

func (f Flavor) ContentType() string {
	switch f {
	case JSONP:
		return "application/javascript;charset=UTF-8"
	case XML:
		return "application/xml;charset=UTF-8"
	default:
		return "application/json;charset=UTF-8"
	}
}

// NewDataWriter returns a writer for this flavor. root names the document
// element and is only used by XML.
func (f Flavor) NewDataWriter(w io.Writer, root string, cfg *Config) DataWriter {
	pretty := cfg != nil && cfg.PrettyPrint
	switch f {
	case XML:
		return NewXMLWriter(w, root)
	default:
		return NewJSONWriter(w, pretty)
	}
}
