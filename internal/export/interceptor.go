package export

type skipMarker struct{}

// Skip may be returned by an Interceptor to leave the property out of the output.
var Skip any = skipMarker{}

// Interceptor decides the value written for a property.
type Interceptor interface {
	GetValue(p *Property, model any, cfg *Config) (any, error)
}

// InterceptorFunc adapts a function to the Interceptor interface.
type InterceptorFunc func(p *Property, model any, cfg *Config) (any, error)

func (f InterceptorFunc) GetValue(p *Property, model any, cfg *Config) (any, error) {
	return f(p, model, cfg)
}

// DefaultInterceptor returns the raw property value.
type DefaultInterceptor struct{}

func (DefaultInterceptor) GetValue(p *Property, model any, _ *Config) (any, error) {
	return p.GetValue(model)
}

// CustomExportedBean is implemented by values that export a substitute object
// instead of their own properties.
type CustomExportedBean interface {
	ToExportedObject() any
}

// ClassNamer overrides the "_class" attribute written for a bean.
type ClassNamer interface {
	ExportClassName() string
}
