package export

// Config controls a single export.
type Config struct {
	Flavor      Flavor
	Interceptor Interceptor
	PrettyPrint bool

	// ClassAttribute writes "_class" on every object.
	ClassAttribute bool

	// SkipIfFail drops properties whose value cannot be read or converted
	// instead of failing the whole export.
	SkipIfFail bool

	// Models defaults to DefaultModelBuilder.
	Models *ModelBuilder
}

func NewConfig() *Config {
	return &Config{
		Flavor:      JSON,
		Interceptor: DefaultInterceptor{},
	}
}

func (c *Config) interceptor() Interceptor {
	if c == nil || c.Interceptor == nil {
		return DefaultInterceptor{}
	}
	return c.Interceptor
}

func (c *Config) models() *ModelBuilder {
	if c == nil || c.Models == nil {
		return DefaultModelBuilder
	}
	return c.Models
}
