package rest

import (
	"fmt"
	"reflect"

	"github.com/go-logr/logr"
	"k8s.io/klog/v2"

	"scmrest/internal/export"
	"scmrest/internal/plugins"
)

// DefaultIssueTrackerURL is reported for faulty plugins that have no URL of their own.
const DefaultIssueTrackerURL = "https://github.com/scmrest/scmrest/issues"

// ActionInterceptor exports properties of actions without letting a faulty
// property break the whole response: the fault is logged and the property
// is written as null. Other models go through export.DefaultInterceptor.
type ActionInterceptor struct {
	Log             logr.Logger
	Plugins         *plugins.Registry
	IssueTrackerURL string
}

func NewActionInterceptor(log logr.Logger, registry *plugins.Registry, issueTrackerURL string) *ActionInterceptor {
	if log.GetSink() == nil {
		log = klog.Background()
	}
	if issueTrackerURL == "" {
		issueTrackerURL = DefaultIssueTrackerURL
	}
	return &ActionInterceptor{Log: log, Plugins: registry, IssueTrackerURL: issueTrackerURL}
}

func (i *ActionInterceptor) GetValue(p *export.Property, model any, cfg *export.Config) (any, error) {
	if _, ok := model.(Action); !ok {
		return export.DefaultInterceptor{}.GetValue(p, model, cfg)
	}

	v, err := actionValue(p, model, cfg)
	if err != nil {
		i.reportFault(p, model, err)
		return nil, nil
	}
	return v, nil
}

func actionValue(p *export.Property, model any, cfg *export.Config) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()

	raw, err := p.GetValue(model)
	if err != nil || raw == nil {
		return nil, err
	}
	if c, ok := raw.(export.CustomExportedBean); ok {
		return c.ToExportedObject(), nil
	}
	if export.IsPassthrough(raw) || modelBuilder(cfg).IsExportedBean(reflect.TypeOf(raw)) {
		return raw, nil
	}
	return nil, &export.NotExportableError{
		Type:      reflect.TypeOf(raw),
		ModelType: deref(reflect.TypeOf(model)),
		Property:  p.Name,
	}
}

func (i *ActionInterceptor) reportFault(p *export.Property, model any, err error) {
	log := i.Log
	if log.GetSink() == nil {
		log = klog.Background()
	}

	modelType := deref(reflect.TypeOf(model))
	kv := []any{"model", modelType.String(), "property", p.Name}
	if plugin, ok := i.Plugins.WhichPlugin(modelType); ok {
		url := plugin.URL
		if url == "" {
			url = i.IssueTrackerURL
		}
		if url == "" {
			url = DefaultIssueTrackerURL
		}
		kv = append(kv, "plugin", plugin.DisplayName(), "issues", url)
		log.Error(err, fmt.Sprintf("problem serializing <%s> belonging to plugin <%s>, report it to the plugin author at %s", modelType, plugin.DisplayName(), url), kv...)
		return
	}
	log.Error(err, fmt.Sprintf("problem serializing <%s>", modelType), kv...)
}

func modelBuilder(cfg *export.Config) *export.ModelBuilder {
	if cfg != nil && cfg.Models != nil {
		return cfg.Models
	}
	return export.DefaultModelBuilder
}

func deref(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
