package plugins

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// Plugin is an installed extension and the Go packages it owns.
type Plugin struct {
	ShortName string   `yaml:"short_name"`
	LongName  string   `yaml:"long_name"`
	URL       string   `yaml:"url"`
	Packages  []string `yaml:"packages"`
}

// DisplayName prefers the long name.
func (p *Plugin) DisplayName() string {
	if p.LongName != "" {
		return p.LongName
	}
	return p.ShortName
}

type Registry struct {
	mu      sync.RWMutex
	plugins map[string]*Plugin
}

func NewRegistry(plugins ...Plugin) (*Registry, error) {
	r := &Registry{plugins: make(map[string]*Plugin)}
	for _, p := range plugins {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(p Plugin) error {
	name := strings.TrimSpace(p.ShortName)
	if name == "" {
		return fmt.Errorf("plugin: short name is required")
	}
	p.ShortName = name

	var pkgs []string
	seen := make(map[string]bool, len(p.Packages))
	for _, pkg := range p.Packages {
		pkg = strings.TrimSuffix(strings.TrimSpace(pkg), "/")
		if pkg != "" && !seen[pkg] {
			seen[pkg] = true
			pkgs = append(pkgs, pkg)
		}
	}
	p.Packages = pkgs

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.plugins[name]; exists {
		return fmt.Errorf("plugin %s already registered", name)
	}
	// A package has at most one owner.
	for _, other := range r.plugins {
		for _, pkg := range other.Packages {
			if seen[pkg] {
				return fmt.Errorf("plugin %s: package %s already owned by plugin %s", name, pkg, other.ShortName)
			}
		}
	}
	r.plugins[name] = &p
	return nil
}

func (r *Registry) List() []Plugin {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Plugin, 0, len(r.plugins))
	for _, p := range r.plugins {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ShortName < out[j].ShortName
	})
	return out
}

// WhichPlugin returns the plugin owning t's package: the one with the longest
// package prefix that matches at a path boundary.
func (r *Registry) WhichPlugin(t reflect.Type) (*Plugin, bool) {
	if r == nil || t == nil {
		return nil, false
	}
	for t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice || t.Kind() == reflect.Array || t.Kind() == reflect.Map {
		t = t.Elem()
	}
	pkg := t.PkgPath()
	if pkg == "" {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		best    *Plugin
		bestLen int
	)
	for _, p := range r.plugins {
		for _, prefix := range p.Packages {
			if !ownsPackage(prefix, pkg) || len(prefix) <= bestLen {
				continue
			}
			best, bestLen = p, len(prefix)
		}
	}
	if best == nil {
		return nil, false
	}
	cp := *best
	return &cp, true
}

func ownsPackage(prefix, pkg string) bool {
	if pkg == prefix {
		return true
	}
	return strings.HasPrefix(pkg, prefix+"/")
}
