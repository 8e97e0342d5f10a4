package policy

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"fundscore/internal/composite"
	"fundscore/internal/domain"
)

// ErrUnknownCategory is returned when no policy is registered for a category.
var ErrUnknownCategory = errors.New("policy: unknown category")

const (
	defaultInclude = `(?i)\bdirect\b`
	defaultExclude = `(?i)\b(idcw|dividend|payout|reinvestment|bonus)\b`
)

// CategoryPolicy parameterises the pipeline for one peer category.
type CategoryPolicy struct {
	Name             string             `yaml:"name"`
	Slug             string             `yaml:"slug"`
	IncludePattern   string             `yaml:"include_pattern"`
	ExcludePattern   string             `yaml:"exclude_pattern"`
	DefaultBenchmark string             `yaml:"default_benchmark"`
	Strict           bool               `yaml:"strict"`
	Weights          *composite.Weights `yaml:"weights"`

	include *regexp.Regexp
	exclude *regexp.Regexp
}

func (p *CategoryPolicy) compile() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("policy: name is required")
	}
	if p.Slug == "" {
		p.Slug = slugify(p.Name)
	}
	p.include, p.exclude = nil, nil
	var err error
	if p.IncludePattern != "" {
		if p.include, err = regexp.Compile(p.IncludePattern); err != nil {
			return fmt.Errorf("policy %s: include pattern: %w", p.Name, err)
		}
	}
	if p.ExcludePattern != "" {
		if p.exclude, err = regexp.Compile(p.ExcludePattern); err != nil {
			return fmt.Errorf("policy %s: exclude pattern: %w", p.Name, err)
		}
	}
	if p.Weights != nil {
		if err := p.Weights.Validate(); err != nil {
			return fmt.Errorf("policy %s: %w", p.Name, err)
		}
	}
	return nil
}

// Admits reports whether a universe member passes the plan filter. Funds
// without a name cannot be filtered and are admitted.
func (p *CategoryPolicy) Admits(f domain.Fund) bool {
	if f.Name == "" {
		return true
	}
	if p.include != nil && !p.include.MatchString(f.Name) {
		return false
	}
	if p.exclude != nil && p.exclude.MatchString(f.Name) {
		return false
	}
	return true
}

// Filter returns the admitted members in input order.
func (p *CategoryPolicy) Filter(funds []domain.Fund) []domain.Fund {
	out := make([]domain.Fund, 0, len(funds))
	for _, f := range funds {
		if p.Admits(f) {
			out = append(out, f)
		}
	}
	return out
}

// EffectiveWeights returns the policy weights or the defaults.
func (p *CategoryPolicy) EffectiveWeights() composite.Weights {
	if p.Weights != nil {
		return *p.Weights
	}
	return composite.DefaultWeights()
}

// Registry holds category policies by name.
type Registry struct {
	byKey map[string]*CategoryPolicy
	names []string
}

// NewRegistry builds a registry from the given policies.
func NewRegistry(policies ...CategoryPolicy) (*Registry, error) {
	r := &Registry{byKey: make(map[string]*CategoryPolicy)}
	for _, p := range policies {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register validates and adds a policy, replacing any with the same name.
func (r *Registry) Register(p CategoryPolicy) error {
	if err := p.compile(); err != nil {
		return err
	}
	key := strings.ToLower(p.Name)
	if prev, exists := r.byKey[key]; !exists {
		r.names = append(r.names, p.Name)
	} else if slug := strings.ToLower(prev.Slug); slug != key && r.byKey[slug] == prev {
		delete(r.byKey, slug)
	}
	stored := p
	r.byKey[key] = &stored
	r.byKey[strings.ToLower(p.Slug)] = &stored
	return nil
}

// Lookup finds a policy by name or slug, case-insensitively.
func (r *Registry) Lookup(category string) (*CategoryPolicy, error) {
	if p, ok := r.byKey[strings.ToLower(strings.TrimSpace(category))]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
}

// Names lists registered category names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Policies returns the registered policies sorted by name.
func (r *Registry) Policies() []CategoryPolicy {
	out := make([]CategoryPolicy, 0, len(r.names))
	for _, n := range r.names {
		out = append(out, *r.byKey[strings.ToLower(n)])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DefaultPolicies are the equity categories scored out of the box.
func DefaultPolicies() []CategoryPolicy {
	mk := func(name, bench string) CategoryPolicy {
		return CategoryPolicy{
			Name:             name,
			IncludePattern:   defaultInclude,
			ExcludePattern:   defaultExclude,
			DefaultBenchmark: bench,
		}
	}
	return []CategoryPolicy{
		mk("Large Cap", "NIFTY 100 TRI"),
		mk("Mid Cap", "NIFTY Midcap 150 TRI"),
		mk("Small Cap", "NIFTY Smallcap 250 TRI"),
		mk("Large & Mid Cap", "NIFTY LargeMidcap 250 TRI"),
		mk("Multi Cap", "NIFTY 500 Multicap 50:25:25 TRI"),
		mk("Flexi Cap", "NIFTY 500 TRI"),
		mk("Focused", "NIFTY 500 TRI"),
		mk("Value", "NIFTY 500 TRI"),
		mk("ELSS", "NIFTY 500 TRI"),
	}
}

// DefaultRegistry returns a registry of DefaultPolicies.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultPolicies()...)
	if err != nil {
		panic(err)
	}
	return r
}

type registryFile struct {
	Categories []yaml.Node `yaml:"categories"`
}

// overlayBase returns a detached copy of the registered policy for name, or a
// blank policy when the category is new.
func (r *Registry) overlayBase(name string) CategoryPolicy {
	prev, ok := r.byKey[strings.ToLower(strings.TrimSpace(name))]
	if !ok || !strings.EqualFold(prev.Name, strings.TrimSpace(name)) {
		return CategoryPolicy{}
	}
	base := *prev
	if prev.Weights != nil {
		w := *prev.Weights
		base.Weights = &w
	}
	return base
}

// LoadRegistry reads policies from a YAML file layered over the defaults.
// Keys present in a file entry overwrite the matching default policy; absent
// keys keep their default values. An empty path yields the defaults.
func LoadRegistry(path string) (*Registry, error) {
	r := DefaultRegistry()
	if path == "" {
		return r, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policies file: %w", err)
	}
	var file registryFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse policies file: %w", err)
	}
	for i := range file.Categories {
		node := &file.Categories[i]
		var head struct {
			Name string `yaml:"name"`
		}
		if err := node.Decode(&head); err != nil {
			return nil, fmt.Errorf("parse policies file: %w", err)
		}
		p := r.overlayBase(head.Name)
		canonical := p.Name
		if err := node.Decode(&p); err != nil {
			return nil, fmt.Errorf("parse policy %s: %w", head.Name, err)
		}
		if canonical != "" {
			p.Name = canonical
		} else {
			p.Name = strings.TrimSpace(p.Name)
		}
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}
