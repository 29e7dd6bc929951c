// Package prompts manages named, versioned prompt templates with {{var}}
// placeholders and per-render performance tracking.
package prompts

import (
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/0x00000002/multi-ai/pkg/aierrors"
	"github.com/google/uuid"
)

var placeholderRe = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// Variable declares a template placeholder and its optional default.
type Variable struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Default fills the placeholder when the caller omits the variable.
	// A nil Default makes the variable required.
	Default *string `yaml:"default,omitempty" json:"default,omitempty"`
}

// Version is one immutable revision of a template.
type Version struct {
	Number    int                    `json:"number"`
	Text      string                 `json:"text"`
	Variables []Variable             `json:"variables,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	Active    bool                   `json:"active"`
}

// Template is a named prompt with its version history. Exactly one version
// is active at any time.
type Template struct {
	ID       string    `json:"id"`
	Versions []Version `json:"versions"`
}

func (t *Template) active() *Version {
	for i := range t.Versions {
		if t.Versions[i].Active {
			return &t.Versions[i]
		}
	}
	return nil
}

// UsageRecord ties one render to the metrics later reported for it.
type UsageRecord struct {
	UsageID    string                   `json:"usage_id"`
	TemplateID string                   `json:"template_id"`
	Version    int                      `json:"version"`
	RenderedAt time.Time                `json:"rendered_at"`
	Metrics    []map[string]interface{} `json:"metrics,omitempty"`
}

// Manager stores templates and usage records. Safe for concurrent use.
type Manager struct {
	mu        sync.RWMutex
	templates map[string]*Template
	usage     map[string]*UsageRecord
}

func NewManager() *Manager {
	return &Manager{
		templates: make(map[string]*Template),
		usage:     make(map[string]*UsageRecord),
	}
}

// Create registers a new template with a single active version. An existing
// id is rejected; use CreateVersion to evolve a template.
func (m *Manager) Create(id, text string, variables []Variable, metadata map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.templates[id]; exists {
		return aierrors.Newf(aierrors.KindConfigInvalid, "template %q already exists", id)
	}
	m.templates[id] = &Template{
		ID: id,
		Versions: []Version{{
			Number:    1,
			Text:      text,
			Variables: variables,
			Metadata:  metadata,
			CreatedAt: time.Now(),
			Active:    true,
		}},
	}
	return nil
}

// CreateVersion appends a revision. With setActive the new version becomes
// the one Render uses; earlier versions stay in the history either way.
func (m *Manager) CreateVersion(id, text string, variables []Variable, metadata map[string]interface{}, setActive bool) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tpl, ok := m.templates[id]
	if !ok {
		return 0, aierrors.Newf(aierrors.KindTemplateNotFound, "template %q not found", id)
	}

	number := len(tpl.Versions) + 1
	if setActive {
		for i := range tpl.Versions {
			tpl.Versions[i].Active = false
		}
	}
	tpl.Versions = append(tpl.Versions, Version{
		Number:    number,
		Text:      text,
		Variables: variables,
		Metadata:  metadata,
		CreatedAt: time.Now(),
		Active:    setActive,
	})
	return number, nil
}

// Render substitutes variables into the active version and returns the
// rendered text with a usage id for later RecordPerformance calls.
// Placeholders without a supplied value fall back to the variable default;
// a required variable with neither fails with MissingVariable.
func (m *Manager) Render(id string, variables map[string]string) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tpl, ok := m.templates[id]
	if !ok {
		return "", "", aierrors.Newf(aierrors.KindTemplateNotFound, "template %q not found", id)
	}
	version := tpl.active()
	if version == nil {
		return "", "", aierrors.Newf(aierrors.KindTemplateNotFound, "template %q has no active version", id)
	}

	defaults := make(map[string]*string, len(version.Variables))
	for _, v := range version.Variables {
		defaults[v.Name] = v.Default
	}

	var missing string
	rendered := placeholderRe.ReplaceAllStringFunc(version.Text, func(match string) string {
		name := placeholderRe.FindStringSubmatch(match)[1]
		if value, ok := variables[name]; ok {
			return value
		}
		if def, ok := defaults[name]; ok && def != nil {
			return *def
		}
		if missing == "" {
			missing = name
		}
		return match
	})
	if missing != "" {
		return "", "", aierrors.Newf(aierrors.KindMissingVariable,
			"template %q requires variable %q", id, missing)
	}

	usageID := uuid.NewString()
	m.usage[usageID] = &UsageRecord{
		UsageID:    usageID,
		TemplateID: id,
		Version:    version.Number,
		RenderedAt: time.Now(),
	}
	return rendered, usageID, nil
}

// RecordPerformance appends a metrics row to a render's usage record.
func (m *Manager) RecordPerformance(usageID string, metrics map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.usage[usageID]
	if !ok {
		return aierrors.Newf(aierrors.KindTemplateNotFound, "usage record %q not found", usageID)
	}
	record.Metrics = append(record.Metrics, metrics)
	return nil
}

// Usage returns a template's usage records, oldest first.
func (m *Manager) Usage(templateID string) []UsageRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []UsageRecord
	for _, r := range m.usage {
		if r.TemplateID == templateID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RenderedAt.Before(out[j].RenderedAt) })
	return out
}

// Get returns a copy of a template and whether it exists.
func (m *Manager) Get(id string) (Template, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tpl, ok := m.templates[id]
	if !ok {
		return Template{}, false
	}
	out := Template{ID: tpl.ID, Versions: make([]Version, len(tpl.Versions))}
	copy(out.Versions, tpl.Versions)
	return out, true
}

// IDs returns all template ids, sorted.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.templates))
	for id := range m.templates {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
