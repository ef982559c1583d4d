package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Request: один вызов генерации.
type Request struct {
	Prompt          string
	Temperature     float32
	MaxOutputTokens int
	// Model overrides the engine default when set.
	Model string
}

// Engine produces raw text for a prompt. A response without text is ("", nil):
// callers treat it as a generation failure, not as an error.
type Engine interface {
	Name() string
	GetModel() string
	Generate(ctx context.Context, req Request) (string, error)
}

// Registry хранит доступные движки по имени.
type Registry struct {
	engines map[string]Engine
	aliases map[string]string
}

func NewRegistry(engines ...Engine) *Registry {
	r := &Registry{
		engines: make(map[string]Engine),
		aliases: map[string]string{"openai": "gpt"},
	}
	for _, e := range engines {
		if e == nil {
			continue
		}
		r.engines[e.Name()] = e
	}
	return r
}

func (r *Registry) Lookup(name string) (Engine, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if a, ok := r.aliases[name]; ok {
		name = a
	}
	e, ok := r.engines[name]
	return e, ok
}

func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.engines))
	for n := range r.engines {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Selection: движок и (опционально) модель, выбранные для чата.
type Selection struct {
	Engine Engine
	Model  string
}

// ModelName is the model that will actually be used.
func (s Selection) ModelName() string {
	if s.Model != "" {
		return s.Model
	}
	if s.Engine == nil {
		return ""
	}
	return s.Engine.GetModel()
}

func (s Selection) String() string {
	if s.Engine == nil {
		return "none"
	}
	return fmt.Sprintf("%s (%s)", s.Engine.Name(), s.ModelName())
}

// Manager remembers the engine chosen per chat, falling back to a default.
type Manager struct {
	def Engine
	m   sync.Map // chatID -> Selection
}

func NewManager(defaultEngine Engine) *Manager {
	return &Manager{def: defaultEngine}
}

func (m *Manager) Get(chatID int64) Selection {
	if v, ok := m.m.Load(chatID); ok {
		return v.(Selection)
	}
	return Selection{Engine: m.def}
}

func (m *Manager) Set(chatID int64, e Engine, model string) {
	m.m.Store(chatID, Selection{Engine: e, Model: strings.TrimSpace(model)})
}

func (m *Manager) Reset(chatID int64) {
	m.m.Delete(chatID)
}
