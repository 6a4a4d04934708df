package registry

import (
	"sort"
	"sync"

	"github.com/itsneelabh/gomind-orchestrate/core"
)

// index holds one immutable snapshot of loaded agents plus their lookup
// indexes. Registry.Discover and Registry.Register swap the pointer
// atomically under mu (spec.md
// §5: "AgentRegistry indexes are built once at discovery time and are
// read-only thereafter, except for explicit reload which swaps the index
// atomically").
type index struct {
	byName       map[string]core.AgentDefinition
	byCategory   map[string][]core.AgentDefinition
	byPhase      map[string][]core.AgentDefinition
	byCapability map[string][]core.AgentDefinition
	byTag        map[string][]core.AgentDefinition
	byModel      map[string][]core.AgentDefinition
	all          []core.AgentDefinition
}

func buildIndex(agents []core.AgentDefinition) *index {
	idx := &index{
		byName:       make(map[string]core.AgentDefinition, len(agents)),
		byCategory:   make(map[string][]core.AgentDefinition),
		byPhase:      make(map[string][]core.AgentDefinition),
		byCapability: make(map[string][]core.AgentDefinition),
		byTag:        make(map[string][]core.AgentDefinition),
		byModel:      make(map[string][]core.AgentDefinition),
		all:          agents,
	}
	for _, a := range agents {
		idx.byName[a.Name] = a
		if a.Category != "" {
			idx.byCategory[a.Category] = append(idx.byCategory[a.Category], a)
		}
		if a.Phase != "" {
			idx.byPhase[a.Phase] = append(idx.byPhase[a.Phase], a)
		}
		for _, c := range a.Capabilities {
			idx.byCapability[c] = append(idx.byCapability[c], a)
		}
		for _, t := range a.Tags {
			idx.byTag[t] = append(idx.byTag[t], a)
		}
		if a.ModelID != "" {
			idx.byModel[a.ModelID] = append(idx.byModel[a.ModelID], a)
		}
	}
	return idx
}

// Registry is the concrete AgentRegistry implementation.
type Registry struct {
	mu     sync.RWMutex
	idx    *index
	logger core.Logger
}

// New constructs an empty Registry. Call Discover or Register to populate it.
func New(logger core.Logger) *Registry {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if caware, ok := logger.(core.ComponentAwareLogger); ok {
		logger = caware.WithComponent("framework/registry")
	}
	return &Registry{idx: buildIndex(nil), logger: logger}
}

// Discover recursively loads every declarative agent file under rootPath,
// replacing the registry's current index. Per-file errors are returned
// alongside whatever loaded successfully; discovery itself never aborts
// early on a single bad file.
func (r *Registry) Discover(rootPath string) ([]LoadError, error) {
	agents, errs := loadTree(rootPath)
	for _, e := range errs {
		r.logger.Warn("registry: failed to load agent file", map[string]interface{}{"path": e.Path, "error": e.Err.Error()})
	}

	r.mu.Lock()
	r.idx = buildIndex(agents)
	r.mu.Unlock()

	r.logger.Info("registry: discovery complete", map[string]interface{}{"loaded": len(agents), "failed": len(errs)})
	return errs, nil
}

// Register adds or replaces a single agent definition without a full
// re-discovery. Rebuilds the index snapshot so concurrent readers never see
// a partially-updated index.
func (r *Registry) Register(agent core.AgentDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()

	agents := make([]core.AgentDefinition, 0, len(r.idx.all)+1)
	for _, a := range r.idx.all {
		if a.Name != agent.Name {
			agents = append(agents, a)
		}
	}
	agents = append(agents, agent)
	r.idx = buildIndex(agents)
}

func (r *Registry) snapshot() *index {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.idx
}

// GetByName returns the agent with the given name, or false if absent.
func (r *Registry) GetByName(name string) (core.AgentDefinition, bool) {
	idx := r.snapshot()
	a, ok := idx.byName[name]
	return a, ok
}

// GetByCategory returns all agents in the given category.
func (r *Registry) GetByCategory(category string) []core.AgentDefinition {
	return append([]core.AgentDefinition(nil), r.snapshot().byCategory[category]...)
}

// GetByPhase returns all agents assigned to the given phase.
func (r *Registry) GetByPhase(phase string) []core.AgentDefinition {
	return append([]core.AgentDefinition(nil), r.snapshot().byPhase[phase]...)
}

// GetByCapability returns all agents declaring the given capability.
func (r *Registry) GetByCapability(capability string) []core.AgentDefinition {
	return append([]core.AgentDefinition(nil), r.snapshot().byCapability[capability]...)
}

// GetByTag returns all agents carrying the given tag.
func (r *Registry) GetByTag(tag string) []core.AgentDefinition {
	return append([]core.AgentDefinition(nil), r.snapshot().byTag[tag]...)
}

// GetByModel returns all agents configured for the given model.
func (r *Registry) GetByModel(model string) []core.AgentDefinition {
	return append([]core.AgentDefinition(nil), r.snapshot().byModel[model]...)
}

// All returns every loaded agent.
func (r *Registry) All() []core.AgentDefinition {
	return append([]core.AgentDefinition(nil), r.snapshot().all...)
}

// MatchCriteria is the bestMatch() input (spec.md §4.8).
type MatchCriteria struct {
	Type         string // matched against category
	Phase        string
	Capabilities []string
	Model        string // preferred model, optional
}

// BestMatch scores every agent against criteria and returns the winner.
// Scoring: +3 per matched required capability, +2 on phase match, +1 on
// preferred model match; ties broken by priority (high>medium>low), then
// lexicographic name. Agents outside criteria.Type, or matching none of the
// requested capabilities, are skipped; with no capabilities requested every
// agent in the type is a candidate. Returns (zero, false) if none is left.
func (r *Registry) BestMatch(criteria MatchCriteria) (core.AgentDefinition, bool) {
	idx := r.snapshot()

	type scored struct {
		agent core.AgentDefinition
		score int
	}

	var candidates []scored
	for _, a := range idx.all {
		if criteria.Type != "" && a.Category != criteria.Type {
			continue
		}

		matchedCaps := 0
		for _, want := range criteria.Capabilities {
			for _, have := range a.Capabilities {
				if want == have {
					matchedCaps++
					break
				}
			}
		}
		if len(criteria.Capabilities) > 0 && matchedCaps == 0 {
			continue
		}

		score := matchedCaps * 3
		if criteria.Phase != "" && a.Phase == criteria.Phase {
			score += 2
		}
		if criteria.Model != "" && a.ModelID == criteria.Model {
			score += 1
		}
		candidates = append(candidates, scored{agent: a, score: score})
	}

	if len(candidates) == 0 {
		return core.AgentDefinition{}, false
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		if pr := core.ComparePriority(candidates[i].agent.Priority, candidates[j].agent.Priority); pr != 0 {
			return pr > 0
		}
		return candidates[i].agent.Name < candidates[j].agent.Name
	})

	return candidates[0].agent, true
}
