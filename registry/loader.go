// Package registry implements the coordination core's declarative-agent
// catalogue (AgentRegistry, spec component C8): recursive file discovery,
// metadata-preamble parsing, and capability-indexed best-match lookup.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/itsneelabh/gomind-orchestrate/core"
)

const frontMatterSentinel = "---"

// frontMatter mirrors AgentDefinition's YAML-addressable fields. It is kept
// separate from core.AgentDefinition because the file format allows fields
// core.AgentDefinition derives (Category, Instructions, SourcePath).
type frontMatter struct {
	Name         string   `yaml:"name"`
	DisplayName  string   `yaml:"display_name"`
	ModelID      string   `yaml:"model"`
	Temperature  float64  `yaml:"temperature"`
	MaxTokens    int      `yaml:"max_tokens"`
	Capabilities []string `yaml:"capabilities"`
	Category     string   `yaml:"category"`
	Phase        string   `yaml:"phase"`
	Priority     string   `yaml:"priority"`
	Tools        []string `yaml:"tools"`
	Tags         []string `yaml:"tags"`
}

// LoadError describes one file that failed to load. Loading continues past
// individual failures (spec.md §4.8: "reject file on failure with a
// diagnostic; continue loading others").
type LoadError struct {
	Path string
	Err  error
}

func (e LoadError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// parseFile splits a declarative agent file into its metadata preamble and
// free-form instructions body, then validates required fields.
func parseFile(rootPath, path string, data []byte) (core.AgentDefinition, error) {
	content := string(data)
	lines := strings.Split(content, "\n")

	if len(lines) == 0 || strings.TrimSpace(lines[0]) != frontMatterSentinel {
		return core.AgentDefinition{}, fmt.Errorf("missing metadata preamble (expected leading %q)", frontMatterSentinel)
	}

	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == frontMatterSentinel {
			end = i
			break
		}
	}
	if end == -1 {
		return core.AgentDefinition{}, fmt.Errorf("unterminated metadata preamble")
	}

	yamlBlock := strings.Join(lines[1:end], "\n")
	instructions := strings.TrimSpace(strings.Join(lines[end+1:], "\n"))

	var fm frontMatter
	if err := yaml.Unmarshal([]byte(yamlBlock), &fm); err != nil {
		return core.AgentDefinition{}, fmt.Errorf("invalid metadata YAML: %w", err)
	}

	if fm.Name == "" {
		return core.AgentDefinition{}, fmt.Errorf("missing required field: name")
	}
	if fm.ModelID == "" {
		return core.AgentDefinition{}, fmt.Errorf("missing required field: model")
	}

	category := fm.Category
	if category == "" {
		category = inferCategory(rootPath, path)
	}

	priority := core.AgentPriority(fm.Priority)
	switch priority {
	case core.PriorityLow, core.PriorityMedium, core.PriorityHigh:
	default:
		priority = core.PriorityMedium
	}

	return core.AgentDefinition{
		Name:         fm.Name,
		DisplayName:  fm.DisplayName,
		ModelID:      fm.ModelID,
		Temperature:  fm.Temperature,
		MaxTokens:    fm.MaxTokens,
		Capabilities: fm.Capabilities,
		Category:     category,
		Phase:        fm.Phase,
		Priority:     priority,
		Tools:        fm.Tools,
		Tags:         fm.Tags,
		Instructions: instructions,
		SourcePath:   path,
	}, nil
}

// inferCategory falls back to the immediate parent directory name relative
// to rootPath when a file's preamble omits category (spec.md §4.8: "Infer
// category from path segment when not set").
func inferCategory(rootPath, path string) string {
	rel, err := filepath.Rel(rootPath, path)
	if err != nil {
		return ""
	}
	dir := filepath.Dir(rel)
	if dir == "." {
		return ""
	}
	segments := strings.Split(filepath.ToSlash(dir), "/")
	return segments[len(segments)-1]
}

// loadTree recursively walks rootPath, parsing every regular file it finds.
// Per-file failures are collected and returned alongside whatever agents did
// load successfully.
func loadTree(rootPath string) ([]core.AgentDefinition, []LoadError) {
	var agents []core.AgentDefinition
	var errs []LoadError

	_ = filepath.WalkDir(rootPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			errs = append(errs, LoadError{Path: path, Err: err})
			return nil
		}
		if d.IsDir() {
			return nil
		}

		data, readErr := os.ReadFile(path)
		if readErr != nil {
			errs = append(errs, LoadError{Path: path, Err: readErr})
			return nil
		}

		agent, parseErr := parseFile(rootPath, path, data)
		if parseErr != nil {
			errs = append(errs, LoadError{Path: path, Err: parseErr})
			return nil
		}
		agents = append(agents, agent)
		return nil
	})

	return agents, errs
}
