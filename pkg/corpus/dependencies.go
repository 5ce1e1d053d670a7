package corpus

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// BaseFHIRPackage is the core FHIR package. It is provided by the base
// definitions, so it is never uploaded as a guide and always satisfies
// dependencies on it.
const BaseFHIRPackage = "hl7.fhir.r4.core"

// IGInfo describes one implementation guide from its package.json.
type IGInfo struct {
	ID           string
	Name         string
	Version      string
	URL          string
	Path         string
	Dependencies []string
}

type packageJSON struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	URL          string            `json:"url"`
	Dependencies map[string]string `json:"dependencies"`
}

// MissingDependencyError reports a guide depending on one that is absent.
type MissingDependencyError struct {
	IG         string
	Dependency string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("Missing dependency %s (required by %s)", e.Dependency, e.IG)
}

// CircularDependencyError reports a dependency cycle.
type CircularDependencyError struct {
	Path []string
}

func (e *CircularDependencyError) Error() string {
	return "Circular dependency found: " + strings.Join(e.Path, " -> ")
}

// DependencyChecker validates the dependency graph of a corpus directory.
type DependencyChecker struct {
	// IgnoreVersion keys guides by name only.
	IgnoreVersion bool
	logger        *slog.Logger
}

// NewDependencyChecker creates a checker.
func NewDependencyChecker(ignoreVersion bool) *DependencyChecker {
	return &DependencyChecker{
		IgnoreVersion: ignoreVersion,
		logger:        slog.Default().With("component", "corpus"),
	}
}

// Key identifies a guide: name@version, or name alone when versions are
// ignored. Versions that parse as semver are normalised.
func (c *DependencyChecker) Key(name, version string) string {
	if c.IgnoreVersion {
		return name
	}
	if v, err := semver.NewVersion(version); err == nil {
		version = v.String()
	}
	return name + "@" + version
}

// Check reads package.json from every guide directory under dir and verifies
// that every dependency is present and that there are no cycles. It returns
// the guides other than the base FHIR package, sorted by ID.
func (c *DependencyChecker) Check(dir string) ([]IGInfo, error) {
	igDirs, err := listIGDirs(dir)
	if err != nil {
		return nil, err
	}

	var infos []IGInfo
	graph := make(map[string][]string)
	for _, name := range igDirs {
		info, err := c.readInfo(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		if info == nil {
			continue
		}
		c.logger.Debug("found implementation guide", "id", info.ID, "path", info.Path)
		if info.Name != BaseFHIRPackage {
			infos = append(infos, *info)
		}
		graph[info.ID] = info.Dependencies
	}

	ids := make([]string, 0, len(graph))
	for id := range graph {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := c.visit([]string{id}, graph); err != nil {
			return nil, err
		}
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos, nil
}

func (c *DependencyChecker) readInfo(igDir string) (*IGInfo, error) {
	data, err := os.ReadFile(filepath.Join(igDir, "package.json"))
	if errors.Is(err, os.ErrNotExist) {
		c.logger.Warn("implementation guide has no package.json, dependencies not checked", "path", igDir)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read package.json in %s: %w", igDir, err)
	}
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("invalid package.json in %s: %w", igDir, err)
	}
	if pkg.Name == "" {
		return nil, fmt.Errorf("package.json in %s has no name", igDir)
	}

	info := &IGInfo{
		ID:      c.Key(pkg.Name, pkg.Version),
		Name:    pkg.Name,
		Version: pkg.Version,
		URL:     pkg.URL,
		Path:    igDir,
	}
	names := make([]string, 0, len(pkg.Dependencies))
	for name := range pkg.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if name == BaseFHIRPackage {
			continue
		}
		info.Dependencies = append(info.Dependencies, c.Key(name, pkg.Dependencies[name]))
	}
	return info, nil
}

// visit walks the graph depth first from the last element of path.
func (c *DependencyChecker) visit(path []string, graph map[string][]string) error {
	id := path[len(path)-1]
	deps, ok := graph[id]
	if !ok {
		return &MissingDependencyError{IG: path[len(path)-2], Dependency: id}
	}
	for _, dep := range deps {
		for _, seen := range path {
			if seen == dep {
				return &CircularDependencyError{Path: append(append([]string(nil), path...), dep)}
			}
		}
		if err := c.visit(append(path, dep), graph); err != nil {
			return err
		}
	}
	return nil
}
