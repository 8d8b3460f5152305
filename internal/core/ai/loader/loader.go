package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	goruntime "runtime"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/aitree/internal/core/ai"
	"github.com/zeusync/aitree/internal/core/observability/log"
	"github.com/zeusync/aitree/pkg/concurrent"
)

var (
	ErrDuplicateTree     = errors.New("tree already loaded")
	ErrEmptyTreeName     = errors.New("tree name is empty")
	ErrMissingType       = errors.New("node type is empty")
	ErrUnsupportedFormat = errors.New("unsupported tree file format")
)

// Document is a set of tree definitions as found in a YAML or JSON file.
type Document struct {
	Trees []TreeDefinition `json:"trees" yaml:"trees"`
}

type TreeDefinition struct {
	Name string         `json:"name" yaml:"name"`
	Root NodeDefinition `json:"root" yaml:"root"`
}

// NodeDefinition describes one node. Type carries the parameters, e.g.
// "Idle{500}" or "Steer{0.7,0.3}(Wander,GroupSeek{1})". An empty condition
// means True.
type NodeDefinition struct {
	Name      string           `json:"name,omitempty" yaml:"name,omitempty"`
	Type      string           `json:"type" yaml:"type"`
	Condition string           `json:"condition,omitempty" yaml:"condition,omitempty"`
	Children  []NodeDefinition `json:"children,omitempty" yaml:"children,omitempty"`
}

// DecodeJSON reads a document from JSON.
func DecodeJSON(r io.Reader) (*Document, error) {
	var d Document
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return nil, err
	}
	return &d, nil
}

// DecodeYAML reads a document from YAML.
func DecodeYAML(r io.Reader) (*Document, error) {
	var d Document
	if err := yaml.NewDecoder(r).Decode(&d); err != nil {
		return nil, err
	}
	return &d, nil
}

// TreeLoader builds named trees through a registry and keeps them for
// assignment to AIs. A tree that fails to build is skipped and reported;
// the others of the same document are still loaded.
type TreeLoader struct {
	registry *ai.Registry
	logger   log.Log

	mu    sync.RWMutex
	trees map[string]ai.TreeNode
}

func New(registry *ai.Registry, logger log.Log) *TreeLoader {
	if logger == nil {
		logger = log.Provide()
	}
	return &TreeLoader{
		registry: registry,
		logger:   logger,
		trees:    make(map[string]ai.TreeNode),
	}
}

// Load builds every tree of the document. The returned error joins the
// diagnostics of all trees that failed.
func (l *TreeLoader) Load(doc *Document) error {
	var errs []error
	for i, def := range doc.Trees {
		if strings.TrimSpace(def.Name) == "" {
			errs = append(errs, fmt.Errorf("trees[%d]: %w", i, ErrEmptyTreeName))
			continue
		}
		root, err := l.Build(def.Root)
		if err != nil {
			errs = append(errs, fmt.Errorf("tree %q: %w", def.Name, err))
			continue
		}
		if err := l.add(def.Name, root); err != nil {
			errs = append(errs, err)
			continue
		}
		l.logger.Info("behaviour tree loaded", log.String("tree", def.Name), log.Int("nodes", countNodes(root)))
	}
	return errors.Join(errs...)
}

// Build constructs a tree from a node definition. Decorator child counts
// are validated once all children are attached.
func (l *TreeLoader) Build(def NodeDefinition) (ai.TreeNode, error) {
	root, err := l.build(def, "root")
	if err != nil {
		return nil, err
	}
	if err := ai.Validate(root); err != nil {
		return nil, err
	}
	return root, nil
}

func (l *TreeLoader) build(def NodeDefinition, path string) (ai.TreeNode, error) {
	if strings.TrimSpace(def.Type) == "" {
		return nil, fmt.Errorf("%s: %w", path, ErrMissingType)
	}
	cond, err := ai.ParseCondition(l.registry, def.Condition)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	node, err := ai.ParseTreeNode(l.registry, def.Type, def.Name, cond)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for i, childDef := range def.Children {
		childPath := fmt.Sprintf("%s.children[%d]", path, i)
		child, err := l.build(childDef, childPath)
		if err != nil {
			return nil, err
		}
		if !node.AddChild(child) {
			return nil, fmt.Errorf("%s: %w: %s refuses another child", childPath, ai.ErrWrongChildCount, node.Type())
		}
	}
	return node, nil
}

func (l *TreeLoader) add(name string, root ai.TreeNode) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.trees[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateTree, name)
	}
	l.trees[name] = root
	return nil
}

// LoadFile decodes a .yaml, .yml or .json file and loads its trees.
func (l *TreeLoader) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var doc *Document
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		doc, err = DecodeYAML(f)
	case ".json":
		doc, err = DecodeJSON(f)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	if err := l.Load(doc); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// LoadPath loads a single file, or every tree file below a directory. Files
// are loaded in parallel; diagnostics are reported in path order.
func (l *TreeLoader) LoadPath(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return l.LoadFile(path)
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(p)) {
		case ".yaml", ".yml", ".json":
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return err
	}

	errs := make([]error, len(files))
	indexes := make([]int, len(files))
	for i := range indexes {
		indexes[i] = i
	}
	_ = concurrent.Bounded(context.Background(), indexes, goruntime.NumCPU(), func(_ context.Context, i int) error {
		errs[i] = l.LoadFile(files[i])
		return nil
	})
	return errors.Join(errs...)
}

// Tree returns the root of a loaded tree.
func (l *TreeLoader) Tree(name string) (ai.TreeNode, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	root, ok := l.trees[name]
	return root, ok
}

// Names lists the loaded trees, sorted.
func (l *TreeLoader) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.trees))
	for name := range l.trees {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func countNodes(root ai.TreeNode) int {
	n := 0
	ai.Walk(root, func(ai.TreeNode) bool {
		n++
		return true
	})
	return n
}
