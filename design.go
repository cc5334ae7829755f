package vgasim

import (
	"encoding/json"
	"io"
)

// SignalDir is the direction of a signal relative to its module.
type SignalDir int

// Signal directions.
const (
	DirInternal SignalDir = iota
	DirInput
	DirOutput
)

func (d SignalDir) String() string {
	switch d {
	case DirInput:
		return "input"
	case DirOutput:
		return "output"
	}
	return "internal"
}

// A Signal is one named wire or register of the design. Signals are created
// by LoadDesign and immutable thereafter.
type Signal struct {
	Path  string // fully qualified dotted path, unique within the design
	Width int    // bit width, 1 to 64
	Dir   SignalDir
}

// A ModuleDef is the flattened interface and body of the top-level module:
// its ordered ports plus a path-indexed arena of every signal reachable
// through nested instances. All cross-references resolve by path lookup;
// there are no back-references.
type ModuleDef struct {
	Name    string
	Ports   []*Signal // top-level inputs and outputs, in declaration order
	Signals map[string]*Signal

	constPool string // name of the pool referenced by the top module, or ""
}

// A ConstPool is the pseudo-module of literal and initial values synthesized
// by the external compiler. Its signals live under the pool's own reserved
// namespace and never collide with design paths.
type ConstPool struct {
	Name    string
	Signals map[string]*Signal
	Init    map[string]uint64
}

// Wire format of the compiler's design description.

type designDoc struct {
	Nodes []designNode `json:"nodes"`
}

type designNode struct {
	Kind      string       `json:"kind"` // "module" or "constpool"
	Name      string       `json:"name"`
	Top       bool         `json:"top,omitempty"`
	ConstPool string       `json:"constpool,omitempty"` // pool referenced by a module
	Vars      []designVar  `json:"vars,omitempty"`
	Instances []designInst `json:"instances,omitempty"`
}

type designVar struct {
	Name  string `json:"name"`
	Width int    `json:"width"`
	Dir   string `json:"dir,omitempty"`  // "input", "output" or "internal"
	Init  uint64 `json:"init,omitempty"` // constpool vars only
}

type designInst struct {
	Name   string `json:"name"`
	Module string `json:"module"`
}

// LoadDesign parses the hierarchical design description produced by the
// external compiler and flattens it into the top module's signal arena plus
// its bound constant pool. The description is read exactly once per
// compiled design. All failures are of kind LoadError.
func LoadDesign(r io.Reader) (*ModuleDef, *ConstPool, error) {
	var doc designDoc
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, nil, wrapf(LoadError, err, "malformed design description")
	}

	modules := make(map[string]*designNode)
	pools := make(map[string]*designNode)
	var top *designNode
	for i := range doc.Nodes {
		n := &doc.Nodes[i]
		switch n.Kind {
		case "module":
			if _, ok := modules[n.Name]; ok {
				return nil, nil, errf(LoadError, "duplicate module %q", n.Name)
			}
			modules[n.Name] = n
			if n.Top {
				if top != nil {
					return nil, nil, errf(LoadError, "multiple top-level modules: %q and %q", top.Name, n.Name)
				}
				top = n
			}
		case "constpool":
			if _, ok := pools[n.Name]; ok {
				return nil, nil, errf(LoadError, "duplicate constant pool %q", n.Name)
			}
			pools[n.Name] = n
		default:
			return nil, nil, errf(LoadError, "unknown node kind %q", n.Kind)
		}
	}
	if top == nil {
		return nil, nil, errf(LoadError, "no top-level module")
	}

	def := &ModuleDef{
		Name:      top.Name,
		Signals:   make(map[string]*Signal),
		constPool: top.ConstPool,
	}
	if err := flatten(def, modules, top, top.Name, nil); err != nil {
		return nil, nil, err
	}

	pool := &ConstPool{
		Name:    top.ConstPool,
		Signals: make(map[string]*Signal),
		Init:    make(map[string]uint64),
	}
	if top.ConstPool != "" {
		pn, ok := pools[top.ConstPool]
		if !ok {
			return nil, nil, errf(LoadError, "constant pool %q not found", top.ConstPool)
		}
		for _, v := range pn.Vars {
			s, err := newSignal(pn.Name+"."+v.Name, v.Width, DirInternal)
			if err != nil {
				return nil, nil, err
			}
			if _, ok := pool.Signals[s.Path]; ok {
				return nil, nil, errf(LoadError, "duplicate signal path %q", s.Path)
			}
			pool.Signals[s.Path] = s
			pool.Init[s.Path] = v.Init & widthMask(v.Width)
		}
	}
	return def, pool, nil
}

func newSignal(path string, width int, dir SignalDir) (*Signal, error) {
	if width < 1 || width > 64 {
		return nil, errf(LoadError, "signal %q: width %d out of range", path, width)
	}
	return &Signal{Path: path, Width: width, Dir: dir}, nil
}

// flatten walks the instance tree below node and adds one Signal per var to
// the arena, rooted at prefix. stack carries the module names of the current
// walk to reject recursive instantiation.
func flatten(def *ModuleDef, modules map[string]*designNode, node *designNode, prefix string, stack []string) error {
	for _, m := range stack {
		if m == node.Name {
			return errf(LoadError, "recursive instantiation of module %q", node.Name)
		}
	}
	stack = append(stack, node.Name)

	for _, v := range node.Vars {
		dir, err := parseDir(v.Dir)
		if err != nil {
			return err
		}
		s, err := newSignal(prefix+"."+v.Name, v.Width, dir)
		if err != nil {
			return err
		}
		if _, ok := def.Signals[s.Path]; ok {
			return errf(LoadError, "duplicate signal path %q", s.Path)
		}
		def.Signals[s.Path] = s
		if len(stack) == 1 && dir != DirInternal {
			def.Ports = append(def.Ports, s)
		}
	}
	for _, inst := range node.Instances {
		sub, ok := modules[inst.Module]
		if !ok {
			return errf(LoadError, "instance %s.%s: module %q not found", prefix, inst.Name, inst.Module)
		}
		if err := flatten(def, modules, sub, prefix+"."+inst.Name, stack); err != nil {
			return err
		}
	}
	return nil
}

func parseDir(s string) (SignalDir, error) {
	switch s {
	case "input":
		return DirInput, nil
	case "output":
		return DirOutput, nil
	case "internal", "":
		return DirInternal, nil
	}
	return DirInternal, errf(LoadError, "unknown signal direction %q", s)
}

func widthMask(w int) uint64 {
	if w >= 64 {
		return ^uint64(0)
	}
	return 1<<uint(w) - 1
}
