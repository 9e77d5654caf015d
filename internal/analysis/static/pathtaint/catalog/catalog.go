// Filename: catalog/catalog.go
// Package catalog holds the tables that tell the path taint analysis which C
// calls introduce untrusted data, which consume a path, which constrain a value
// and which move data between buffers. Rules are plain data so that callers can
// extend them without touching the engine.
package catalog

import (
	"errors"
	"fmt"
	"sort"
)

// Role tags what a catalog entry means to the analysis.
type Role string

const (
	// RoleSource marks a call that yields untrusted data, either through its
	// return value or by writing into a buffer argument.
	RoleSource Role = "source"
	// RoleParamSource marks a formal parameter of a function as untrusted
	// (argv of main).
	RoleParamSource Role = "param_source"
	// RoleSink marks a call whose argument at ArgIndex is used as a path. A
	// call with several path arguments has one entry per argument.
	RoleSink Role = "sink"
	// RoleSanitizer marks an operation whose output is clean regardless of
	// its input.
	RoleSanitizer Role = "sanitizer"
	// RolePropagator marks a buffer operation that moves data from its other
	// arguments into the destination argument.
	RolePropagator Role = "propagator"
)

// Mode controls how a propagator or output-buffer source writes its destination.
type Mode string

const (
	// ModeAppend keeps what the destination already held (strcat).
	ModeAppend Mode = "append"
	// ModeCopy replaces what the destination held (strcpy, sprintf).
	ModeCopy Mode = "copy"
	// ModeReturn writes no argument; the call's result carries every argument
	// (canonicalize_file_name).
	ModeReturn Mode = "return"
)

// LiteralOperation is the pseudo operation name for assigning a compile-time
// constant. While it is listed as a sanitizer, assigning a literal to a
// variable replaces the old value; without it the old value, and its taint,
// survives the assignment.
const LiteralOperation = "<literal>"

// ErrInvalidEntry is returned when a catalog entry cannot be used.
var ErrInvalidEntry = errors.New("invalid catalog entry")

// Entry is one row of the catalog.
type Entry struct {
	Name string `json:"name" yaml:"name"`
	Role Role   `json:"role" yaml:"role"`
	// ArgIndex is the path argument for sinks, the destination for
	// propagators and output-buffer sources, and the parameter position for
	// parameter sources. A source without an index taints its return value,
	// as does a propagator in ModeReturn.
	ArgIndex *int `json:"arg_index,omitempty" yaml:"arg_index,omitempty"`
	// Variadic extends ArgIndex to every later argument (scanf family).
	Variadic    bool   `json:"variadic,omitempty" yaml:"variadic,omitempty"`
	Mode        Mode   `json:"mode,omitempty" yaml:"mode,omitempty"`
	Category    string `json:"category,omitempty" yaml:"category,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Index returns the argument index and whether one is set.
func (e Entry) Index() (int, bool) {
	if e.ArgIndex == nil {
		return 0, false
	}
	return *e.ArgIndex, true
}

// Covers reports whether argument position i is named by the entry.
func (e Entry) Covers(i int) bool {
	idx, ok := e.Index()
	if !ok {
		return false
	}
	if e.Variadic {
		return i >= idx
	}
	return i == idx
}

// Validate checks that the entry carries everything its role needs.
func (e Entry) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidEntry)
	}
	idx, hasIdx := e.Index()
	if hasIdx && idx < 0 {
		return fmt.Errorf("%w: %s: arg_index must not be negative", ErrInvalidEntry, e.Name)
	}
	switch e.Role {
	case RoleSource, RoleSanitizer:
	case RoleSink, RoleParamSource:
		if !hasIdx {
			return fmt.Errorf("%w: %s: role %q requires arg_index", ErrInvalidEntry, e.Name, e.Role)
		}
	case RolePropagator:
		switch e.Mode {
		case ModeAppend, ModeCopy:
			if !hasIdx {
				return fmt.Errorf("%w: %s: role %q requires arg_index", ErrInvalidEntry, e.Name, e.Role)
			}
		case ModeReturn:
			if hasIdx {
				return fmt.Errorf("%w: %s: mode %q takes no arg_index", ErrInvalidEntry, e.Name, ModeReturn)
			}
		default:
			return fmt.Errorf("%w: %s: propagator mode must be %q, %q or %q", ErrInvalidEntry, e.Name, ModeAppend, ModeCopy, ModeReturn)
		}
	default:
		return fmt.Errorf("%w: %s: unknown role %q", ErrInvalidEntry, e.Name, e.Role)
	}
	return nil
}

// entryKey identifies an entry for replacement. Sinks are also keyed by
// argument so that one call can consume several paths (rename).
type entryKey struct {
	name string
	role Role
	arg  int
}

func keyOf(e Entry) entryKey {
	k := entryKey{name: e.Name, role: e.Role, arg: -1}
	if e.Role == RoleSink {
		k.arg, _ = e.Index()
	}
	return k
}

// Catalog is an immutable, indexed set of entries. It is safe for concurrent use.
type Catalog struct {
	entries      []Entry
	sources      map[string]Entry
	paramSources map[string][]Entry
	sinks        map[string][]Entry
	sanitizers   map[string]Entry
	propagators  map[string]Entry
}

// New validates and indexes the entries. A later entry with the same name and
// role, and for sinks the same argument, replaces an earlier one.
func New(entries ...Entry) (*Catalog, error) {
	order := make([]entryKey, 0, len(entries))
	byKey := make(map[entryKey]Entry, len(entries))
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return nil, err
		}
		k := keyOf(e)
		if _, seen := byKey[k]; !seen {
			order = append(order, k)
		}
		byKey[k] = e
	}

	c := &Catalog{
		sources:      make(map[string]Entry),
		paramSources: make(map[string][]Entry),
		sinks:        make(map[string][]Entry),
		sanitizers:   make(map[string]Entry),
		propagators:  make(map[string]Entry),
	}
	for _, k := range order {
		e := byKey[k]
		c.entries = append(c.entries, e)
		switch e.Role {
		case RoleSource:
			c.sources[e.Name] = e
		case RoleParamSource:
			c.paramSources[e.Name] = append(c.paramSources[e.Name], e)
		case RoleSink:
			c.sinks[e.Name] = append(c.sinks[e.Name], e)
		case RoleSanitizer:
			c.sanitizers[e.Name] = e
		case RolePropagator:
			c.propagators[e.Name] = e
		}
	}
	return c, nil
}

// Merge returns a new catalog holding the receiver's entries followed by extra.
func (c *Catalog) Merge(extra ...Entry) (*Catalog, error) {
	all := make([]Entry, 0, len(c.entries)+len(extra))
	all = append(all, c.entries...)
	all = append(all, extra...)
	return New(all...)
}

// IsSource reports whether a call to name introduces untrusted data.
func (c *Catalog) IsSource(name string) bool {
	_, ok := c.sources[name]
	return ok
}

// Source returns the source entry for a call name.
func (c *Catalog) Source(name string) (Entry, bool) {
	e, ok := c.sources[name]
	return e, ok
}

// ParamSources returns the untrusted formal parameters of a function.
func (c *Catalog) ParamSources(function string) []Entry {
	return c.paramSources[function]
}

// IsSink reports whether name consumes a path, and at which argument. For a
// call with several path arguments it returns the lowest; SinkArgs lists all.
func (c *Catalog) IsSink(name string) (bool, int) {
	args := c.SinkArgs(name)
	if len(args) == 0 {
		return false, -1
	}
	return true, args[0]
}

// SinkArgs returns the path arguments of a call in ascending order, or nil
// when name is not a sink.
func (c *Catalog) SinkArgs(name string) []int {
	entries := c.sinks[name]
	if len(entries) == 0 {
		return nil
	}
	args := make([]int, 0, len(entries))
	for _, e := range entries {
		idx, _ := e.Index()
		args = append(args, idx)
	}
	sort.Ints(args)
	return args
}

// IsSanitizer reports whether an operation (a call name or LiteralOperation)
// clears taint.
func (c *Catalog) IsSanitizer(operation string) bool {
	_, ok := c.sanitizers[operation]
	return ok
}

// Propagator returns the propagator entry for a call name.
func (c *Catalog) Propagator(name string) (Entry, bool) {
	e, ok := c.propagators[name]
	return e, ok
}

// Entries returns a copy of all entries ordered by role then name.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Role != out[j].Role {
			return out[i].Role < out[j].Role
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		a, _ := out[i].Index()
		b, _ := out[j].Index()
		return a < b
	})
	return out
}

// Len returns the number of entries.
func (c *Catalog) Len() int { return len(c.entries) }

func intPtr(i int) *int { return &i }
