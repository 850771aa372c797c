// Package snapshot serializes script values for save games and tooling.
// A value graph is captured into a tree of Nodes, which is encoded as
// canonical CBOR (the default) or MessagePack.
package snapshot

import (
	"errors"
	"fmt"

	"github.com/chazu/hatchvm/vm"
)

// NodeKind identifies the kind of value a Node holds.
type NodeKind uint8

const (
	NodeNull     NodeKind = 0
	NodeInteger  NodeKind = 1
	NodeDecimal  NodeKind = 2
	NodeString   NodeKind = 3
	NodeArray    NodeKind = 4
	NodeMap      NodeKind = 5
	NodeInstance NodeKind = 6
)

func (k NodeKind) String() string {
	switch k {
	case NodeNull:
		return "null"
	case NodeInteger:
		return "integer"
	case NodeDecimal:
		return "decimal"
	case NodeString:
		return "string"
	case NodeArray:
		return "array"
	case NodeMap:
		return "map"
	case NodeInstance:
		return "instance"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Node is one serialized value. Maps and instances keep their keys in
// Keys, parallel to Items.
type Node struct {
	Kind  NodeKind `cbor:"1,keyasint" msgpack:"k"`
	Int   int32    `cbor:"2,keyasint,omitempty" msgpack:"i,omitempty"`
	Dec   float32  `cbor:"3,keyasint,omitempty" msgpack:"d,omitempty"`
	Str   string   `cbor:"4,keyasint,omitempty" msgpack:"s,omitempty"`
	Items []Node   `cbor:"5,keyasint,omitempty" msgpack:"a,omitempty"`
	Keys  []string `cbor:"6,keyasint,omitempty" msgpack:"m,omitempty"`
}

// MaxDepth bounds nesting so self-referencing containers fail instead of
// recursing forever.
const MaxDepth = 64

// ErrUnsupported is returned for values that have no serialized form.
var ErrUnsupported = errors.New("snapshot: value cannot be serialized")

// Capture converts v into a Node tree. The caller must hold the global
// lock. Functions, natives, classes, namespaces, streams and entities are
// not serializable.
func Capture(v vm.Value) (Node, error) {
	return capture(v, 0)
}

func capture(v vm.Value, depth int) (Node, error) {
	if depth > MaxDepth {
		return Node{}, fmt.Errorf("snapshot: nesting deeper than %d", MaxDepth)
	}
	v = vm.Delink(v)
	switch v.Type() {
	case vm.NullType:
		return Node{Kind: NodeNull}, nil
	case vm.IntegerType:
		return Node{Kind: NodeInteger, Int: v.AsInteger()}, nil
	case vm.DecimalType:
		return Node{Kind: NodeDecimal, Dec: v.AsDecimal()}, nil
	case vm.ObjectType:
		return captureObject(v.AsObject(), depth)
	default:
		return Node{}, fmt.Errorf("%w: %s", ErrUnsupported, vm.TypeName(v))
	}
}

func captureObject(o vm.Object, depth int) (Node, error) {
	switch o := o.(type) {
	case *vm.StringObject:
		return Node{Kind: NodeString, Str: o.String()}, nil
	case *vm.ArrayObject:
		n := Node{Kind: NodeArray, Items: make([]Node, 0, o.Len())}
		for _, e := range o.Values {
			c, err := capture(e, depth+1)
			if err != nil {
				return Node{}, err
			}
			n.Items = append(n.Items, c)
		}
		return n, nil
	case *vm.MapObject:
		return captureEntries(Node{Kind: NodeMap}, o, depth)
	case *vm.InstanceObject:
		n := Node{Kind: NodeInstance}
		if o.Class != nil {
			n.Str = o.Class.Name
		}
		if o.Fields == nil {
			return n, nil
		}
		return captureEntries(n, o.Fields, depth)
	default:
		return Node{}, fmt.Errorf("%w: %s", ErrUnsupported, o.Kind())
	}
}

func captureEntries(n Node, m *vm.MapObject, depth int) (Node, error) {
	var err error
	m.Each(func(k string, v vm.Value) bool {
		var c Node
		if c, err = capture(v, depth+1); err != nil {
			return false
		}
		n.Keys = append(n.Keys, k)
		n.Items = append(n.Items, c)
		return true
	})
	return n, err
}

// ClassResolver finds a class by name when restoring instances.
type ClassResolver func(name string) (*vm.ClassObject, bool)

// Restore rebuilds a value from n, allocating on h. The caller holds the
// lock h was obtained from. Instances of entity classes are rejected, as
// Capture rejects entities.
func Restore(h *vm.Heap, n Node, classes ClassResolver) (vm.Value, error) {
	return restore(h, n, classes, 0)
}

func restore(h *vm.Heap, n Node, classes ClassResolver, depth int) (vm.Value, error) {
	if depth > MaxDepth {
		return vm.Null, fmt.Errorf("snapshot: nesting deeper than %d", MaxDepth)
	}
	switch n.Kind {
	case NodeNull:
		return vm.Null, nil
	case NodeInteger:
		return vm.FromInteger(n.Int), nil
	case NodeDecimal:
		return vm.FromDecimal(n.Dec), nil
	case NodeString:
		return vm.FromObject(h.NewString(n.Str)), nil
	case NodeArray:
		a := h.NewArray(0, vm.Null)
		for _, item := range n.Items {
			v, err := restore(h, item, classes, depth+1)
			if err != nil {
				return vm.Null, err
			}
			a.Push(v)
		}
		return vm.FromObject(a), nil
	case NodeMap:
		if len(n.Keys) != len(n.Items) {
			return vm.Null, fmt.Errorf("snapshot: map has %d keys but %d values", len(n.Keys), len(n.Items))
		}
		m := h.NewMap()
		for i, k := range n.Keys {
			v, err := restore(h, n.Items[i], classes, depth+1)
			if err != nil {
				return vm.Null, err
			}
			m.Put(k, v)
		}
		return vm.FromObject(m), nil
	case NodeInstance:
		return restoreInstance(h, n, classes, depth)
	default:
		return vm.Null, fmt.Errorf("snapshot: unknown node %s", n.Kind)
	}
}

func restoreInstance(h *vm.Heap, n Node, classes ClassResolver, depth int) (vm.Value, error) {
	if classes == nil {
		return vm.Null, fmt.Errorf("snapshot: no class resolver for instance of %s", n.Str)
	}
	class, ok := classes(n.Str)
	if !ok {
		return vm.Null, fmt.Errorf("snapshot: unknown class %q", n.Str)
	}
	if class.InheritsFrom(vm.EntityClassName) {
		return vm.Null, fmt.Errorf("%w: %s is an entity class", ErrUnsupported, class.Name)
	}
	if len(n.Keys) != len(n.Items) {
		return vm.Null, fmt.Errorf("snapshot: instance has %d keys but %d values", len(n.Keys), len(n.Items))
	}
	inst := h.NewInstance(class)
	for i, k := range n.Keys {
		v, err := restore(h, n.Items[i], classes, depth+1)
		if err != nil {
			return vm.Null, err
		}
		if err := inst.SetField(h, k, v); err != nil {
			return vm.Null, fmt.Errorf("snapshot: field %s: %w", k, err)
		}
	}
	return vm.FromObject(inst), nil
}
