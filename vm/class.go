package vm

// ---------------------------------------------------------------------------
// Classes and instances
// ---------------------------------------------------------------------------

// ClassObject is a named script class. Classes are process-wide singletons
// registered with the Manager.
type ClassObject struct {
	objectHeader
	Name        string
	Hash        uint32
	Methods     map[string]Value
	Fields      *MapObject
	Parent      *ClassObject
	Initializer Value
}

func (c *ClassObject) Kind() ObjectKind { return KindClass }

// LookupMethod finds a method on the class or its ancestors.
func (c *ClassObject) LookupMethod(name string) (Value, bool) {
	for k := c; k != nil; k = k.Parent {
		if m, ok := k.Methods[name]; ok {
			return m, true
		}
	}
	return Null, false
}

// FieldDefault finds a field default on the class or its ancestors.
func (c *ClassObject) FieldDefault(name string) (Value, bool) {
	for k := c; k != nil; k = k.Parent {
		if k.Fields == nil {
			continue
		}
		if v, ok := k.Fields.Get(name); ok {
			return v, true
		}
	}
	return Null, false
}

// InheritsFrom reports whether c is named name or has an ancestor that is.
func (c *ClassObject) InheritsFrom(name string) bool {
	for k := c; k != nil; k = k.Parent {
		if k.Name == name {
			return true
		}
	}
	return false
}

// InstanceObject is an instance of a script class. The field table is
// created on first assignment.
type InstanceObject struct {
	objectHeader
	Class  *ClassObject
	Fields *MapObject
}

func (i *InstanceObject) Kind() ObjectKind { return KindInstance }

// instance lets Instance and Entity share field handling.
func (i *InstanceObject) instance() *InstanceObject { return i }

// Field reads a field, falling back to the class's defaults.
func (i *InstanceObject) Field(name string) (Value, bool) {
	if i.Fields != nil {
		if v, ok := i.Fields.Get(name); ok {
			return v, true
		}
	}
	if i.Class == nil {
		return Null, false
	}
	return i.Class.FieldDefault(name)
}

// SetField assigns a field. Assigning to a linked field writes through to
// its native cell. The heap is needed to create the field table lazily.
func (i *InstanceObject) SetField(h *Heap, name string, v Value) error {
	if i.Fields == nil {
		i.Fields = h.NewMap()
	}
	if cur, ok := i.Fields.Get(name); ok && cur.IsLinked() {
		return cur.Store(v)
	}
	i.Fields.Put(name, v)
	return nil
}

// IsClass reports whether the instance's class is exactly the named class.
func (i *InstanceObject) IsClass(name string) bool {
	return i.Class != nil && i.Class.Name == name
}

// Instancer is implemented by objects with instance semantics.
type Instancer interface {
	Object
	instance() *InstanceObject
}

// AsInstance returns the instance part of an Instance or Entity value.
func AsInstance(v Value) (*InstanceObject, bool) {
	if !v.IsObject() {
		return nil, false
	}
	in, ok := v.obj.(Instancer)
	if !ok {
		return nil, false
	}
	return in.instance(), true
}
