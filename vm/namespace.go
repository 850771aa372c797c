package vm

// NamespaceObject groups classes and constants under a name.
type NamespaceObject struct {
	objectHeader
	Name    string
	Hash    uint32
	Members *MapObject
}

func (n *NamespaceObject) Kind() ObjectKind { return KindNamespace }

// Member returns the named class or constant.
func (n *NamespaceObject) Member(name string) (Value, bool) {
	return n.Members.Get(name)
}
