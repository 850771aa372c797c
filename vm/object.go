package vm

// ---------------------------------------------------------------------------
// Heap objects
// ---------------------------------------------------------------------------

// ObjectKind tags the concrete type of a heap object.
type ObjectKind uint8

const (
	KindString ObjectKind = iota
	KindArray
	KindMap
	KindFunction
	KindBoundMethod
	KindNative
	KindClass
	KindInstance
	KindEntity
	KindNamespace
	KindStream
)

func (k ObjectKind) String() string {
	switch k {
	case KindString:
		return "String"
	case KindArray:
		return "Array"
	case KindMap:
		return "Map"
	case KindFunction:
		return "Function"
	case KindBoundMethod:
		return "Bound Method"
	case KindNative:
		return "Native"
	case KindClass:
		return "Class"
	case KindInstance:
		return "Instance"
	case KindEntity:
		return "Entity"
	case KindNamespace:
		return "Namespace"
	case KindStream:
		return "Stream"
	default:
		return "Unknown"
	}
}

// Object is implemented by every garbage-collected heap object. Objects are
// only created through a *Heap, which links them into the allocation list.
type Object interface {
	Kind() ObjectKind
	header() *objectHeader
}

// objectHeader is embedded in every heap object.
type objectHeader struct {
	marked bool
	freed  bool
	size   int
	next   Object
	heap   *Heap
}

func (h *objectHeader) header() *objectHeader { return h }

// Freed reports whether the collector has reclaimed the object. A freed
// object is never reachable from a root; seeing one is a bug in the caller.
func (h *objectHeader) Freed() bool { return h.freed }

// releaser is implemented by objects that own a native resource which must
// be released when the object is swept.
type releaser interface {
	release()
}

// Approximate accounted sizes, used for the collection threshold.
const (
	sizeHeader   = 32
	sizeValue    = 40
	sizeMapEntry = sizeValue + 16

	// Maps are accounted for this many entries before they grow.
	mapBaseEntries = 8
)
