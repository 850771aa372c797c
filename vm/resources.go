package vm

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ---------------------------------------------------------------------------
// Resources
// ---------------------------------------------------------------------------

// ResourceKind selects one of the resource registries.
type ResourceKind uint8

const (
	SpriteResource ResourceKind = iota
	ImageResource
	TextureResource
	SoundResource
	MusicResource
	ModelResource
	AnimatorResource

	numResourceKinds
)

func (k ResourceKind) String() string {
	switch k {
	case SpriteResource:
		return "Sprite"
	case ImageResource:
		return "Image"
	case TextureResource:
		return "Texture"
	case SoundResource:
		return "Sound"
	case MusicResource:
		return "Music"
	case ModelResource:
		return "Model"
	case AnimatorResource:
		return "Animator"
	default:
		return "Unknown"
	}
}

// ResourceKinds lists every kind in registry order.
func ResourceKinds() []ResourceKind {
	out := make([]ResourceKind, numResourceKinds)
	for i := range out {
		out[i] = ResourceKind(i)
	}
	return out
}

// UnloadScope says when a resource is released: at the end of the scene or
// only when the game ends. Unloading a scope also unloads narrower ones.
type UnloadScope uint8

const (
	SceneScope UnloadScope = iota
	GameScope
)

func (s UnloadScope) String() string {
	if s == GameScope {
		return "game"
	}
	return "scene"
}

// Resource is one loaded asset.
type Resource struct {
	Kind   ResourceKind
	Name   string
	Policy UnloadScope
	Data   []byte
}

// Loader fetches the raw bytes of an asset.
type Loader interface {
	Load(kind ResourceKind, name string) ([]byte, error)
}

// FileLoader reads assets relative to Root.
type FileLoader struct {
	Root string
}

// Path resolves a slash-separated name under Root. Absolute names and names
// that climb out of Root are rejected.
func (l FileLoader) Path(name string) (string, bool) {
	rel := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.Join(l.Root, rel), true
}

func (l FileLoader) Load(kind ResourceKind, name string) ([]byte, error) {
	path, ok := l.Path(name)
	if !ok {
		return nil, Errorf(ResourceState, "%s path %q escapes the resource root.", kind, name)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Errorf(ResourceState, "Could not load %s %q: %v", kind, name, err)
	}
	return data, nil
}

type resourceKey struct {
	kind ResourceKind
	name string
}

// ResourceSet holds one registry per resource kind. Loading the same name
// twice returns the existing handle.
type ResourceSet struct {
	loader     Loader
	registries [numResourceKinds]*Registry[*Resource]

	mu     sync.Mutex // guards byName
	byName map[resourceKey]Handle
}

// NewResourceSet creates empty registries backed by loader.
func NewResourceSet(loader Loader) *ResourceSet {
	rs := &ResourceSet{loader: loader, byName: make(map[resourceKey]Handle)}
	for i := range rs.registries {
		rs.registries[i] = NewRegistry[*Resource](ResourceKind(i).String())
	}
	return rs
}

// SetLoader replaces the asset loader.
func (rs *ResourceSet) SetLoader(l Loader) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.loader = l
}

// Registry returns the registry for kind.
func (rs *ResourceSet) Registry(kind ResourceKind) *Registry[*Resource] {
	return rs.registries[kind]
}

// Load loads name unless it is already loaded.
func (rs *ResourceSet) Load(kind ResourceKind, name string, policy UnloadScope) (Handle, error) {
	if kind >= numResourceKinds {
		return 0, Errorf(ResourceState, "Unknown resource kind %d.", kind)
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()

	key := resourceKey{kind, name}
	reg := rs.registries[kind]
	if h, ok := rs.byName[key]; ok {
		if _, err := reg.Resolve(h); err == nil {
			return h, nil
		}
		delete(rs.byName, key)
	}
	var data []byte
	if rs.loader != nil {
		var err error
		if data, err = rs.loader.Load(kind, name); err != nil {
			return 0, err
		}
	}
	h, err := reg.Create(&Resource{Kind: kind, Name: name, Policy: policy, Data: data})
	if err != nil {
		return 0, err
	}
	rs.byName[key] = h
	log.Debugf("loaded %s %q as handle %d", kind, name, h)
	return h, nil
}

// Get resolves a handle of kind.
func (rs *ResourceSet) Get(kind ResourceKind, h Handle) (*Resource, error) {
	if kind >= numResourceKinds {
		return nil, Errorf(ResourceState, "Unknown resource kind %d.", kind)
	}
	return rs.registries[kind].Resolve(h)
}

// Unload releases one resource.
func (rs *ResourceSet) Unload(kind ResourceKind, h Handle) error {
	if kind >= numResourceKinds {
		return Errorf(ResourceState, "Unknown resource kind %d.", kind)
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	r, err := rs.registries[kind].Remove(h)
	if err != nil {
		return err
	}
	delete(rs.byName, resourceKey{kind, r.Name})
	return nil
}

// UnloadScope releases every resource whose policy is at most scope and
// returns how many were released.
func (rs *ResourceSet) UnloadScope(scope UnloadScope) int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	n := 0
	for _, reg := range rs.registries {
		for _, r := range reg.RemoveIf(func(r *Resource) bool { return r.Policy <= scope }) {
			delete(rs.byName, resourceKey{r.Kind, r.Name})
			n++
		}
	}
	if n > 0 {
		log.Infof("unloaded %d resources (%s scope)", n, scope)
	}
	return n
}

// UnloadAll releases everything.
func (rs *ResourceSet) UnloadAll() int {
	return rs.UnloadScope(GameScope)
}

// Count returns the number of loaded resources of kind.
func (rs *ResourceSet) Count(kind ResourceKind) int {
	if kind >= numResourceKinds {
		return 0
	}
	return rs.registries[kind].Count()
}
