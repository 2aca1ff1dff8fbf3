// Package display содержит безголовые реализации коллаборатора отрисовки.
// Они ничего не рисуют, а только учитывают созданные визуальные объекты,
// что достаточно для сервера, инструментов и тестов.
package display

import (
	"sync"

	"github.com/Quantum1000/the-factory-must-grow/internal/vec"
	"github.com/Quantum1000/the-factory-must-grow/internal/world"
	"github.com/google/uuid"
)

// Object - учтённый визуальный объект
type Object struct {
	Handle   world.DisplayHandle
	Kind     world.DisplayKind
	Tile     world.TileKind
	Texture  string
	Position vec.Vec2Float
	Rotation uint8
	Size     vec.Vec2Float
	Parent   world.DisplayHandle
}

// Stats - счётчики реестра
type Stats struct {
	Live      int
	Created   uint64
	Destroyed uint64
	ByKind    map[world.DisplayKind]int
}

// Registry хранит живые визуальные объекты. Потокобезопасен.
type Registry struct {
	mu        sync.RWMutex
	objects   map[world.DisplayHandle]Object
	children  map[world.DisplayHandle][]world.DisplayHandle
	created   uint64
	destroyed uint64
}

// NewRegistry создаёт пустой реестр
func NewRegistry() *Registry {
	return &Registry{
		objects:  make(map[world.DisplayHandle]Object),
		children: make(map[world.DisplayHandle][]world.DisplayHandle),
	}
}

// CreateDisplayObject регистрирует объект и возвращает новый handle
func (r *Registry) CreateDisplayObject(req world.DisplayRequest) world.DisplayHandle {
	h := uuid.New()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.objects[h] = Object{
		Handle:   h,
		Kind:     req.Kind,
		Tile:     req.Tile,
		Texture:  req.Texture,
		Position: req.Position,
		Rotation: req.Rotation,
		Size:     req.Size,
		Parent:   req.Parent,
	}
	if req.Parent != world.NoHandle {
		r.children[req.Parent] = append(r.children[req.Parent], h)
	}
	r.created++
	return h
}

// DestroyDisplayObject удаляет объект вместе с оставшимися дочерними.
// Неизвестные handle игнорируются.
func (r *Registry) DestroyDisplayObject(h world.DisplayHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.destroyLocked(h)
}

func (r *Registry) destroyLocked(h world.DisplayHandle) {
	obj, ok := r.objects[h]
	if !ok {
		return
	}
	kids := r.children[h]
	delete(r.children, h)
	for _, child := range kids {
		r.destroyLocked(child)
	}
	delete(r.objects, h)
	r.destroyed++

	if obj.Parent != world.NoHandle {
		siblings := r.children[obj.Parent]
		for i, s := range siblings {
			if s == h {
				r.children[obj.Parent] = append(siblings[:i], siblings[i+1:]...)
				break
			}
		}
	}
}

// Get возвращает объект по handle
func (r *Registry) Get(h world.DisplayHandle) (Object, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	obj, ok := r.objects[h]
	return obj, ok
}

// Children возвращает дочерние объекты
func (r *Registry) Children(h world.DisplayHandle) []world.DisplayHandle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]world.DisplayHandle, len(r.children[h]))
	copy(out, r.children[h])
	return out
}

// Len возвращает количество живых объектов
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.objects)
}

// Stats возвращает счётчики реестра
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Stats{
		Live:      len(r.objects),
		Created:   r.created,
		Destroyed: r.destroyed,
		ByKind:    make(map[world.DisplayKind]int),
	}
	for _, obj := range r.objects {
		s.ByKind[obj.Kind]++
	}
	return s
}

// Nop - фабрика, не создающая объектов. Все handle равны world.NoHandle.
type Nop struct{}

func (Nop) CreateDisplayObject(world.DisplayRequest) world.DisplayHandle { return world.NoHandle }

func (Nop) DestroyDisplayObject(world.DisplayHandle) {}
