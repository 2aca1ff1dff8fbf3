package world

import (
	"fmt"

	"github.com/Quantum1000/the-factory-must-grow/internal/vec"
)

// SnapshotVersion - версия формата снимка
const SnapshotVersion = 1

// Snapshot - сериализуемое состояние сетки: параметры генерации и содержимое
// непустых клеток. Визуальные ссылки не сохраняются, они пересоздаются при Restore.
type Snapshot struct {
	Version    int            `json:"version"`
	Size       int            `json:"size"`
	Seed       int64          `json:"seed"`
	OreSpacing int            `json:"ore_spacing"`
	OreMode    OreMode        `json:"ore_mode"`
	Tiles      []TileSnapshot `json:"tiles"`
}

// TileSnapshot - стопка одной клетки, снизу вверх
type TileSnapshot struct {
	Index    vec.Vec2      `json:"index"`
	Contents []ContentView `json:"contents"`
}

// Snapshot снимает состояние сгенерированной сетки
func (g *Grid) Snapshot() (Snapshot, error) {
	if g.state != StateGenerated {
		return Snapshot{}, ErrNotGenerated
	}
	s := Snapshot{
		Version:    SnapshotVersion,
		Size:       g.size,
		Seed:       g.seed,
		OreSpacing: g.oreSpacing,
		OreMode:    g.oreMode,
		Tiles:      make([]TileSnapshot, 0, g.occupied),
	}
	for i := range g.tiles {
		t := &g.tiles[i]
		if t.IsEmpty() {
			continue
		}
		p, _ := g.Coords(TileIndex(i))
		ts := TileSnapshot{Index: p, Contents: make([]ContentView, 0, t.count)}
		for _, c := range t.contents[:t.count] {
			ts.Contents = append(ts.Contents, ContentView{Type: c.Type, Rotation: c.Rotation})
		}
		s.Tiles = append(s.Tiles, ts)
	}
	return s, nil
}

// Restore восстанавливает сетку из снимка. Содержимое переигрывается через
// обычные правила размещения, поэтому визуальные объекты создаются заново,
// а недопустимый снимок отклоняется.
func Restore(s Snapshot, display DisplayFactory, observers ...PlacementObserver) (*Grid, error) {
	if s.Version != SnapshotVersion {
		return nil, fmt.Errorf("неподдерживаемая версия снимка %d", s.Version)
	}
	opts := GenerateOptions{OreSpacing: s.OreSpacing, OreMode: s.OreMode, Seed: s.Seed}
	if err := validateOptions(s.Size, &opts); err != nil {
		return nil, err
	}

	g := NewGrid(s.Size)
	g.seed = s.Seed
	g.oreSpacing = opts.OreSpacing
	g.oreMode = opts.OreMode
	for _, o := range observers {
		g.Observe(o)
	}
	g.allocate(display)

	for _, ts := range s.Tiles {
		t, ok := g.Tile(ts.Index)
		if !ok {
			g.release()
			return nil, fmt.Errorf("%w: клетка снимка %s", ErrOutOfBounds, ts.Index)
		}
		if !t.IsEmpty() {
			g.release()
			return nil, fmt.Errorf("клетка %s встречается в снимке дважды", ts.Index)
		}
		for _, c := range ts.Contents {
			if _, err := g.place(ts.Index, c.Type, c.Rotation, SourceRestore); err != nil {
				g.release()
				return nil, fmt.Errorf("восстановление клетки %s: %w", ts.Index, err)
			}
		}
	}
	return g, nil
}

// release снимает всё содержимое, освобождая визуальные объекты
func (g *Grid) release() {
	for i := range g.tiles {
		for !g.tiles[i].IsEmpty() {
			_, _ = g.tiles[i].pop(g.display)
		}
	}
	g.occupied = 0
}
