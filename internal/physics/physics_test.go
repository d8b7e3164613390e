package physics

import (
	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world"
	"github.com/annel0/blockworld/internal/world/block"
)

// fakeWorld описывает мир, твёрдость блоков которого задаёт функция
type fakeWorld struct {
	solid func(x, y, z int) bool
}

func (f fakeWorld) View(fn func(r world.Reader)) {
	fn(f)
}

func (f fakeWorld) GetBlock(x, y, z int) block.Kind {
	if f.IsSolid(x, y, z) {
		return block.Stone
	}
	return block.Air
}

func (f fakeWorld) IsSolid(x, y, z int) bool {
	return f.solid != nil && f.solid(x, y, z)
}

func floorWorld() fakeWorld {
	return fakeWorld{solid: func(x, y, z int) bool { return y == 0 }}
}

func blocksWorld(blocks ...vec.Vec3) fakeWorld {
	set := make(map[vec.Vec3]bool, len(blocks))
	for _, b := range blocks {
		set[b] = true
	}
	return fakeWorld{solid: func(x, y, z int) bool { return set[vec.Vec3{X: x, Y: y, Z: z}] }}
}
