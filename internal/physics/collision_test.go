package physics

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/blockworld/internal/vec"
)

const (
	agentWidth  = 0.6
	agentHeight = 1.8
)

func TestResolveConvergesToFloor(t *testing.T) {
	cs := NewCollisionSystem(floorWorld())
	box := NewAABB(mgl64.Vec3{0.5, 5, 0.5}, agentWidth, agentHeight)
	velocity := mgl64.Vec3{0, -32, 0}

	var res Result
	for i := 0; i < 120; i++ {
		res = cs.Resolve(box, velocity, 1.0/60)
		box = NewAABB(res.Position, agentWidth, agentHeight)
	}

	assert.Equal(t, 1.0, res.Position.Y(), "ноги ровно на верхней грани пола")
	assert.True(t, res.OnGround)
	assert.Equal(t, 0.0, res.Velocity.Y())

	// Дальнейшие шаги ничего не меняют
	for i := 0; i < 10; i++ {
		res = cs.Resolve(box, velocity, 1.0/60)
		box = NewAABB(res.Position, agentWidth, agentHeight)
		require.Equal(t, 1.0, res.Position.Y())
		require.True(t, res.OnGround)
		require.Equal(t, 0.0, res.Velocity.Y())
	}
}

func TestResolvePassThrough(t *testing.T) {
	cs := NewCollisionSystem(fakeWorld{})
	feet := mgl64.Vec3{0.5, 100, 0.5}
	velocity := mgl64.Vec3{1, 2, 3}

	res := cs.Resolve(NewAABB(feet, agentWidth, agentHeight), velocity, 0.5)

	assert.False(t, res.Colliding)
	assert.False(t, res.OnGround)
	assert.Equal(t, velocity, res.Velocity)
	assert.InDelta(t, 0, res.Position.Sub(mgl64.Vec3{1, 101, 2}).Len(), 1e-9)
}

func TestResolveWallSlide(t *testing.T) {
	w := fakeWorld{solid: func(x, y, z int) bool {
		return y == 0 || (x == 2 && y >= 1 && y <= 3)
	}}
	cs := NewCollisionSystem(w)

	box := NewAABB(mgl64.Vec3{1.5, 1, 0.5}, agentWidth, agentHeight)
	res := cs.Resolve(box, mgl64.Vec3{5, 0, 5}, 0.1)

	assert.True(t, res.Colliding)
	assert.InDelta(t, 1.7, res.Position.X(), 1e-9, "упор в стену")
	assert.InDelta(t, 1.0, res.Position.Z(), 1e-9, "скольжение вдоль стены")
	assert.Equal(t, 1.0, res.Position.Y())
	assert.Equal(t, 0.0, res.Velocity.X())
	assert.Equal(t, 5.0, res.Velocity.Z())
	assert.True(t, res.OnGround)
}

func TestResolveCeiling(t *testing.T) {
	w := fakeWorld{solid: func(x, y, z int) bool { return y == 0 || y == 4 }}
	cs := NewCollisionSystem(w)

	box := NewAABB(mgl64.Vec3{0.5, 1, 0.5}, agentWidth, agentHeight)
	res := cs.Resolve(box, mgl64.Vec3{0, 9, 0}, 0.2)

	assert.True(t, res.Colliding)
	assert.False(t, res.OnGround)
	assert.Equal(t, 0.0, res.Velocity.Y(), "потолок гасит вертикальную скорость")
	assert.InDelta(t, 4-agentHeight, res.Position.Y(), 1e-9)
}

func TestResolveNoTunnelingAtHighSpeed(t *testing.T) {
	cs := NewCollisionSystem(floorWorld())
	box := NewAABB(mgl64.Vec3{0.5, 3, 0.5}, agentWidth, agentHeight)

	// Смещение за шаг больше высоты агента
	res := cs.Resolve(box, mgl64.Vec3{0, -78, 0}, 0.1)
	assert.Equal(t, 1.0, res.Position.Y())
	assert.True(t, res.OnGround)
}

func TestResolveDepenetrationUp(t *testing.T) {
	cs := NewCollisionSystem(blocksWorld(vec.Vec3{}))

	box := NewAABB(mgl64.Vec3{0.5, 0.7, 0.5}, agentWidth, agentHeight)
	res := cs.Resolve(box, mgl64.Vec3{}, 1.0/60)

	assert.True(t, res.Colliding)
	assert.True(t, res.OnGround, "выталкивание вверх означает опору")
	assert.InDelta(t, 1.0, res.Position.Y(), 1e-9)
	assert.InDelta(t, 0.5, res.Position.X(), 1e-9)
}

func TestResolveDepenetrationSideways(t *testing.T) {
	cs := NewCollisionSystem(blocksWorld(vec.Vec3{X: 1, Y: 1, Z: 0}))

	box := NewAABB(mgl64.Vec3{1.1, 1, 0.5}, agentWidth, agentHeight)
	res := cs.Resolve(box, mgl64.Vec3{}, 1.0/60)

	assert.True(t, res.Colliding)
	assert.False(t, res.OnGround)
	assert.InDelta(t, 0.7, res.Position.X(), 1e-9)
	assert.InDelta(t, 1.0, res.Position.Y(), 1e-9)
}

func TestResolveDepenetrationTiePrefersX(t *testing.T) {
	cs := NewCollisionSystem(blocksWorld(vec.Vec3{X: 1, Y: 1, Z: 0}))

	box := AABB{Min: mgl64.Vec3{0.5, 0.5, -1}, Max: mgl64.Vec3{1.5, 1.5, 2}}
	res := cs.Resolve(box, mgl64.Vec3{}, 1.0/60)

	assert.True(t, res.Colliding)
	assert.InDelta(t, 0.5, res.Position.X(), 1e-9, "при равенстве выбирается X")
	assert.InDelta(t, 0.5, res.Position.Y(), 1e-9)
}

func TestMinTranslation(t *testing.T) {
	s := BlockAABB(vec.Vec3{})

	axis, c := minTranslation(AABB{Min: mgl64.Vec3{0.2, 0.9, 0.2}, Max: mgl64.Vec3{0.8, 2.7, 0.8}}, s)
	assert.Equal(t, 1, axis)
	assert.InDelta(t, 0.1, c, 1e-9)

	axis, c = minTranslation(AABB{Min: mgl64.Vec3{-0.5, 0, 0}, Max: mgl64.Vec3{0.25, 1, 1}}, s)
	assert.Equal(t, 0, axis)
	assert.InDelta(t, -0.25, c, 1e-9)
}
