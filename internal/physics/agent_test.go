package physics

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world"
	"github.com/annel0/blockworld/internal/world/block"
)

const dt = 1.0 / 60

func settle(a *Agent, in Input, steps int) State {
	var s State
	for i := 0; i < steps; i++ {
		s = a.Step(in, dt)
	}
	return s
}

func TestAgentFallsAndLands(t *testing.T) {
	a := NewAgent(floorWorld(), mgl64.Vec3{0.5, 10, 0.5}, DefaultAgentParams())

	s := settle(a, Input{}, 120)
	assert.Equal(t, 1.0, s.Position.Y())
	assert.True(t, s.OnGround)
	assert.Equal(t, 0.0, s.Velocity.Y())
}

func TestAgentJump(t *testing.T) {
	a := NewAgent(floorWorld(), mgl64.Vec3{0.5, 1, 0.5}, DefaultAgentParams())
	settle(a, Input{}, 5)
	require.True(t, a.State().OnGround)

	s := a.Step(Input{Jump: true}, dt)
	assert.False(t, s.OnGround)
	assert.Greater(t, s.Velocity.Y(), 0.0)
	assert.Greater(t, s.Position.Y(), 1.0)

	// Прыжок в воздухе не работает
	vy := s.Velocity.Y()
	s = a.Step(Input{Jump: true}, dt)
	assert.Less(t, s.Velocity.Y(), vy)

	s = settle(a, Input{}, 120)
	assert.True(t, s.OnGround)
	assert.Equal(t, 1.0, s.Position.Y())
}

func TestAgentWalks(t *testing.T) {
	a := NewAgent(floorWorld(), mgl64.Vec3{0.5, 1, 0.5}, DefaultAgentParams())

	// Длина направления ограничивается единицей
	s := settle(a, Input{Move: mgl64.Vec3{3, 0, 0}}, 60)
	assert.InDelta(t, 0.5+4.317, s.Position.X(), 1e-6)
	assert.InDelta(t, 0.5, s.Position.Z(), 1e-9)
	assert.True(t, s.OnGround)
}

func TestAgentTerminalVelocity(t *testing.T) {
	a := NewAgent(fakeWorld{}, mgl64.Vec3{0.5, 250, 0.5}, DefaultAgentParams())

	s := settle(a, Input{}, 300)
	assert.Equal(t, -78.0, s.Velocity.Y())
}

func TestAgentTargetsBlockUnderFeet(t *testing.T) {
	a := NewAgent(floorWorld(), mgl64.Vec3{0.5, 1, 0.5}, DefaultAgentParams())

	s := a.Step(Input{Look: mgl64.Vec3{0, -1, 0}}, dt)
	require.NotNil(t, s.Target)
	assert.Equal(t, vec.Vec3{}, s.Target.Block)
	assert.Equal(t, vec.Vec3{Y: 1}, s.Target.Adjacent)
	assert.InDelta(t, 1.62, s.Target.Distance, 1e-9)

	// Горизонтальный взгляд над плоским полом ничего не находит
	s = a.Step(Input{Look: mgl64.Vec3{1, 0, 0}}, dt)
	assert.Nil(t, s.Target)
	_, ok := a.Target()
	assert.False(t, ok)
}

func TestAgentLandsOnGeneratedTerrain(t *testing.T) {
	w := world.NewWorldManager(42, world.DefaultOptions())
	w.LoadAround(vec.Vec3{X: 5, Z: 5}, 1)

	surface := w.SurfaceHeight(5, 5)
	a := NewAgent(w, mgl64.Vec3{5.5, float64(surface + 10), 5.5}, DefaultAgentParams())

	s := settle(a, Input{}, 180)
	assert.Equal(t, float64(surface+1), s.Position.Y())
	assert.True(t, s.OnGround)

	s = a.Step(Input{Look: mgl64.Vec3{0, -1, 0}}, dt)
	require.NotNil(t, s.Target)
	assert.Equal(t, vec.Vec3{X: 5, Y: surface, Z: 5}, s.Target.Block)
	assert.Equal(t, block.Grass, w.GetBlock(5, surface, 5))
}
