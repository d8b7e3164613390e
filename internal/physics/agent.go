package physics

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/annel0/blockworld/internal/logging"
)

// AgentParams задаёт параметры тела и движения агента (в блоках и секундах)
type AgentParams struct {
	Width            float64 `yaml:"width" json:"width"`
	Height           float64 `yaml:"height" json:"height"`
	EyeHeight        float64 `yaml:"eye_height" json:"eye_height"`
	WalkSpeed        float64 `yaml:"walk_speed" json:"walk_speed"`
	Gravity          float64 `yaml:"gravity" json:"gravity"`
	JumpSpeed        float64 `yaml:"jump_speed" json:"jump_speed"`
	TerminalVelocity float64 `yaml:"terminal_velocity" json:"terminal_velocity"`
	Reach            float64 `yaml:"reach" json:"reach"`
}

// DefaultAgentParams возвращает параметры агента по умолчанию
func DefaultAgentParams() AgentParams {
	return AgentParams{
		Width:            0.6,
		Height:           1.8,
		EyeHeight:        1.62,
		WalkSpeed:        4.317,
		Gravity:          32,
		JumpSpeed:        9,
		TerminalVelocity: 78,
		Reach:            5,
	}
}

// Input задаёт управление агентом на один шаг
type Input struct {
	Move mgl64.Vec3 // желаемое направление в мировых координатах (Y игнорируется)
	Jump bool
	Look mgl64.Vec3 // направление взгляда
}

// State описывает наблюдаемое состояние агента
type State struct {
	Position  mgl64.Vec3 `json:"position"`
	Velocity  mgl64.Vec3 `json:"velocity"`
	OnGround  bool       `json:"on_ground"`
	Target    *Hit       `json:"target,omitempty"`
	Colliding bool       `json:"colliding"`
}

// Agent представляет физическое тело игрока: интегрирует скорость, разрешает
// столкновения и определяет блок под прицелом
type Agent struct {
	params    AgentParams
	collision *CollisionSystem
	targeting *TargetingSystem
	logger    *logging.Logger

	position  mgl64.Vec3 // позиция ног
	velocity  mgl64.Vec3
	look      mgl64.Vec3
	onGround  bool
	colliding bool
	target    Hit
	hasTarget bool
}

// NewAgent создаёт агента в точке spawn (позиция ног)
func NewAgent(w World, spawn mgl64.Vec3, params AgentParams) *Agent {
	return &Agent{
		params:    params,
		collision: NewCollisionSystem(w),
		targeting: NewTargetingSystem(w),
		logger:    logging.GetPhysicsLogger(),
		position:  spawn,
		look:      mgl64.Vec3{0, 0, -1},
	}
}

// Params возвращает параметры агента
func (a *Agent) Params() AgentParams {
	return a.params
}

// Position возвращает позицию ног
func (a *Agent) Position() mgl64.Vec3 {
	return a.position
}

// Teleport переносит агента и сбрасывает скорость
func (a *Agent) Teleport(pos mgl64.Vec3) {
	a.position = pos
	a.velocity = mgl64.Vec3{}
	a.onGround = false
}

// Box возвращает коробку агента
func (a *Agent) Box() AABB {
	return NewAABB(a.position, a.params.Width, a.params.Height)
}

// Eye возвращает позицию глаз
func (a *Agent) Eye() mgl64.Vec3 {
	return a.position.Add(mgl64.Vec3{0, a.params.EyeHeight, 0})
}

// Target возвращает блок под прицелом после последнего шага
func (a *Agent) Target() (Hit, bool) {
	return a.target, a.hasTarget
}

// Step продвигает агента на dt секунд
func (a *Agent) Step(in Input, dt float64) State {
	if dt > 0 {
		a.integrate(in, dt)
	}

	if in.Look.Len() > 0 {
		a.look = in.Look
	}
	a.target, a.hasTarget = a.targeting.CastRay(a.Eye(), a.look, a.params.Reach)

	return a.State()
}

func (a *Agent) integrate(in Input, dt float64) {
	move := mgl64.Vec3{in.Move.X(), 0, in.Move.Z()}
	if l := move.Len(); l > 1 {
		move = move.Mul(1 / l)
	}
	v := move.Mul(a.params.WalkSpeed)
	v[1] = a.velocity.Y()

	if in.Jump && a.onGround {
		v[1] = a.params.JumpSpeed
	}
	v[1] -= a.params.Gravity * dt
	if v[1] < -a.params.TerminalVelocity {
		v[1] = -a.params.TerminalVelocity
	}

	wasOnGround := a.onGround
	res := a.collision.Resolve(a.Box(), v, dt)
	a.position = res.Position
	a.velocity = res.Velocity
	a.onGround = res.OnGround
	a.colliding = res.Colliding

	if a.onGround && !wasOnGround {
		a.logger.Trace("Агент приземлился на %.2f", a.position.Y())
	}
}

// State возвращает текущее состояние агента
func (a *Agent) State() State {
	s := State{
		Position:  a.position,
		Velocity:  a.velocity,
		OnGround:  a.onGround,
		Colliding: a.colliding,
	}
	if a.hasTarget {
		t := a.target
		s.Target = &t
	}
	return s
}
