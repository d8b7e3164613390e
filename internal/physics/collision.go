package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/annel0/blockworld/internal/world"
)

// World служит источником твёрдой геометрии. View даёт согласованный снимок
// блоков на время одного вызова.
type World interface {
	View(fn func(r world.Reader))
}

// Result содержит итог разрешения столкновений за один шаг
type Result struct {
	Position  mgl64.Vec3 // позиция ног: центр по X/Z, низ по Y
	Velocity  mgl64.Vec3
	OnGround  bool
	Colliding bool
}

// CollisionSystem разрешает движение коробки среди твёрдых блоков мира
type CollisionSystem struct {
	world World
}

// NewCollisionSystem создаёт систему столкновений поверх мира
func NewCollisionSystem(w World) *CollisionSystem {
	return &CollisionSystem{world: w}
}

// Resolve перемещает box на velocity*dt с учётом твёрдых блоков.
// Горизонталь (X, затем Z) и вертикаль разрешаются отдельно, после чего
// оставшиеся пересечения выталкиваются по оси наименьшего проникновения.
func (cs *CollisionSystem) Resolve(box AABB, velocity mgl64.Vec3, dt float64) Result {
	disp := velocity.Mul(dt)
	region := box.Union(box.Translate(disp)).Grow(1)

	var solids []AABB
	cs.world.View(func(r world.Reader) {
		for _, pos := range region.Blocks() {
			if r.IsSolid(pos.X, pos.Y, pos.Z) {
				solids = append(solids, BlockAABB(pos))
			}
		}
	})

	if len(solids) == 0 {
		return Result{Position: box.Translate(disp).Feet(), Velocity: velocity}
	}

	res := Result{Velocity: velocity}
	height := box.Size().Y()

	// Горизонталь
	for _, axis := range [2]int{0, 2} {
		if disp[axis] == 0 {
			continue
		}
		d := clipAxis(box, solids, axis, disp[axis])
		moved := box.Translate(axisVec(axis, d))
		if footBlocked(moved, solids) && !footBlocked(box, solids) {
			d, moved = 0, box
		}
		if d != disp[axis] {
			res.Velocity[axis] = 0
			res.Colliding = true
		}
		box = moved
	}

	// Вертикаль
	switch {
	case disp.Y() < 0:
		d := clipAxis(box, solids, 1, disp.Y())
		if d != disp.Y() {
			// Ровно на верхнюю грань самого высокого блока под ногами
			top := math.Round(box.Min.Y() + d)
			box.Min[1], box.Max[1] = top, top+height
			res.Velocity[1] = 0
			res.OnGround = true
			res.Colliding = true
		} else {
			box = box.Translate(axisVec(1, d))
		}
	case disp.Y() > 0:
		d := clipAxis(box, solids, 1, disp.Y())
		if d != disp.Y() {
			ceiling := math.Round(box.Max.Y() + d)
			box.Max[1], box.Min[1] = ceiling, ceiling-height
			res.Velocity[1] = 0
			res.Colliding = true
		} else {
			box = box.Translate(axisVec(1, d))
		}
	default:
		if supported(box, solids) {
			res.OnGround = true
			res.Colliding = true
		}
	}

	// Выталкивание из оставшихся пересечений
	var push, pull mgl64.Vec3
	for _, s := range solids {
		if !box.Intersects(s) {
			continue
		}
		axis, c := minTranslation(box, s)
		if c > push[axis] {
			push[axis] = c
		}
		if c < pull[axis] {
			pull[axis] = c
		}
		if axis == 1 && c > 0 {
			res.OnGround = true
		}
		res.Colliding = true
	}
	correction := push.Add(pull)
	box = box.Translate(correction)
	for axis := 0; axis < 3; axis++ {
		if correction[axis]*res.Velocity[axis] < 0 {
			res.Velocity[axis] = 0
		}
	}

	res.Position = box.Feet()
	return res
}

func axisVec(axis int, d float64) mgl64.Vec3 {
	var v mgl64.Vec3
	v[axis] = d
	return v
}

// clipAxis укорачивает смещение d по оси так, чтобы коробка не вошла
// ни в один блок, пересекающий её по двум другим осям
func clipAxis(box AABB, solids []AABB, axis int, d float64) float64 {
	for _, s := range solids {
		if !overlapsOthers(box, s, axis) {
			continue
		}
		if d > 0 && box.Max[axis] <= s.Min[axis]+contactEps {
			d = math.Min(d, s.Min[axis]-box.Max[axis])
		} else if d < 0 && box.Min[axis] >= s.Max[axis]-contactEps {
			d = math.Max(d, s.Max[axis]-box.Min[axis])
		}
	}
	return d
}

func overlapsOthers(a, b AABB, axis int) bool {
	for i := 0; i < 3; i++ {
		if i != axis && !overlaps(a, b, i) {
			return false
		}
	}
	return true
}

// footSlab задаёт высоту слоя у ног, который проверяется отдельно от всей коробки
const footSlab = 0.1

// footBlocked проверяет слой у ног: блок, вошедший в него, мешает движению,
// даже если проверка всей коробки его пропустила
func footBlocked(box AABB, solids []AABB) bool {
	slab := AABB{
		Min: box.Min,
		Max: mgl64.Vec3{box.Max.X(), box.Min.Y() + footSlab, box.Max.Z()},
	}
	for _, s := range solids {
		if slab.Intersects(s) {
			return true
		}
	}
	return false
}

// supported сообщает, стоит ли коробка на верхней грани какого-либо блока
func supported(box AABB, solids []AABB) bool {
	for _, s := range solids {
		if math.Abs(s.Max.Y()-box.Min.Y()) <= contactEps && overlapsOthers(box, s, 1) {
			return true
		}
	}
	return false
}

// minTranslation возвращает ось наименьшего проникновения и сдвиг коробки
// вдоль неё. При равенстве выбирается первая ось в порядке X, Y, Z.
func minTranslation(box, s AABB) (int, float64) {
	best, shift := -1, 0.0
	for axis := 0; axis < 3; axis++ {
		up := s.Max[axis] - box.Min[axis]   // вытолкнуть в +
		down := box.Max[axis] - s.Min[axis] // вытолкнуть в -
		c := up
		if down < up {
			c = -down
		}
		if best < 0 || math.Abs(c) < math.Abs(shift) {
			best, shift = axis, c
		}
	}
	return best, shift
}
