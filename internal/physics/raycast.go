package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world"
)

// Hit описывает результат попадания луча в твёрдый блок
type Hit struct {
	Block    vec.Vec3 `json:"block"`    // блок, в который попал луч
	Adjacent vec.Vec3 `json:"adjacent"` // клетка перед гранью попадания, сюда ставится новый блок
	Normal   vec.Vec3 `json:"normal"`   // нормаль грани входа
	Distance float64  `json:"distance"`
}

// TargetingSystem ищет блок, на который направлен взгляд
type TargetingSystem struct {
	world World
}

// NewTargetingSystem создаёт систему прицеливания поверх мира
func NewTargetingSystem(w World) *TargetingSystem {
	return &TargetingSystem{world: w}
}

// CastRay ищет первый твёрдый блок вдоль луча не дальше maxDistance.
// Отсутствие попадания считается обычным исходом, а не ошибкой.
func (ts *TargetingSystem) CastRay(origin, direction mgl64.Vec3, maxDistance float64) (hit Hit, ok bool) {
	ts.world.View(func(r world.Reader) {
		hit, ok = CastRay(r, origin, direction, maxDistance)
	})
	return hit, ok
}

// CastRay проходит по клеткам сетки вдоль луча (Amanatides–Woo) и
// проверяет IsSolid в каждой. Если начало луча внутри твёрдого блока,
// попаданием считается он сам: нормалью служит грань, через которую прямая
// луча входит в блок, расстоянием служит модуль параметра входа.
// Бесконечная или NaN дальность, как и нечисловые координаты, даёт промах:
// иначе обход клеток не завершится.
func CastRay(r world.Reader, origin, direction mgl64.Vec3, maxDistance float64) (Hit, bool) {
	if !(maxDistance > 0) || math.IsInf(maxDistance, 0) {
		return Hit{}, false
	}
	if !finite(origin) || !finite(direction) || direction.Len() < 1e-12 {
		return Hit{}, false
	}
	dir := direction.Normalize()

	cell := vec.Vec3{
		X: int(math.Floor(origin.X())),
		Y: int(math.Floor(origin.Y())),
		Z: int(math.Floor(origin.Z())),
	}

	if r.IsSolid(cell.X, cell.Y, cell.Z) {
		return insideHit(cell, origin, dir), true
	}

	var step [3]int
	var tMax, tDelta [3]float64
	c := [3]int{cell.X, cell.Y, cell.Z}
	for i := 0; i < 3; i++ {
		switch {
		case dir[i] > 0:
			step[i] = 1
			tMax[i] = (float64(c[i]+1) - origin[i]) / dir[i]
			tDelta[i] = 1 / dir[i]
		case dir[i] < 0:
			step[i] = -1
			tMax[i] = (origin[i] - float64(c[i])) / -dir[i]
			tDelta[i] = -1 / dir[i]
		default:
			tMax[i] = math.Inf(1)
			tDelta[i] = math.Inf(1)
		}
	}

	for {
		axis := 0
		if tMax[1] < tMax[axis] {
			axis = 1
		}
		if tMax[2] < tMax[axis] {
			axis = 2
		}

		t := tMax[axis]
		if t > maxDistance {
			return Hit{}, false
		}

		c[axis] += step[axis]
		tMax[axis] += tDelta[axis]

		// Луч ушёл за пределы мира по высоте и удаляется от него
		if (c[1] < 0 && step[1] <= 0) || (c[1] >= vec.WorldHeight && step[1] >= 0) {
			return Hit{}, false
		}

		if !r.IsSolid(c[0], c[1], c[2]) {
			continue
		}

		var n [3]int
		n[axis] = -step[axis]
		normal := vec.Vec3{X: n[0], Y: n[1], Z: n[2]}
		block := vec.Vec3{X: c[0], Y: c[1], Z: c[2]}
		return Hit{
			Block:    block,
			Adjacent: block.Add(normal),
			Normal:   normal,
			Distance: t,
		}, true
	}
}

// insideHit строит попадание для луча, начинающегося внутри твёрдого блока
func insideHit(cell vec.Vec3, origin, dir mgl64.Vec3) Hit {
	c := [3]int{cell.X, cell.Y, cell.Z}
	axis, entry := -1, math.Inf(-1)
	for i := 0; i < 3; i++ {
		var t float64
		switch {
		case dir[i] > 0:
			t = (float64(c[i]) - origin[i]) / dir[i]
		case dir[i] < 0:
			t = (float64(c[i]+1) - origin[i]) / dir[i]
		default:
			continue
		}
		if t > entry {
			axis, entry = i, t
		}
	}

	var n [3]int
	if dir[axis] > 0 {
		n[axis] = -1
	} else {
		n[axis] = 1
	}
	normal := vec.Vec3{X: n[0], Y: n[1], Z: n[2]}
	return Hit{
		Block:    cell,
		Adjacent: cell.Add(normal),
		Normal:   normal,
		Distance: math.Abs(entry),
	}
}

func finite(v mgl64.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
