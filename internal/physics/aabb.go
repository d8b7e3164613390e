package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/annel0/blockworld/internal/vec"
)

// AABB описывает ориентированный по осям параллелепипед [Min, Max]
type AABB struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

// NewAABB строит коробку по позиции ног: центр по X/Z, низ по Y
func NewAABB(feet mgl64.Vec3, width, height float64) AABB {
	hw := width / 2
	return AABB{
		Min: mgl64.Vec3{feet.X() - hw, feet.Y(), feet.Z() - hw},
		Max: mgl64.Vec3{feet.X() + hw, feet.Y() + height, feet.Z() + hw},
	}
}

// BlockAABB возвращает единичный куб блока [x, x+1)
func BlockAABB(pos vec.Vec3) AABB {
	lo := mgl64.Vec3{float64(pos.X), float64(pos.Y), float64(pos.Z)}
	return AABB{Min: lo, Max: lo.Add(mgl64.Vec3{1, 1, 1})}
}

// Size возвращает размеры коробки
func (b AABB) Size() mgl64.Vec3 {
	return b.Max.Sub(b.Min)
}

// Feet возвращает позицию ног: центр по X/Z, низ по Y
func (b AABB) Feet() mgl64.Vec3 {
	return mgl64.Vec3{(b.Min.X() + b.Max.X()) / 2, b.Min.Y(), (b.Min.Z() + b.Max.Z()) / 2}
}

// Translate сдвигает коробку на d
func (b AABB) Translate(d mgl64.Vec3) AABB {
	return AABB{Min: b.Min.Add(d), Max: b.Max.Add(d)}
}

// Union возвращает наименьшую коробку, содержащую обе
func (b AABB) Union(o AABB) AABB {
	return AABB{
		Min: mgl64.Vec3{math.Min(b.Min.X(), o.Min.X()), math.Min(b.Min.Y(), o.Min.Y()), math.Min(b.Min.Z(), o.Min.Z())},
		Max: mgl64.Vec3{math.Max(b.Max.X(), o.Max.X()), math.Max(b.Max.Y(), o.Max.Y()), math.Max(b.Max.Z(), o.Max.Z())},
	}
}

// Grow расширяет коробку на pad во все стороны
func (b AABB) Grow(pad float64) AABB {
	p := mgl64.Vec3{pad, pad, pad}
	return AABB{Min: b.Min.Sub(p), Max: b.Max.Add(p)}
}

// Intersects сообщает, пересекаются ли коробки с ненулевым объёмом.
// Касание гранями пересечением не считается.
func (b AABB) Intersects(o AABB) bool {
	for i := 0; i < 3; i++ {
		if !overlaps(b, o, i) {
			return false
		}
	}
	return true
}

// contactEps гасит ошибки округления: касание граней не считается проникновением
const contactEps = 1e-7

func overlaps(a, b AABB, axis int) bool {
	return a.Min[axis] < b.Max[axis]-contactEps && a.Max[axis] > b.Min[axis]+contactEps
}

// Blocks возвращает позиции всех блоков, которых касается коробка
func (b AABB) Blocks() []vec.Vec3 {
	x0, x1 := int(math.Floor(b.Min.X())), int(math.Floor(b.Max.X()))
	y0, y1 := int(math.Floor(b.Min.Y())), int(math.Floor(b.Max.Y()))
	z0, z1 := int(math.Floor(b.Min.Z())), int(math.Floor(b.Max.Z()))

	if y0 < 0 {
		y0 = 0
	}
	if y1 >= vec.WorldHeight {
		y1 = vec.WorldHeight - 1
	}

	var out []vec.Vec3
	for y := y0; y <= y1; y++ {
		for z := z0; z <= z1; z++ {
			for x := x0; x <= x1; x++ {
				out = append(out, vec.Vec3{X: x, Y: y, Z: z})
			}
		}
	}
	return out
}
