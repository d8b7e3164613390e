package vec

import (
	"fmt"
	"math"
)

// ChunkCoord представляет координаты столба-чанка (cx, cz)
type ChunkCoord struct {
	X int `json:"x"`
	Z int `json:"z"`
}

// String возвращает строковое представление координат
func (c ChunkCoord) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Z)
}

// Origin возвращает мировую позицию угла чанка с минимальными X и Z на высоте 0
func (c ChunkCoord) Origin() Vec3 {
	return Vec3{X: c.X * ChunkSize, Z: c.Z * ChunkSize}
}

// Chebyshev возвращает расстояние Чебышёва между чанками (квадратный радиус)
func (c ChunkCoord) Chebyshev(other ChunkCoord) int {
	dx := c.X - other.X
	if dx < 0 {
		dx = -dx
	}
	dz := c.Z - other.Z
	if dz < 0 {
		dz = -dz
	}
	if dx > dz {
		return dx
	}
	return dz
}

// Contains проверяет, принадлежит ли мировая позиция этому чанку (по X/Z)
func (c ChunkCoord) Contains(pos Vec3) bool {
	return pos.ChunkCoord() == c
}

// ChunkCoordAt возвращает чанк, содержащий точку с плавающими координатами
func ChunkCoordAt(x, z float64) ChunkCoord {
	return Vec3{X: int(math.Floor(x)), Z: int(math.Floor(z))}.ChunkCoord()
}

// Square возвращает все координаты чанков в квадрате радиуса r вокруг центра,
// упорядоченные по удалённости от центра (ближние первыми).
func Square(center ChunkCoord, r int) []ChunkCoord {
	if r < 0 {
		return nil
	}
	side := 2*r + 1
	coords := make([]ChunkCoord, 0, side*side)
	for ring := 0; ring <= r; ring++ {
		for dx := -ring; dx <= ring; dx++ {
			for dz := -ring; dz <= ring; dz++ {
				if max(abs(dx), abs(dz)) != ring {
					continue
				}
				coords = append(coords, ChunkCoord{X: center.X + dx, Z: center.Z + dz})
			}
		}
	}
	return coords
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
