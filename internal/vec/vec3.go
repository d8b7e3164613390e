package vec

// Vec3 представляет целочисленную позицию блока в мировых координатах.
// Сравнение и хеширование точные, поэтому Vec3 используется как ключ карты.
type Vec3 struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// Размеры чанка в блоках
const (
	ChunkSize   = 16  // Ширина и глубина чанка (X и Z)
	WorldHeight = 256 // Высота мира (Y), один чанк покрывает весь столб
)

// Соседние направления (нормали граней куба)
var (
	Up    = Vec3{Y: 1}
	Down  = Vec3{Y: -1}
	North = Vec3{Z: -1}
	South = Vec3{Z: 1}
	East  = Vec3{X: 1}
	West  = Vec3{X: -1}
)

// Add складывает два вектора
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{
		X: v.X + other.X,
		Y: v.Y + other.Y,
		Z: v.Z + other.Z,
	}
}

// Sub вычитает вектор
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{
		X: v.X - other.X,
		Y: v.Y - other.Y,
		Z: v.Z - other.Z,
	}
}

// ChunkCoord возвращает координаты чанка, которому принадлежит блок
func (v Vec3) ChunkCoord() ChunkCoord {
	return ChunkCoord{X: FloorDiv(v.X, ChunkSize), Z: FloorDiv(v.Z, ChunkSize)}
}

// Local возвращает локальные координаты внутри чанка.
// Y не меняется: чанк покрывает всю высоту мира.
func (v Vec3) Local() (lx, y, lz int) {
	return Mod(v.X, ChunkSize), v.Y, Mod(v.Z, ChunkSize)
}

// InHeightRange проверяет, лежит ли Y внутри [0, WorldHeight)
func (v Vec3) InHeightRange() bool {
	return v.Y >= 0 && v.Y < WorldHeight
}

// FloorDiv выполняет целочисленное деление с округлением вниз (b > 0)
func FloorDiv(a, b int) int {
	q := a / b
	if r := a % b; r != 0 && (r < 0) != (b < 0) {
		q--
	}
	return q
}

// Mod возвращает неотрицательный остаток от деления (b > 0)
func Mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
