package util

import (
	"math"

	"github.com/aquilax/go-perlin"
)

// Biome задаёт тип биома, определяемый низкочастотным шумом
type Biome uint8

const (
	BiomePlains Biome = iota
	BiomeForest
	BiomeDesert
)

// String возвращает имя биома
func (b Biome) String() string {
	switch b {
	case BiomeForest:
		return "forest"
	case BiomeDesert:
		return "desert"
	default:
		return "plains"
	}
}

// NoiseParams задаёт параметры поля высот
type NoiseParams struct {
	HeightMin         int     // Нижняя граница поверхности
	HeightMax         int     // Верхняя граница поверхности
	PrimaryWavelength float64 // Длина волны основной составляющей (в блоках)
	DetailWavelength  float64 // Длина волны детализирующей составляющей
	PrimaryWeight     float64 // Вес основной составляющей (детали получают 1 - вес)
	BiomeWavelength   float64 // Длина волны поля биомов
	CaveWavelength    float64 // Длина волны 3D поля пещер
}

// DefaultNoiseParams возвращает параметры по умолчанию: полоса высот 64–128,
// основная волна ~100 блоков, смешивание 70/30.
func DefaultNoiseParams() NoiseParams {
	return NoiseParams{
		HeightMin:         64,
		HeightMax:         128,
		PrimaryWavelength: 100,
		DetailWavelength:  20,
		PrimaryWeight:     0.7,
		BiomeWavelength:   400,
		CaveWavelength:    24,
	}
}

// NoiseField представляет детерминированный генератор высот, биомов и пещер.
// Все генераторы шума создаются один раз от сида и дальше только читаются,
// поэтому поле можно использовать из нескольких горутин.
type NoiseField struct {
	seed    int64
	params  NoiseParams
	primary *perlin.Perlin
	detail  *perlin.Perlin
	biome   *perlin.Perlin
	cave    *perlin.Perlin
}

// NewNoiseField создаёт поле шума для указанного сида
func NewNoiseField(seed int64, params NoiseParams) *NoiseField {
	if params.HeightMax < params.HeightMin {
		params.HeightMin, params.HeightMax = params.HeightMax, params.HeightMin
	}
	if params.PrimaryWavelength <= 0 {
		params.PrimaryWavelength = 100
	}
	if params.DetailWavelength <= 0 {
		params.DetailWavelength = 20
	}
	if params.BiomeWavelength <= 0 {
		params.BiomeWavelength = 400
	}
	if params.CaveWavelength <= 0 {
		params.CaveWavelength = 24
	}
	if params.PrimaryWeight <= 0 || params.PrimaryWeight > 1 {
		params.PrimaryWeight = 0.7
	}

	// alpha: затухание октав, beta: рост частоты, n: число октав
	return &NoiseField{
		seed:    seed,
		params:  params,
		primary: perlin.NewPerlin(2, 2, 3, seed),
		detail:  perlin.NewPerlin(2, 2, 2, seed+1),
		biome:   perlin.NewPerlin(2, 2, 2, seed+2),
		cave:    perlin.NewPerlin(2, 2, 2, seed+3),
	}
}

// Seed возвращает сид поля
func (nf *NoiseField) Seed() int64 {
	return nf.seed
}

// Params возвращает параметры поля
func (nf *NoiseField) Params() NoiseParams {
	return nf.params
}

// HeightAt возвращает высоту поверхности в столбце (x, z).
// Чистая функция от (seed, x, z).
func (nf *NoiseField) HeightAt(x, z int) int {
	// Смещение на полблока уводит выборку из узлов решётки, где шум Перлина равен нулю
	fx := float64(x) + 0.5
	fz := float64(z) + 0.5

	p := clampUnit(nf.primary.Noise2D(fx/nf.params.PrimaryWavelength, fz/nf.params.PrimaryWavelength))
	d := clampUnit(nf.detail.Noise2D(fx/nf.params.DetailWavelength, fz/nf.params.DetailWavelength))

	w := nf.params.PrimaryWeight
	combined := w*p + (1-w)*d

	// [-1, 1] -> [0, 1] -> [HeightMin, HeightMax]
	t := (combined + 1) / 2
	span := float64(nf.params.HeightMax - nf.params.HeightMin)
	h := nf.params.HeightMin + int(math.Floor(t*span+0.5))

	if h < nf.params.HeightMin {
		return nf.params.HeightMin
	}
	if h > nf.params.HeightMax {
		return nf.params.HeightMax
	}
	return h
}

// CaveAt возвращает значение 3D поля пещер в диапазоне [0, 1)
func (nf *NoiseField) CaveAt(x, y, z int) float64 {
	s := nf.params.CaveWavelength
	n := nf.cave.Noise3D((float64(x)+0.5)/s, (float64(y)+0.5)/s, (float64(z)+0.5)/s)
	v := (clampUnit(n) + 1) / 2
	if v >= 1 {
		v = math.Nextafter(1, 0)
	}
	return v
}

// BiomeAt возвращает биом столбца по низкочастотному полю
func (nf *NoiseField) BiomeAt(x, z int) Biome {
	s := nf.params.BiomeWavelength
	v := nf.biome.Noise2D((float64(x)+0.5)/s, (float64(z)+0.5)/s)
	switch {
	case v < -0.15:
		return BiomeDesert
	case v > 0.15:
		return BiomeForest
	default:
		return BiomePlains
	}
}

func clampUnit(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
