package block

import (
	"errors"
	"fmt"
	"sync"

	"github.com/annel0/blockworld/internal/logging"
)

// ErrRegistryFrozen возвращается при попытке изменить реестр после инициализации
var ErrRegistryFrozen = errors.New("реестр блоков заморожен")

// Properties описывает физические свойства типа блока
type Properties struct {
	Name        string
	Solid       bool            // участвует в коллизиях и трассировке лучей
	Transparent bool            // пропускает свет/не скрывает соседей при отрисовке
	Hardness    float64         // прочность; отрицательное значение означает неразрушаемый
	HarvestTool Tool            // предпочтительный инструмент
	Physics     PhysicsBehavior // физическое поведение
}

// Registry представляет фиксированную таблицу свойств, индексируемая типом блока.
// Заполняется только при старте; после Freeze изменения запрещены.
type Registry struct {
	props   [KindCount]Properties
	defined [KindCount]bool
	frozen  bool
	warned  sync.Map // Kind -> struct{}, чтобы не спамить предупреждениями
	logger  *logging.Logger
}

// NewRegistry создаёт пустой реестр, в котором определён только воздух
func NewRegistry() *Registry {
	r := &Registry{logger: logging.GetComponentLogger("block")}
	r.props[Air] = Properties{Name: Air.String(), Transparent: true}
	r.defined[Air] = true
	return r
}

// Define задаёт свойства типа блока. Вызывается только при старте.
func (r *Registry) Define(kind Kind, props Properties) error {
	if r.frozen {
		return fmt.Errorf("define %s: %w", kind, ErrRegistryFrozen)
	}
	if !kind.Valid() {
		return fmt.Errorf("define: недопустимый тип блока %d", uint8(kind))
	}
	if props.Name == "" {
		props.Name = kind.String()
	}
	r.props[kind] = props
	r.defined[kind] = true
	return nil
}

// Freeze запрещает дальнейшие изменения реестра
func (r *Registry) Freeze() {
	r.frozen = true
}

// Get возвращает свойства типа блока. Для неизвестного или неопределённого
// типа возвращается запись воздуха и пишется предупреждение (один раз на тип).
func (r *Registry) Get(kind Kind) Properties {
	if kind.Valid() && r.defined[kind] {
		return r.props[kind]
	}

	if _, seen := r.warned.LoadOrStore(kind, struct{}{}); !seen {
		r.logger.Warn("Неизвестный тип блока %s, используется воздух", kind)
	}
	return r.props[Air]
}

// IsSolid сокращает Get(kind).Solid
func (r *Registry) IsSolid(kind Kind) bool {
	return r.Get(kind).Solid
}

// Defined сообщает, определён ли тип блока
func (r *Registry) Defined(kind Kind) bool {
	return kind.Valid() && r.defined[kind]
}

// свойства встроенных блоков
var builtins = map[Kind]Properties{
	Bedrock: {Solid: true, Hardness: -1},
	Stone:   {Solid: true, Hardness: 1.5, HarvestTool: ToolPickaxe},
	Dirt:    {Solid: true, Hardness: 0.5, HarvestTool: ToolShovel},
	Grass:   {Solid: true, Hardness: 0.6, HarvestTool: ToolShovel},
	Sand:    {Solid: true, Hardness: 0.5, HarvestTool: ToolShovel, Physics: PhysicsFalling},
	Water:   {Transparent: true, Hardness: 100, Physics: PhysicsFluid},
	Wood:    {Solid: true, Hardness: 2, HarvestTool: ToolAxe},
	Leaves:  {Solid: true, Transparent: true, Hardness: 0.2, HarvestTool: ToolShears},
}

var (
	defaultRegistry *Registry
	defaultOnce     sync.Once
)

// Default возвращает замороженный реестр со всеми встроенными типами
func Default() *Registry {
	defaultOnce.Do(func() {
		r := NewRegistry()
		for kind, props := range builtins {
			if err := r.Define(kind, props); err != nil {
				panic(err)
			}
		}
		r.Freeze()
		defaultRegistry = r
	})
	return defaultRegistry
}
