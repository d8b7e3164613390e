package block

import (
	"fmt"
	"strings"
)

// Kind задаёт закрытое перечисление типов блоков.
// Значение используется как индекс в таблице свойств реестра.
type Kind uint8

const (
	Air Kind = iota // 0, всегда первый: нулевое значение массива чанка = воздух
	Bedrock
	Stone
	Dirt
	Grass
	Sand
	Water
	Wood
	Leaves

	KindCount // всегда последний: количество типов
)

var kindNames = [KindCount]string{
	Air:     "air",
	Bedrock: "bedrock",
	Stone:   "stone",
	Dirt:    "dirt",
	Grass:   "grass",
	Sand:    "sand",
	Water:   "water",
	Wood:    "wood",
	Leaves:  "leaves",
}

// String возвращает имя типа блока
func (k Kind) String() string {
	if k < KindCount {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Valid проверяет, что значение входит в перечисление
func (k Kind) Valid() bool {
	return k < KindCount
}

// ParseKind возвращает тип блока по имени (регистр не важен)
func ParseKind(name string) (Kind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for k, n := range kindNames {
		if n == name {
			return Kind(k), nil
		}
	}
	return Air, fmt.Errorf("неизвестный тип блока %q", name)
}

// MarshalText кодирует тип блока именем (JSON/YAML)
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("недопустимый тип блока %d", uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText разбирает тип блока из имени
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Tool обозначает инструмент, которым добывается блок
type Tool uint8

const (
	ToolNone Tool = iota
	ToolPickaxe
	ToolShovel
	ToolAxe
	ToolShears
)

// String возвращает имя инструмента
func (t Tool) String() string {
	switch t {
	case ToolPickaxe:
		return "pickaxe"
	case ToolShovel:
		return "shovel"
	case ToolAxe:
		return "axe"
	case ToolShears:
		return "shears"
	default:
		return "none"
	}
}

// PhysicsBehavior описывает физическое поведение блока
type PhysicsBehavior uint8

const (
	PhysicsNone    PhysicsBehavior = iota
	PhysicsFalling                 // осыпается, если снизу пусто (песок)
	PhysicsFluid                   // жидкость
)

// String возвращает имя поведения
func (p PhysicsBehavior) String() string {
	switch p {
	case PhysicsFalling:
		return "falling"
	case PhysicsFluid:
		return "fluid"
	default:
		return "none"
	}
}
