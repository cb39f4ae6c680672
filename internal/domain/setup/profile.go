// Package setup содержит доменную модель железа пользователя UPGRD:
// профиль сетапа, табличный скоринг компонентов и агрегацию Setup Score.
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
package setup

import (
	"strings"
	"time"

	"github.com/upgrd-hub/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPONENT CATEGORIES
// ══════════════════════════════════════════════════════════════════════════════

// Category - категория компонента сетапа.
type Category string

const (
	CategoryCPU         Category = "cpu"
	CategoryGPU         Category = "gpu"
	CategoryRAM         Category = "ram"
	CategoryStorage     Category = "storage"
	CategoryMonitor     Category = "monitor"
	CategoryMotherboard Category = "motherboard"
	CategoryCooling     Category = "cooling"
)

// AllCategories возвращает все категории в каноническом порядке.
func AllCategories() []Category {
	return []Category{
		CategoryCPU,
		CategoryGPU,
		CategoryRAM,
		CategoryStorage,
		CategoryMonitor,
		CategoryMotherboard,
		CategoryCooling,
	}
}

// IsValid проверяет, что категория известна.
func (c Category) IsValid() bool {
	switch c {
	case CategoryCPU, CategoryGPU, CategoryRAM, CategoryStorage,
		CategoryMonitor, CategoryMotherboard, CategoryCooling:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление.
func (c Category) String() string {
	return string(c)
}

// ══════════════════════════════════════════════════════════════════════════════
// SETUP PROFILE
// ══════════════════════════════════════════════════════════════════════════════

// Profile - заявленное железо пользователя в свободной форме.
// Профиль перезаписывается целиком при каждом сохранении и
// неизменяем между сохранениями.
type Profile struct {
	// UserID - владелец профиля.
	UserID shared.UserID

	// CPU - процессор ("Ryzen 9 7950X").
	CPU string

	// GPU - видеокарта ("RTX 4090").
	GPU string

	// RAM - оперативная память ("32GB DDR5").
	RAM string

	// Storage - накопитель ("1TB NVMe").
	Storage string

	// Monitor - монитор ("240Hz 1440p").
	Monitor string

	// Motherboard - материнская плата (опционально).
	Motherboard string

	// Cooling - охлаждение (опционально).
	Cooling string

	// SavedAt - время последнего сохранения.
	SavedAt time.Time
}

// Field возвращает текст поля по категории.
func (p *Profile) Field(c Category) string {
	switch c {
	case CategoryCPU:
		return p.CPU
	case CategoryGPU:
		return p.GPU
	case CategoryRAM:
		return p.RAM
	case CategoryStorage:
		return p.Storage
	case CategoryMonitor:
		return p.Monitor
	case CategoryMotherboard:
		return p.Motherboard
	case CategoryCooling:
		return p.Cooling
	default:
		return ""
	}
}

// IsComplete возвращает true, если заполнены все пять основных полей.
// Используется достижением "Setup Master".
func (p *Profile) IsComplete() bool {
	for _, c := range []Category{CategoryCPU, CategoryGPU, CategoryRAM, CategoryStorage, CategoryMonitor} {
		if strings.TrimSpace(p.Field(c)) == "" {
			return false
		}
	}
	return true
}

// IsEmpty возвращает true, если не заполнено ни одно поле.
func (p *Profile) IsEmpty() bool {
	for _, c := range AllCategories() {
		if strings.TrimSpace(p.Field(c)) != "" {
			return false
		}
	}
	return true
}
