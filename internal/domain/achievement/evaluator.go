package achievement

import (
	"github.com/upgrd-hub/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVALUATOR
// Прогоняет предикаты каталога по снимку состояния и возвращает только
// новые достижения. Повторный вызов с тем же состоянием возвращает
// пустой результат - идемпотентность гарантируется набором unlocked.
// ══════════════════════════════════════════════════════════════════════════════

// Evaluator проверяет достижения по каталогу.
type Evaluator struct {
	catalog *Catalog
}

// NewEvaluator создаёт evaluator над указанным каталогом.
func NewEvaluator(catalog *Catalog) *Evaluator {
	return &Evaluator{catalog: catalog}
}

// Evaluate возвращает достижения, заслуженные сейчас, но ещё не
// разблокированные. unlocked - множество уже разблокированных ID.
func (e *Evaluator) Evaluate(ctx *EvalContext, unlocked map[shared.AchievementID]bool) []*Definition {
	if ctx == nil || ctx.Progress == nil {
		return nil
	}

	var earned []*Definition
	for _, def := range e.catalog.All() {
		if unlocked[def.ID] {
			continue
		}
		if def.Unlocked(ctx) {
			earned = append(earned, def)
		}
	}
	return earned
}

// TotalBonus суммирует бонусный XP набора достижений.
func TotalBonus(defs []*Definition) shared.XP {
	var total shared.XP
	for _, d := range defs {
		total += d.Bonus
	}
	return total
}
