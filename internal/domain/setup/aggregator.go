package setup

import (
	"github.com/upgrd-hub/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SETUP SCORE AGGREGATOR
// Чистая функция: профиль на входе, итоговый балл и тир на выходе.
// Персистентность - забота вызывающего.
// ══════════════════════════════════════════════════════════════════════════════

// Score - результат агрегации Setup Score.
type Score struct {
	// Total - суммарный балл, ограничен суммой максимумов категорий.
	Total int

	// Breakdown - балл по каждой категории.
	Breakdown map[Category]int

	// Tier - тир, соответствующий итоговому баллу.
	Tier shared.Tier
}

// Aggregator суммирует баллы категорий и классифицирует сетап по тирам.
type Aggregator struct {
	scorer *Scorer
}

// NewAggregator создаёт Aggregator с каноническим Scorer.
func NewAggregator() *Aggregator {
	return &Aggregator{scorer: NewScorer()}
}

// NewAggregatorWithScorer создаёт Aggregator с заданным Scorer (для тестов).
func NewAggregatorWithScorer(scorer *Scorer) *Aggregator {
	return &Aggregator{scorer: scorer}
}

// Aggregate считает Setup Score профиля.
// Функция чистая и идемпотентная: одинаковый профиль - одинаковый результат.
func (a *Aggregator) Aggregate(profile *Profile) Score {
	breakdown := make(map[Category]int, len(AllCategories()))
	total := 0

	for _, category := range AllCategories() {
		score := a.scorer.ScoreComponent(category, profile.Field(category))
		breakdown[category] = score
		total += score
	}

	if max := a.scorer.MaxTotal(); total > max {
		total = max
	}

	return Score{
		Total:     total,
		Breakdown: breakdown,
		Tier:      shared.TierForScore(total),
	}
}
