package setup

import (
	"regexp"
	"strconv"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPONENT SCORER
// Табличный скоринг: упорядоченный список (предикат, балл), проверяемый
// сверху вниз. Новые поколения железа - это данные, а не код.
// ══════════════════════════════════════════════════════════════════════════════

// Band - одна строка таблицы скоринга: набор ключевых слов и балл.
// Совпадение по подстроке, регистр игнорируется.
type Band struct {
	// Keywords - ключевые слова уровня ("4090", "ryzen 9").
	Keywords []string

	// Score - балл за попадание в уровень.
	Score int
}

// Matches проверяет, содержит ли текст одно из ключевых слов уровня.
func (b Band) Matches(text string) bool {
	for _, kw := range b.Keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// CategoryRules - правила скоринга одной категории.
type CategoryRules struct {
	// Category - к какой категории относятся правила.
	Category Category

	// Max - максимальный балл категории.
	Max int

	// Bands - уровни в порядке убывания балла; первый совпавший побеждает.
	Bands []Band

	// Fallback - балл за непустой, но нераспознанный текст
	// (минимальный ненулевой уровень: "что-то есть" лучше, чем "ничего").
	Fallback int

	// NumericCapacity - true для RAM: балл считается по первому числу
	// в строке (объём в GB), а не по ключевым словам.
	NumericCapacity bool

	// CapacityBands - пороги объёма в порядке убывания (для NumericCapacity).
	CapacityBands []CapacityBand
}

// CapacityBand - порог объёма и балл за него.
type CapacityBand struct {
	// MinCapacity - минимальный объём в GB.
	MinCapacity int

	// Score - балл за достижение порога.
	Score int
}

// defaultRules - каноническая таблица скоринга.
// Единственная шкала во всём приложении: CPU 300, GPU 400, RAM 150,
// Storage 100, Monitor 100, Motherboard 100, Cooling 100.
var defaultRules = map[Category]CategoryRules{
	CategoryCPU: {
		Category: CategoryCPU,
		Max:      300,
		Bands: []Band{
			{Keywords: []string{"i9", "ryzen 9"}, Score: 300},
			{Keywords: []string{"i7", "ryzen 7"}, Score: 250},
			{Keywords: []string{"i5", "ryzen 5"}, Score: 180},
		},
		Fallback: 100,
	},
	CategoryGPU: {
		Category: CategoryGPU,
		Max:      400,
		Bands: []Band{
			{Keywords: []string{"4090", "7900"}, Score: 400},
			{Keywords: []string{"4080", "7800"}, Score: 350},
			{Keywords: []string{"4070", "7700"}, Score: 280},
			{Keywords: []string{"3060", "6600"}, Score: 200},
		},
		Fallback: 120,
	},
	CategoryRAM: {
		Category:        CategoryRAM,
		Max:             150,
		NumericCapacity: true,
		CapacityBands: []CapacityBand{
			{MinCapacity: 32, Score: 150},
			{MinCapacity: 16, Score: 100},
			{MinCapacity: 8, Score: 60},
		},
		Fallback: 30,
	},
	CategoryStorage: {
		Category: CategoryStorage,
		Max:      100,
		Bands: []Band{
			{Keywords: []string{"nvme", "m.2"}, Score: 100},
			{Keywords: []string{"ssd"}, Score: 70},
		},
		Fallback: 40,
	},
	CategoryMonitor: {
		Category: CategoryMonitor,
		Max:      100,
		Bands: []Band{
			{Keywords: []string{"240", "4k"}, Score: 100},
			{Keywords: []string{"144", "165"}, Score: 80},
			{Keywords: []string{"120"}, Score: 60},
		},
		Fallback: 40,
	},
	CategoryMotherboard: {
		Category: CategoryMotherboard,
		Max:      100,
		Bands: []Band{
			{Keywords: []string{"x670", "x870", "z790", "z890"}, Score: 100},
			{Keywords: []string{"b650", "b760", "b850"}, Score: 70},
		},
		Fallback: 40,
	},
	CategoryCooling: {
		Category: CategoryCooling,
		Max:      100,
		Bands: []Band{
			{Keywords: []string{"custom loop", "360"}, Score: 100},
			{Keywords: []string{"aio", "240mm", "water"}, Score: 70},
		},
		Fallback: 40,
	},
}

// firstNumberRegex извлекает первое целое число из строки (для RAM).
var firstNumberRegex = regexp.MustCompile(`\d+`)

// Scorer оценивает текстовые описания компонентов по таблице правил.
type Scorer struct {
	rules map[Category]CategoryRules
}

// NewScorer создаёт Scorer с канонической таблицей.
func NewScorer() *Scorer {
	return &Scorer{rules: defaultRules}
}

// Rules возвращает правила категории (для отображения "как считается score").
func (s *Scorer) Rules(c Category) (CategoryRules, bool) {
	rules, ok := s.rules[c]
	return rules, ok
}

// MaxScore возвращает максимальный балл категории.
func (s *Scorer) MaxScore(c Category) int {
	return s.rules[c].Max
}

// MaxTotal возвращает сумму максимумов всех категорий.
func (s *Scorer) MaxTotal() int {
	total := 0
	for _, rules := range s.rules {
		total += rules.Max
	}
	return total
}

// ScoreComponent оценивает текст компонента в категории.
//
// Политика:
//   - пустое поле - 0, никогда не ошибка;
//   - первый совпавший уровень (в порядке убывания балла) побеждает;
//   - непустой нераспознанный текст получает минимальный ненулевой балл.
//
// Неизвестная категория - 0: данные плохого качества нормализуются,
// а не превращаются в ошибку.
func (s *Scorer) ScoreComponent(c Category, freeText string) int {
	rules, ok := s.rules[c]
	if !ok {
		return 0
	}

	text := strings.ToLower(strings.TrimSpace(freeText))
	if text == "" {
		return 0
	}

	if rules.NumericCapacity {
		return s.scoreCapacity(rules, text)
	}

	for _, band := range rules.Bands {
		if band.Matches(text) {
			return band.Score
		}
	}
	return rules.Fallback
}

// scoreCapacity извлекает первое число из строки и подбирает порог.
func (s *Scorer) scoreCapacity(rules CategoryRules, text string) int {
	match := firstNumberRegex.FindString(text)
	if match == "" {
		return rules.Fallback
	}

	capacity, err := strconv.Atoi(match)
	if err != nil {
		// Число длиннее int не встречается в реальных объёмах RAM.
		return rules.Fallback
	}

	for _, band := range rules.CapacityBands {
		if capacity >= band.MinCapacity {
			return band.Score
		}
	}
	return rules.Fallback
}
