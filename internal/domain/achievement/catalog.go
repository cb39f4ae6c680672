// Package achievement содержит каталог достижений UPGRD и движок
// их проверки. Достижения одноразовые: бонус начисляется ровно один раз.
package achievement

import (
	"github.com/upgrd-hub/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// Canonical achievement IDs.
const (
	AchievementFirstMission  shared.AchievementID = "first_mission"
	AchievementVisionario    shared.AchievementID = "visionario"
	AchievementMissionMaster shared.AchievementID = "mission_master"
	AchievementUpgrdPro      shared.AchievementID = "upgrd_pro"
	AchievementSetupMaster   shared.AchievementID = "setup_master"
	AchievementDiamond       shared.AchievementID = "diamond"
	AchievementStreak7       shared.AchievementID = "streak_7"
	AchievementStreak30      shared.AchievementID = "streak_30"
)

// Predicate проверяет, заслужено ли достижение в текущем состоянии.
// Предикаты чистые и идемпотентные: однажды истинный предикат обязан
// оставаться истинным (прогресс монотонен).
type Predicate func(ctx *EvalContext) bool

// Definition - определение достижения из каталога.
type Definition struct {
	// ID - стабильный идентификатор достижения.
	ID shared.AchievementID

	// Name - название для интерфейса.
	Name string

	// Description - условие получения, как его видит пользователь.
	Description string

	// Bonus - одноразовый бонус XP при разблокировке.
	Bonus shared.XP

	// Unlocked - предикат выполнения условия.
	Unlocked Predicate
}

// EvalContext - снимок состояния пользователя для проверки предикатов.
// Собирается application-слоем из репозиториев перед вызовом Evaluate.
type EvalContext struct {
	// Progress - текущий прогресс пользователя.
	Progress *UserSnapshot

	// TotalCompletions - всего выполненных миссий за всё время.
	TotalCompletions int

	// WeeklyCompletions - выполненных weekly миссий за всё время.
	WeeklyCompletions int

	// SetupComplete - заполнены ли все пять основных полей сетапа.
	SetupComplete bool
}

// UserSnapshot - поля прогресса, от которых зависят предикаты.
type UserSnapshot struct {
	TotalPoints   shared.XP
	Level         shared.Level
	SetupScore    int
	CurrentStreak int
	BestStreak    int
}

// defaultCatalog - канонический каталог достижений.
var defaultCatalog = []*Definition{
	{
		ID:          AchievementFirstMission,
		Name:        "Primeira Missão",
		Description: "Complete sua primeira missão.",
		Bonus:       30,
		Unlocked: func(ctx *EvalContext) bool {
			return ctx.TotalCompletions >= 1
		},
	},
	{
		ID:          AchievementVisionario,
		Name:        "Visionário",
		Description: "Complete 5 missões semanais.",
		Bonus:       50,
		Unlocked: func(ctx *EvalContext) bool {
			return ctx.WeeklyCompletions >= 5
		},
	},
	{
		ID:          AchievementMissionMaster,
		Name:        "Mestre das Missões",
		Description: "Complete 10 missões no total.",
		Bonus:       50,
		Unlocked: func(ctx *EvalContext) bool {
			return ctx.TotalCompletions >= 10
		},
	},
	{
		ID:          AchievementUpgrdPro,
		Name:        "UPGRD Pro",
		Description: "Acumule 1000 pontos de experiência.",
		Bonus:       40,
		Unlocked: func(ctx *EvalContext) bool {
			return ctx.Progress.TotalPoints >= 1000
		},
	},
	{
		ID:          AchievementSetupMaster,
		Name:        "Mestre do Setup",
		Description: "Cadastre todos os componentes do seu setup.",
		Bonus:       30,
		Unlocked: func(ctx *EvalContext) bool {
			return ctx.SetupComplete
		},
	},
	{
		ID:          AchievementDiamond,
		Name:        "Setup Diamante",
		Description: "Alcance um Setup Score de nível Diamante.",
		Bonus:       100,
		Unlocked: func(ctx *EvalContext) bool {
			return shared.TierForScore(ctx.Progress.SetupScore) == shared.TierDiamond
		},
	},
	{
		ID:          AchievementStreak7,
		Name:        "Semana Perfeita",
		Description: "Entre na plataforma 7 dias seguidos.",
		Bonus:       40,
		Unlocked: func(ctx *EvalContext) bool {
			return ctx.Progress.BestStreak >= 7
		},
	},
	{
		ID:          AchievementStreak30,
		Name:        "Mês Lendário",
		Description: "Entre na plataforma 30 dias seguidos.",
		Bonus:       100,
		Unlocked: func(ctx *EvalContext) bool {
			return ctx.Progress.BestStreak >= 30
		},
	},
}

// Catalog - доступ к статическому каталогу достижений.
type Catalog struct {
	defs []*Definition
	byID map[shared.AchievementID]*Definition
}

// NewCatalog создаёт каталог с каноническим набором достижений.
func NewCatalog() *Catalog {
	byID := make(map[shared.AchievementID]*Definition, len(defaultCatalog))
	for _, d := range defaultCatalog {
		byID[d.ID] = d
	}
	return &Catalog{defs: defaultCatalog, byID: byID}
}

// All возвращает все определения в стабильном порядке.
func (c *Catalog) All() []*Definition {
	out := make([]*Definition, len(c.defs))
	copy(out, c.defs)
	return out
}

// Get возвращает определение по ID или shared.ErrAchievementNotFound.
func (c *Catalog) Get(id shared.AchievementID) (*Definition, error) {
	d, ok := c.byID[id]
	if !ok {
		return nil, shared.ErrAchievementNotFound
	}
	return d, nil
}
