package mission

import (
	"github.com/upgrd-hub/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MISSION CATALOG
// Статический набор миссий. Daily миссии зачитываются сразу,
// weekly миссии требуют доказательство и вердикт верификатора.
// ══════════════════════════════════════════════════════════════════════════════

// Canonical mission IDs.
const (
	MissionDailyBenchmark    shared.MissionID = "daily_benchmark"
	MissionDailyDriverUpdate shared.MissionID = "daily_driver_update"
	MissionDailyCleanup      shared.MissionID = "daily_cleanup"
	MissionWeeklyUpgrade     shared.MissionID = "weekly_hardware_upgrade"
	MissionWeeklyOptimize    shared.MissionID = "weekly_full_optimization"
)

// defaultCatalog - канонический каталог миссий.
var defaultCatalog = []*Mission{
	{
		ID:           MissionDailyBenchmark,
		Name:         "Rodar Benchmark",
		Description:  "Execute um benchmark completo no seu setup hoje.",
		Requirements: "Rodar pelo menos um benchmark (3DMark, Cinebench ou similar) e registrar o resultado.",
		Period:       shared.PeriodDaily,
		Reward:       50,
	},
	{
		ID:           MissionDailyDriverUpdate,
		Name:         "Atualizar Drivers",
		Description:  "Verifique e atualize os drivers da sua GPU.",
		Requirements: "Checar a versão instalada do driver de vídeo e atualizar se houver versão mais nova.",
		Period:       shared.PeriodDaily,
		Reward:       100,
	},
	{
		ID:           MissionDailyCleanup,
		Name:         "Limpeza do Sistema",
		Description:  "Faça uma limpeza de arquivos temporários e inicialização.",
		Requirements: "Remover arquivos temporários e revisar programas que iniciam com o sistema.",
		Period:       shared.PeriodDaily,
		Reward:       75,
	},
	{
		ID:            MissionWeeklyUpgrade,
		Name:          "Upgrade de Hardware",
		Description:   "Instale ou troque um componente do seu setup nesta semana.",
		Requirements:  "Instalar um componente novo (RAM, SSD, GPU, cooler etc.) com foto ou nota fiscal como evidência.",
		Period:        shared.PeriodWeekly,
		Reward:        500,
		RequiresProof: true,
	},
	{
		ID:            MissionWeeklyOptimize,
		Name:          "Otimização Completa",
		Description:   "Faça uma otimização completa do sistema nesta semana.",
		Requirements:  "Executar limpeza profunda, atualização de todos os drivers e ajuste do plano de energia, com descrição do antes e depois.",
		Period:        shared.PeriodWeekly,
		Reward:        300,
		RequiresProof: true,
	},
}

// Catalog - доступ к статическому каталогу миссий.
type Catalog struct {
	missions []*Mission
	byID     map[shared.MissionID]*Mission
}

// NewCatalog создаёт каталог с каноническим набором миссий.
func NewCatalog() *Catalog {
	return newCatalogFrom(defaultCatalog)
}

// NewCatalogWith создаёт каталог с произвольным набором миссий (для тестов).
func NewCatalogWith(missions []*Mission) *Catalog {
	return newCatalogFrom(missions)
}

func newCatalogFrom(missions []*Mission) *Catalog {
	byID := make(map[shared.MissionID]*Mission, len(missions))
	for _, m := range missions {
		byID[m.ID] = m
	}
	return &Catalog{missions: missions, byID: byID}
}

// All возвращает все миссии каталога в стабильном порядке.
func (c *Catalog) All() []*Mission {
	out := make([]*Mission, len(c.missions))
	copy(out, c.missions)
	return out
}

// ByPeriod возвращает миссии с указанным периодом.
func (c *Catalog) ByPeriod(p shared.Period) []*Mission {
	var out []*Mission
	for _, m := range c.missions {
		if m.Period == p {
			out = append(out, m)
		}
	}
	return out
}

// Get возвращает миссию по ID или ErrUnknownMission.
func (c *Catalog) Get(id shared.MissionID) (*Mission, error) {
	m, ok := c.byID[id]
	if !ok {
		return nil, shared.ErrUnknownMission
	}
	return m, nil
}

// Validate проверяет согласованность всех миссий каталога.
func (c *Catalog) Validate() error {
	seen := make(map[shared.MissionID]bool, len(c.missions))
	for _, m := range c.missions {
		if err := m.Validate(); err != nil {
			return err
		}
		if seen[m.ID] {
			return shared.NewDomainError("mission", "Validate", shared.ErrAlreadyExists,
				"duplicate mission ID in catalog: "+m.ID.String())
		}
		seen[m.ID] = true
	}
	return nil
}
