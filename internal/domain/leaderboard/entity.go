// Package leaderboard содержит доменную модель лидерборда UPGRD.
// Пользователи ранжируются по суммарному XP за всё время (TotalPoints);
// вместе с позицией показываются уровень и tier сетапа.
package leaderboard

import (
	"fmt"
	"sort"
	"time"

	"github.com/upgrd-hub/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RANK CHANGE
// ══════════════════════════════════════════════════════════════════════════════

// RankChange представляет изменение позиции с прошлой пересборки.
// Положительное значение = подъём, отрицательное = падение.
type RankChange int

// Abs возвращает абсолютное значение изменения.
func (rc RankChange) Abs() int {
	if rc < 0 {
		return int(-rc)
	}
	return int(rc)
}

// String возвращает строковое представление изменения.
func (rc RankChange) String() string {
	switch {
	case rc > 0:
		return fmt.Sprintf("+%d", int(rc))
	case rc < 0:
		return fmt.Sprintf("%d", int(rc))
	default:
		return "="
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: LEADERBOARD ENTRY
// ══════════════════════════════════════════════════════════════════════════════

// Entry представляет одну запись в лидерборде.
type Entry struct {
	// Rank - текущая позиция в рейтинге.
	Rank shared.Rank

	// UserID - идентификатор пользователя.
	UserID shared.UserID

	// DisplayName - отображаемое имя.
	DisplayName string

	// TotalPoints - суммарный XP за всё время (ключ сортировки).
	TotalPoints shared.XP

	// Level - текущий уровень.
	Level shared.Level

	// Tier - tier сетапа по последнему Setup Score.
	Tier shared.Tier

	// RankChange - изменение позиции с прошлой пересборки.
	RankChange RankChange

	// UpdatedAt - время последнего обновления TotalPoints.
	UpdatedAt time.Time
}

// NewEntry создаёт запись лидерборда с валидацией.
func NewEntry(userID shared.UserID, displayName string, totalPoints shared.XP, level shared.Level, tier shared.Tier) (*Entry, error) {
	if !userID.IsValid() {
		return nil, shared.ErrInvalidUserID
	}
	if !totalPoints.IsValid() {
		return nil, shared.NewDomainError("leaderboard", "NewEntry", shared.ErrValueOutOfRange, "total points out of range")
	}
	return &Entry{
		UserID:      userID,
		DisplayName: displayName,
		TotalPoints: totalPoints,
		Level:       level,
		Tier:        tier,
		UpdatedAt:   time.Now().UTC(),
	}, nil
}

// PointsGap возвращает разрыв в XP с другой записью.
func (e *Entry) PointsGap(other *Entry) shared.XP {
	if other == nil {
		return 0
	}
	diff := e.TotalPoints - other.TotalPoints
	if diff < 0 {
		return -diff
	}
	return diff
}

// Clone создаёт копию записи.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	clone := *e
	return &clone
}

// String возвращает строковое представление для логирования.
func (e *Entry) String() string {
	return fmt.Sprintf(
		"Entry{Rank: %d, User: %s, Points: %d, Change: %s}",
		e.Rank, e.UserID, e.TotalPoints, e.RankChange.String(),
	)
}

// ══════════════════════════════════════════════════════════════════════════════
// RANKING (Ranked List)
// ══════════════════════════════════════════════════════════════════════════════

// Ranking представляет полный отсортированный список пользователей.
// Вспомогательная структура для пересборки лидерборда.
type Ranking struct {
	entries []*Entry
	byID    map[shared.UserID]*Entry
}

// NewRanking создаёт пустой Ranking.
func NewRanking() *Ranking {
	return &Ranking{
		entries: make([]*Entry, 0),
		byID:    make(map[shared.UserID]*Entry),
	}
}

// Add добавляет запись в рейтинг (без автоматической сортировки).
func (r *Ranking) Add(entry *Entry) error {
	if entry == nil {
		return shared.NewDomainError("leaderboard", "Add", shared.ErrInvalidInput, "entry cannot be nil")
	}
	if _, exists := r.byID[entry.UserID]; exists {
		return shared.NewDomainError("leaderboard", "Add", shared.ErrAlreadyExists,
			"duplicate user in ranking: "+entry.UserID.String())
	}

	r.entries = append(r.entries, entry)
	r.byID[entry.UserID] = entry
	return nil
}

// Sort сортирует записи по TotalPoints (по убыванию) и присваивает ранги.
// При равных очках ранг общий, порядок стабилизируется по UserID.
func (r *Ranking) Sort() {
	sort.Slice(r.entries, func(i, j int) bool {
		if r.entries[i].TotalPoints != r.entries[j].TotalPoints {
			return r.entries[i].TotalPoints > r.entries[j].TotalPoints
		}
		return r.entries[i].UserID < r.entries[j].UserID
	})

	for i, entry := range r.entries {
		if i > 0 && entry.TotalPoints == r.entries[i-1].TotalPoints {
			entry.Rank = r.entries[i-1].Rank
		} else {
			entry.Rank = shared.Rank(i + 1)
		}
	}
}

// ApplyPreviousRanks вычисляет RankChange относительно прошлых позиций.
// previous - отображение UserID -> прошлый ранг; отсутствующие
// пользователи считаются новичками (RankChange = 0).
func (r *Ranking) ApplyPreviousRanks(previous map[shared.UserID]shared.Rank) {
	for _, entry := range r.entries {
		prev, ok := previous[entry.UserID]
		if !ok || !prev.IsValid() {
			entry.RankChange = 0
			continue
		}
		entry.RankChange = RankChange(int(prev) - int(entry.Rank))
	}
}

// GetByID возвращает запись по ID пользователя или nil.
func (r *Ranking) GetByID(userID shared.UserID) *Entry {
	return r.byID[userID]
}

// Top возвращает первые n записей (после Sort).
func (r *Ranking) Top(n int) []*Entry {
	if n <= 0 {
		return nil
	}
	if n > len(r.entries) {
		n = len(r.entries)
	}
	out := make([]*Entry, n)
	copy(out, r.entries[:n])
	return out
}

// Page возвращает страницу записей (нумерация страниц с 1).
func (r *Ranking) Page(page, pageSize int) []*Entry {
	if page < 1 || pageSize < 1 {
		return nil
	}
	from := (page - 1) * pageSize
	if from >= len(r.entries) {
		return nil
	}
	to := from + pageSize
	if to > len(r.entries) {
		to = len(r.entries)
	}
	out := make([]*Entry, to-from)
	copy(out, r.entries[from:to])
	return out
}

// Neighbors возвращает окно записей вокруг пользователя
// (rangeSize записей выше и ниже). Пустой результат, если пользователя нет.
func (r *Ranking) Neighbors(userID shared.UserID, rangeSize int) []*Entry {
	idx := -1
	for i, entry := range r.entries {
		if entry.UserID == userID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}

	from := idx - rangeSize
	if from < 0 {
		from = 0
	}
	to := idx + rangeSize + 1
	if to > len(r.entries) {
		to = len(r.entries)
	}
	out := make([]*Entry, to-from)
	copy(out, r.entries[from:to])
	return out
}

// Count возвращает число записей.
func (r *Ranking) Count() int {
	return len(r.entries)
}

// All возвращает все записи в текущем порядке.
func (r *Ranking) All() []*Entry {
	out := make([]*Entry, len(r.entries))
	copy(out, r.entries)
	return out
}
