// Package mission содержит доменную модель миссий UPGRD:
// каталог, окна периодов и машина состояний выполнения.
package mission

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/upgrd-hub/progression-engine/internal/domain/shared"
	"github.com/upgrd-hub/progression-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// MISSION DEFINITION
// ══════════════════════════════════════════════════════════════════════════════

// Mission - определение миссии из каталога.
// Каталог статичен: миссии не создаются пользователями.
type Mission struct {
	// ID - стабильный идентификатор миссии в каталоге.
	ID shared.MissionID

	// Name - название миссии для интерфейса.
	Name string

	// Description - краткое описание, что нужно сделать.
	Description string

	// Requirements - критерии зачёта. Передаются верификатору вместе
	// с доказательством для proof-gated миссий.
	Requirements string

	// Period - окно повторения: daily или weekly.
	Period shared.Period

	// Reward - XP за выполнение.
	Reward shared.XP

	// RequiresProof - требуется ли текстовое доказательство.
	// Только weekly миссии могут требовать proof.
	RequiresProof bool
}

// Validate проверяет согласованность определения миссии.
func (m *Mission) Validate() error {
	if !m.ID.IsValid() {
		return shared.NewDomainError("mission", "Validate", shared.ErrInvalidID, "invalid mission ID")
	}
	if strings.TrimSpace(m.Name) == "" {
		return shared.NewDomainError("mission", "Validate", shared.ErrEmptyValue, "mission name cannot be empty")
	}
	if !m.Period.IsValid() {
		return shared.ErrInvalidMissionPeriod
	}
	if m.Reward <= 0 {
		return shared.NewDomainError("mission", "Validate", shared.ErrValueOutOfRange, "mission reward must be positive")
	}
	if m.RequiresProof && m.Period != shared.PeriodWeekly {
		return shared.NewDomainError("mission", "Validate", shared.ErrInvalidState, "proof-gated missions must be weekly")
	}
	return nil
}

// PeriodStartFor возвращает начало текущего окна периода для момента now.
// Daily: полночь дня по Сан-Паулу. Weekly: понедельник 00:00 (ISO-8601).
func PeriodStartFor(p shared.Period, now time.Time) time.Time {
	switch p {
	case shared.PeriodWeekly:
		return timeutil.StartOfWeek(now)
	default:
		return timeutil.StartOfDay(now)
	}
}

// PeriodEndFor возвращает начало следующего окна периода (эксклюзивная граница).
func PeriodEndFor(p shared.Period, now time.Time) time.Time {
	switch p {
	case shared.PeriodWeekly:
		return timeutil.NextWeekStart(now)
	default:
		return timeutil.StartOfDay(now).AddDate(0, 0, 1)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETION STATE
// ══════════════════════════════════════════════════════════════════════════════

// Status - состояние миссии для конкретного пользователя в текущем периоде.
type Status string

const (
	// StatusAvailable - миссия доступна к выполнению.
	StatusAvailable Status = "available"

	// StatusProofSubmitted - доказательство отправлено и ждёт вердикта.
	StatusProofSubmitted Status = "proof_submitted"

	// StatusCompleted - миссия выполнена в текущем периоде.
	StatusCompleted Status = "completed"
)

// Completion - факт выполнения миссии пользователем в одном периоде.
// Уникальность пары (user, mission) внутри периода обеспечивается
// ограничением (user_id, mission_id, period_start) в хранилище.
type Completion struct {
	// ID - уникальный идентификатор записи.
	ID string

	// UserID - кто выполнил.
	UserID shared.UserID

	// MissionID - какая миссия.
	MissionID shared.MissionID

	// Period - тип периода миссии (денормализован для подсчётов).
	Period shared.Period

	// PeriodStart - начало периода, в котором засчитано выполнение.
	PeriodStart time.Time

	// RewardXP - сколько XP было начислено.
	RewardXP shared.XP

	// CompletedAt - момент зачёта.
	CompletedAt time.Time
}

// NewCompletion создаёт запись о выполнении миссии.
func NewCompletion(userID shared.UserID, m *Mission, now time.Time) *Completion {
	return &Completion{
		ID:          uuid.New().String(),
		UserID:      userID,
		MissionID:   m.ID,
		Period:      m.Period,
		PeriodStart: PeriodStartFor(m.Period, now),
		RewardXP:    m.Reward,
		CompletedAt: now.UTC(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// PROOF SUBMISSIONS
// ══════════════════════════════════════════════════════════════════════════════

// ProofStatus - состояние отправленного доказательства.
type ProofStatus string

const (
	// ProofPending - доказательство ждёт вердикта верификатора.
	ProofPending ProofStatus = "pending"

	// ProofAccepted - верификатор принял доказательство.
	ProofAccepted ProofStatus = "accepted"

	// ProofRejected - верификатор отклонил доказательство.
	// Миссия возвращается в StatusAvailable, можно отправить заново.
	ProofRejected ProofStatus = "rejected"
)

// MaxProofLength - максимальная длина текста доказательства.
const MaxProofLength = 4000

// ProofSubmission - отправленное доказательство выполнения weekly миссии.
type ProofSubmission struct {
	// ID - уникальный идентификатор отправки.
	ID string

	// UserID - кто отправил.
	UserID shared.UserID

	// MissionID - к какой миссии относится.
	MissionID shared.MissionID

	// PeriodStart - начало периода, в котором отправлено.
	PeriodStart time.Time

	// Proof - текст доказательства.
	Proof string

	// Status - текущий вердикт.
	Status ProofStatus

	// VerifierNote - комментарий верификатора (если был).
	VerifierNote string

	// SubmittedAt - момент отправки.
	SubmittedAt time.Time

	// ReviewedAt - момент вынесения вердикта (нулевое время, пока pending).
	ReviewedAt time.Time
}

// NewProofSubmission создаёт отправку доказательства в состоянии pending.
func NewProofSubmission(userID shared.UserID, m *Mission, proof string, now time.Time) (*ProofSubmission, error) {
	trimmed := strings.TrimSpace(proof)
	if trimmed == "" {
		return nil, shared.ErrEmptyProof
	}
	if len(trimmed) > MaxProofLength {
		return nil, shared.NewDomainError("mission", "SubmitProof", shared.ErrValueOutOfRange, "proof text too long")
	}
	if !m.RequiresProof {
		return nil, shared.ErrProofNotRequired
	}
	return &ProofSubmission{
		ID:          uuid.New().String(),
		UserID:      userID,
		MissionID:   m.ID,
		PeriodStart: PeriodStartFor(m.Period, now),
		Proof:       trimmed,
		Status:      ProofPending,
		SubmittedAt: now.UTC(),
	}, nil
}

// Accept переводит доказательство в accepted.
func (s *ProofSubmission) Accept(note string, at time.Time) error {
	if s.Status != ProofPending {
		return shared.WrapError("mission", "AcceptProof", shared.ErrStateTransition,
			"proof is not pending", nil)
	}
	s.Status = ProofAccepted
	s.VerifierNote = note
	s.ReviewedAt = at.UTC()
	return nil
}

// Reject переводит доказательство в rejected. Миссия снова становится
// доступной: пользователь может отправить новое доказательство.
func (s *ProofSubmission) Reject(note string, at time.Time) error {
	if s.Status != ProofPending {
		return shared.WrapError("mission", "RejectProof", shared.ErrStateTransition,
			"proof is not pending", nil)
	}
	s.Status = ProofRejected
	s.VerifierNote = note
	s.ReviewedAt = at.UTC()
	return nil
}
