package mission

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROOF VERIFIER PORT
// Реализация живёт в infrastructure/external (LLM-клиент).
// ══════════════════════════════════════════════════════════════════════════════

// Verdict - вердикт верификатора по доказательству.
type Verdict struct {
	// Accepted - принято ли доказательство.
	Accepted bool

	// Note - пояснение верификатора (свободный текст).
	Note string
}

// Verifier проверяет доказательства выполнения weekly миссий.
// Ошибка означает недоступность верификатора, а не вердикт:
// отказ выражается через Verdict.Accepted == false.
type Verifier interface {
	Verify(ctx context.Context, m *Mission, proof string) (*Verdict, error)
}
