package mission

// ══════════════════════════════════════════════════════════════════════════════
// STATUS RESOLUTION
// Статус вычисляется лениво: выполнения привязаны к началу периода,
// поэтому при смене дня/недели старые записи просто перестают совпадать
// с текущим окном - никакого фонового сброса не требуется.
// ══════════════════════════════════════════════════════════════════════════════

// StatusFor вычисляет статус миссии по записям текущего периода.
// completions и proofs должны быть отфильтрованы по текущему periodStart.
func StatusFor(m *Mission, completions []*Completion, proofs []*ProofSubmission) Status {
	for _, c := range completions {
		if c.MissionID == m.ID {
			return StatusCompleted
		}
	}
	if m.RequiresProof {
		for _, p := range proofs {
			if p.MissionID == m.ID && p.Status == ProofPending {
				return StatusProofSubmitted
			}
		}
	}
	return StatusAvailable
}
