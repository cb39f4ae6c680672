package query

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/upgrd-hub/progression-engine/internal/domain/leaderboard"
	"github.com/upgrd-hub/progression-engine/internal/domain/mission"
	"github.com/upgrd-hub/progression-engine/internal/domain/progression"
	"github.com/upgrd-hub/progression-engine/internal/domain/shared"
)

// In-memory doubles for the read side. Write-side behavior is covered
// by the command package tests; these only need faithful reads.

type fakeProgressRepo struct {
	mu   sync.Mutex
	byID map[shared.UserID]*progression.UserProgress
}

func newFakeProgressRepo() *fakeProgressRepo {
	return &fakeProgressRepo{byID: make(map[shared.UserID]*progression.UserProgress)}
}

func (r *fakeProgressRepo) Create(_ context.Context, p *progression.UserProgress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[p.UserID]; ok {
		return shared.ErrAlreadyExists
	}
	r.byID[p.UserID] = p.Clone()
	return nil
}

func (r *fakeProgressRepo) GetByUserID(_ context.Context, userID shared.UserID) (*progression.UserProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[userID]
	if !ok {
		return nil, shared.ErrProgressNotFound
	}
	return p.Clone(), nil
}

func (r *fakeProgressRepo) Update(_ context.Context, p *progression.UserProgress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[p.UserID] = p.Clone()
	return nil
}

func (r *fakeProgressRepo) GetAll(_ context.Context, _ progression.ListOptions) ([]*progression.UserProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]*progression.UserProgress, 0, len(r.byID))
	for _, p := range r.byID {
		all = append(all, p.Clone())
	}
	return all, nil
}

func (r *fakeProgressRepo) Count(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID), nil
}

func (r *fakeProgressRepo) SaveXPChange(_ context.Context, _ progression.XPHistoryEntry) error {
	return nil
}

func (r *fakeProgressRepo) GetXPHistory(_ context.Context, _ shared.UserID, _, _ time.Time) ([]progression.XPHistoryEntry, error) {
	return nil, nil
}

func seedProgress(t testing.TB, repo *fakeProgressRepo, userID string, mutate func(*progression.UserProgress)) *progression.UserProgress {
	t.Helper()
	p := progression.NewUserProgress(shared.UserID(userID), "Rafael")
	if mutate != nil {
		mutate(p)
	}
	if err := repo.Create(context.Background(), p); err != nil {
		t.Fatalf("seed progress: %v", err)
	}
	return p
}

type fakeCompletionRepo struct {
	mu          sync.Mutex
	completions []*mission.Completion
}

func (r *fakeCompletionRepo) Create(_ context.Context, c *mission.Completion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.completions {
		if existing.UserID == c.UserID && existing.MissionID == c.MissionID &&
			existing.PeriodStart.Equal(c.PeriodStart) {
			return shared.ErrAlreadyCompleted
		}
	}
	r.completions = append(r.completions, c)
	return nil
}

func (r *fakeCompletionRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, c := range r.completions {
		if c.ID == id {
			r.completions = append(r.completions[:i], r.completions[i+1:]...)
			return nil
		}
	}
	return shared.ErrNotFound
}

func (r *fakeCompletionRepo) GetForPeriod(_ context.Context, userID shared.UserID, periodStart time.Time) ([]*mission.Completion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*mission.Completion
	for _, c := range r.completions {
		if c.UserID == userID && c.PeriodStart.Equal(periodStart) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeCompletionRepo) CountByUser(_ context.Context, userID shared.UserID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, c := range r.completions {
		if c.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (r *fakeCompletionRepo) CountByUserAndPeriodType(_ context.Context, userID shared.UserID, p shared.Period) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, c := range r.completions {
		if c.UserID == userID && c.Period == p {
			count++
		}
	}
	return count, nil
}

type fakeProofRepo struct {
	mu   sync.Mutex
	subs []*mission.ProofSubmission
}

func (r *fakeProofRepo) Create(_ context.Context, s *mission.ProofSubmission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = append(r.subs, s)
	return nil
}

func (r *fakeProofRepo) Update(_ context.Context, _ *mission.ProofSubmission) error {
	return nil
}

func (r *fakeProofRepo) GetPending(_ context.Context, userID shared.UserID, missionID shared.MissionID, periodStart time.Time) (*mission.ProofSubmission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.subs {
		if s.UserID == userID && s.MissionID == missionID &&
			s.PeriodStart.Equal(periodStart) && s.Status == mission.ProofPending {
			return s, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeProofRepo) GetForPeriod(_ context.Context, userID shared.UserID, periodStart time.Time) ([]*mission.ProofSubmission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*mission.ProofSubmission
	for _, s := range r.subs {
		if s.UserID == userID && s.PeriodStart.Equal(periodStart) {
			out = append(out, s)
		}
	}
	return out, nil
}

// fakeCache serves leaderboard reads from a pre-ranked slice.
type fakeCache struct {
	entries []*leaderboard.Entry
}

func (c *fakeCache) Rebuild(_ context.Context, ranking *leaderboard.Ranking) error {
	c.entries = ranking.All()
	return nil
}

func (c *fakeCache) UpdateScore(_ context.Context, _ *leaderboard.Entry) error { return nil }

func (c *fakeCache) Top(_ context.Context, n int) ([]*leaderboard.Entry, error) {
	if len(c.entries) == 0 {
		return nil, shared.ErrLeaderboardEmpty
	}
	if n > len(c.entries) {
		n = len(c.entries)
	}
	return c.entries[:n], nil
}

func (c *fakeCache) Page(_ context.Context, page, pageSize int) ([]*leaderboard.Entry, error) {
	start := (page - 1) * pageSize
	if start >= len(c.entries) {
		return nil, nil
	}
	end := start + pageSize
	if end > len(c.entries) {
		end = len(c.entries)
	}
	return c.entries[start:end], nil
}

func (c *fakeCache) GetRank(_ context.Context, userID shared.UserID) (shared.Rank, error) {
	for _, e := range c.entries {
		if e.UserID == userID {
			return e.Rank, nil
		}
	}
	return 0, shared.ErrUserNotRanked
}

func (c *fakeCache) Around(_ context.Context, userID shared.UserID, rangeSize int) ([]*leaderboard.Entry, error) {
	idx := -1
	for i, e := range c.entries {
		if e.UserID == userID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, shared.ErrUserNotRanked
	}
	start := idx - rangeSize
	if start < 0 {
		start = 0
	}
	end := idx + rangeSize + 1
	if end > len(c.entries) {
		end = len(c.entries)
	}
	return c.entries[start:end], nil
}

func (c *fakeCache) Count(_ context.Context) (int, error) {
	return len(c.entries), nil
}
