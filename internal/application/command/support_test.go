package command

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/upgrd-hub/progression-engine/internal/application/saga"
	"github.com/upgrd-hub/progression-engine/internal/domain/achievement"
	"github.com/upgrd-hub/progression-engine/internal/domain/mission"
	"github.com/upgrd-hub/progression-engine/internal/domain/progression"
	"github.com/upgrd-hub/progression-engine/internal/domain/setup"
	"github.com/upgrd-hub/progression-engine/internal/domain/shared"
	"github.com/upgrd-hub/progression-engine/pkg/keyedmutex"
	"github.com/upgrd-hub/progression-engine/pkg/logger"
)

// In-memory fakes for the repository and event bus ports.

type memProgressRepo struct {
	mu      sync.Mutex
	byID    map[shared.UserID]*progression.UserProgress
	history []progression.XPHistoryEntry
}

func newMemProgressRepo() *memProgressRepo {
	return &memProgressRepo{byID: make(map[shared.UserID]*progression.UserProgress)}
}

func (r *memProgressRepo) Create(_ context.Context, p *progression.UserProgress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[p.UserID]; ok {
		return shared.ErrAlreadyExists
	}
	r.byID[p.UserID] = p.Clone()
	return nil
}

func (r *memProgressRepo) GetByUserID(_ context.Context, userID shared.UserID) (*progression.UserProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[userID]
	if !ok {
		return nil, shared.ErrProgressNotFound
	}
	return p.Clone(), nil
}

func (r *memProgressRepo) Update(_ context.Context, p *progression.UserProgress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.byID[p.UserID]
	if !ok {
		return shared.ErrProgressNotFound
	}
	if current.Version != p.Version {
		return shared.ErrOptimisticLock
	}
	next := p.Clone()
	next.Version++
	r.byID[p.UserID] = next
	p.Version = next.Version
	return nil
}

func (r *memProgressRepo) GetAll(_ context.Context, _ progression.ListOptions) ([]*progression.UserProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*progression.UserProgress, 0, len(r.byID))
	for _, p := range r.byID {
		out = append(out, p.Clone())
	}
	return out, nil
}

func (r *memProgressRepo) Count(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID), nil
}

func (r *memProgressRepo) SaveXPChange(_ context.Context, entry progression.XPHistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, entry)
	return nil
}

func (r *memProgressRepo) GetXPHistory(_ context.Context, userID shared.UserID, _, _ time.Time) ([]progression.XPHistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []progression.XPHistoryEntry
	for _, e := range r.history {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

// flakyProgressRepo fails a configured number of Update calls and can
// break the XP journal, delegating everything else to the wrapped repo.
type flakyProgressRepo struct {
	*memProgressRepo
	updateFailures int
	updateErr      error
	saveXPErr      error
}

func (r *flakyProgressRepo) Update(ctx context.Context, p *progression.UserProgress) error {
	if r.updateFailures > 0 {
		r.updateFailures--
		return r.updateErr
	}
	return r.memProgressRepo.Update(ctx, p)
}

func (r *flakyProgressRepo) SaveXPChange(ctx context.Context, entry progression.XPHistoryEntry) error {
	if r.saveXPErr != nil {
		return r.saveXPErr
	}
	return r.memProgressRepo.SaveXPChange(ctx, entry)
}

type memCompletionRepo struct {
	mu          sync.Mutex
	completions []*mission.Completion
}

func newMemCompletionRepo() *memCompletionRepo {
	return &memCompletionRepo{}
}

func (r *memCompletionRepo) Create(_ context.Context, c *mission.Completion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.completions {
		if existing.UserID == c.UserID &&
			existing.MissionID == c.MissionID &&
			existing.PeriodStart.Equal(c.PeriodStart) {
			return shared.ErrAlreadyCompleted
		}
	}
	r.completions = append(r.completions, c)
	return nil
}

func (r *memCompletionRepo) Delete(_ context.Context, id string) error {
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

func (r *memCompletionRepo) GetForPeriod(_ context.Context, userID shared.UserID, periodStart time.Time) ([]*mission.Completion, error) {
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

func (r *memCompletionRepo) CountByUser(_ context.Context, userID shared.UserID) (int, error) {
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

func (r *memCompletionRepo) CountByUserAndPeriodType(_ context.Context, userID shared.UserID, p shared.Period) (int, error) {
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

type memProofRepo struct {
	mu          sync.Mutex
	submissions []*mission.ProofSubmission
}

func newMemProofRepo() *memProofRepo {
	return &memProofRepo{}
}

func (r *memProofRepo) Create(_ context.Context, s *mission.ProofSubmission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submissions = append(r.submissions, s)
	return nil
}

func (r *memProofRepo) Update(_ context.Context, s *mission.ProofSubmission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.submissions {
		if existing.ID == s.ID {
			r.submissions[i] = s
			return nil
		}
	}
	return shared.ErrNotFound
}

func (r *memProofRepo) GetPending(_ context.Context, userID shared.UserID, missionID shared.MissionID, periodStart time.Time) (*mission.ProofSubmission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.submissions {
		if s.UserID == userID && s.MissionID == missionID &&
			s.PeriodStart.Equal(periodStart) && s.Status == mission.ProofPending {
			return s, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memProofRepo) GetForPeriod(_ context.Context, userID shared.UserID, periodStart time.Time) ([]*mission.ProofSubmission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*mission.ProofSubmission
	for _, s := range r.submissions {
		if s.UserID == userID && s.PeriodStart.Equal(periodStart) {
			out = append(out, s)
		}
	}
	return out, nil
}

type memSetupRepo struct {
	mu   sync.Mutex
	byID map[shared.UserID]*setup.Profile
}

func newMemSetupRepo() *memSetupRepo {
	return &memSetupRepo{byID: make(map[shared.UserID]*setup.Profile)}
}

func (r *memSetupRepo) Save(_ context.Context, p *setup.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[p.UserID] = p
	return nil
}

func (r *memSetupRepo) GetByUserID(_ context.Context, userID shared.UserID) (*setup.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[userID]
	if !ok {
		return nil, shared.ErrSetupNotFound
	}
	return p, nil
}

type memEventBus struct {
	mu     sync.Mutex
	events []shared.Event
}

func (b *memEventBus) Publish(event shared.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *memEventBus) typesSeen() map[shared.EventType]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[shared.EventType]int)
	for _, e := range b.events {
		out[e.EventType()]++
	}
	return out
}

type stubVerifier struct {
	verdict *mission.Verdict
	err     error
	calls   int
}

func (v *stubVerifier) Verify(_ context.Context, _ *mission.Mission, _ string) (*mission.Verdict, error) {
	v.calls++
	if v.err != nil {
		return nil, v.err
	}
	return v.verdict, nil
}

// env bundles the wired handlers over in-memory fakes. The command
// clock is pinned to e.now so tests control which period is "current".
type env struct {
	progressRepo   *memProgressRepo
	completionRepo *memCompletionRepo
	proofRepo      *memProofRepo
	setupRepo      *memSetupRepo
	bus            *memEventBus
	verifier       *stubVerifier
	locks          *keyedmutex.KeyedMutex
	catalog        *mission.Catalog
	flow           *saga.AchievementFlow
	log            *logger.Logger
	now            time.Time

	register        *RegisterUserHandler
	login           *RecordLoginHandler
	saveSetup       *SaveSetupHandler
	completeMission *CompleteMissionHandler
	submitProof     *SubmitProofHandler
}

func newEnv() *env {
	e := &env{
		progressRepo:   newMemProgressRepo(),
		completionRepo: newMemCompletionRepo(),
		proofRepo:      newMemProofRepo(),
		setupRepo:      newMemSetupRepo(),
		bus:            &memEventBus{},
		verifier:       &stubVerifier{verdict: &mission.Verdict{Accepted: true, Note: "SIM"}},
		locks:          keyedmutex.New(),
		now:            wednesday,
	}

	e.log = logger.New(logger.Options{Output: io.Discard, Level: logger.LevelError})
	e.catalog = mission.NewCatalog()
	e.flow = saga.NewAchievementFlow(
		e.progressRepo, e.completionRepo, e.setupRepo,
		achievement.NewCatalog(), e.bus, e.log,
		saga.DefaultAchievementFlowConfig(),
	)

	e.register = NewRegisterUserHandler(e.progressRepo, e.bus, e.locks)
	e.login = NewRecordLoginHandler(e.progressRepo, e.flow, e.bus, e.locks)
	e.saveSetup = NewSaveSetupHandler(e.progressRepo, e.setupRepo, e.flow, nil, e.bus, e.locks, e.log)
	e.completeMission = NewCompleteMissionHandler(
		e.progressRepo, e.completionRepo, e.catalog, e.flow, nil, e.bus, e.locks, e.log)
	e.submitProof = NewSubmitProofHandler(
		e.progressRepo, e.completionRepo, e.proofRepo, e.catalog, e.verifier,
		e.flow, nil, e.bus, e.locks, e.log)

	e.completeMission.now = e.clock
	e.submitProof.now = e.clock

	return e
}

func (e *env) clock() time.Time {
	return e.now
}
