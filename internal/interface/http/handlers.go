package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/upgrd-hub/progression-engine/internal/application/command"
	"github.com/upgrd-hub/progression-engine/internal/application/query"
	"github.com/upgrd-hub/progression-engine/internal/application/saga"
	"github.com/upgrd-hub/progression-engine/internal/domain/shared"
	"github.com/upgrd-hub/progression-engine/internal/infrastructure/persistence/projections"
	"github.com/upgrd-hub/progression-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":        "UPGRD Progression Engine API",
		"version":     "v1",
		"description": "REST API for the UPGRD gamified progression engine",
		"endpoints": map[string]string{
			"health":       "/health",
			"progress":     "/api/v1/users/{id}/progress",
			"setup":        "/api/v1/users/{id}/setup",
			"missions":     "/api/v1/users/{id}/missions",
			"achievements": "/api/v1/users/{id}/achievements",
			"leaderboard":  "/api/v1/leaderboard",
		},
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	// Default health response
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": "v1",
	})
}

// handleReady handles the readiness probe endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// USER HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type registerUserRequest struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

type registerUserResponse struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Created     bool   `json:"created"`
}

// handleRegisterUser handles POST /api/v1/users
func (s *Server) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var req registerUserRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.RegisterUserHandler.Handle(r.Context(), command.RegisterUserCommand{
		UserID:      req.UserID,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		s.writeCommandError(w, r, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, registerUserResponse{
		UserID:      result.Progress.UserID.String(),
		DisplayName: result.Progress.DisplayName,
		Created:     result.Created,
	})
}

type recordLoginRequest struct {
	DisplayName string `json:"display_name,omitempty"`
}

type recordLoginResponse struct {
	Counted        bool              `json:"counted"`
	StreakBroken   bool              `json:"streak_broken"`
	PreviousStreak int               `json:"previous_streak,omitempty"`
	CurrentStreak  int               `json:"current_streak"`
	BestStreak     int               `json:"best_streak"`
	Achievements   []achievementInfo `json:"achievements_unlocked,omitempty"`
}

// handleRecordLogin handles POST /api/v1/users/{id}/login
func (s *Server) handleRecordLogin(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")

	var req recordLoginRequest
	if !s.decodeOptionalBody(w, r, &req) {
		return
	}

	result, err := s.deps.RecordLoginHandler.Handle(r.Context(), command.RecordLoginCommand{
		UserID:      userID,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		s.writeCommandError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, recordLoginResponse{
		Counted:        result.Counted,
		StreakBroken:   result.StreakBroken,
		PreviousStreak: result.PreviousStreak,
		CurrentStreak:  result.Progress.CurrentStreak,
		BestStreak:     result.Progress.BestStreak,
		Achievements:   achievementInfos(result.Achievements),
	})
}

// handleGetProgress handles GET /api/v1/users/{id}/progress
//
// Reads follow the cache-aside pattern: the Redis progress card is tried
// first, a miss falls through to the query handler and the fresh card is
// stored back.
func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")

	if s.deps.ProgressCards != nil {
		card, err := s.deps.ProgressCards.Get(r.Context(), shared.UserID(userID))
		if err == nil {
			writeJSONWithMeta(w, r, http.StatusOK, card, &ResponseMeta{Cached: true})
			return
		}
		if !errors.Is(err, projections.ErrCardNotCached) {
			s.logger.Warn("progress card read failed",
				logger.UserID(userID),
				logger.Err(err),
			)
		}
	}

	dto, err := s.deps.GetProgressHandler.Handle(r.Context(), query.GetProgressQuery{
		UserID:      userID,
		DisplayName: getQueryParam(r, "display_name", ""),
	})
	if err != nil {
		s.writeCommandError(w, r, err)
		return
	}

	card := progressCardFromDTO(dto)
	if s.deps.ProgressCards != nil {
		if err := s.deps.ProgressCards.Put(r.Context(), card); err != nil {
			s.logger.Warn("progress card write failed",
				logger.UserID(userID),
				logger.Err(err),
			)
		}
	}

	writeJSON(w, http.StatusOK, card)
}

// progressCardFromDTO converts the query DTO into the cacheable card.
func progressCardFromDTO(dto *query.ProgressDTO) *projections.ProgressCard {
	return &projections.ProgressCard{
		UserID:               dto.UserID,
		DisplayName:          dto.DisplayName,
		Level:                dto.Level,
		LevelTitle:           dto.LevelTitle,
		XP:                   dto.XP,
		XPToNextLevel:        dto.XPToNextLevel,
		ProgressPercent:      dto.ProgressPercent,
		TotalPoints:          dto.TotalPoints,
		SetupScore:           dto.SetupScore,
		Tier:                 dto.Tier,
		TierDisplayName:      dto.TierDisplayName,
		CurrentStreak:        dto.CurrentStreak,
		BestStreak:           dto.BestStreak,
		Rank:                 dto.Rank,
		AchievementsUnlocked: dto.AchievementsUnlocked,
		CreatedAt:            dto.CreatedAt,
		UpdatedAt:            time.Now().UTC(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SETUP HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type saveSetupRequest struct {
	DisplayName string `json:"display_name,omitempty"`
	CPU         string `json:"cpu"`
	GPU         string `json:"gpu"`
	RAM         string `json:"ram"`
	Storage     string `json:"storage"`
	Monitor     string `json:"monitor"`
	Motherboard string `json:"motherboard"`
	Cooling     string `json:"cooling"`
}

type saveSetupResponse struct {
	SetupScore   int               `json:"setup_score"`
	Breakdown    map[string]int    `json:"breakdown"`
	Tier         string            `json:"tier"`
	PreviousTier string            `json:"previous_tier"`
	TierChanged  bool              `json:"tier_changed"`
	TotalPoints  int               `json:"total_points"`
	Achievements []achievementInfo `json:"achievements_unlocked,omitempty"`
}

// handleSaveSetup handles PUT /api/v1/users/{id}/setup
func (s *Server) handleSaveSetup(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")

	var req saveSetupRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.SaveSetupHandler.Handle(r.Context(), command.SaveSetupCommand{
		UserID:      userID,
		DisplayName: req.DisplayName,
		CPU:         req.CPU,
		GPU:         req.GPU,
		RAM:         req.RAM,
		Storage:     req.Storage,
		Monitor:     req.Monitor,
		Motherboard: req.Motherboard,
		Cooling:     req.Cooling,
	})
	if err != nil {
		s.writeCommandError(w, r, err)
		return
	}

	breakdown := make(map[string]int, len(result.Score.Breakdown))
	for category, points := range result.Score.Breakdown {
		breakdown[string(category)] = points
	}

	writeJSON(w, http.StatusOK, saveSetupResponse{
		SetupScore:   result.Score.Total,
		Breakdown:    breakdown,
		Tier:         result.Score.Tier.String(),
		PreviousTier: result.PreviousTier.String(),
		TierChanged:  result.TierChanged,
		TotalPoints:  result.Progress.TotalPoints.Int(),
		Achievements: achievementInfos(result.Achievements),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// MISSION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListMissions handles GET /api/v1/users/{id}/missions
func (s *Server) handleListMissions(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")

	result, err := s.deps.ListMissionsHandler.Handle(r.Context(), query.ListMissionsQuery{
		UserID: userID,
		Period: getQueryParam(r, "period", ""),
	})
	if err != nil {
		s.writeCommandError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type completeMissionResponse struct {
	MissionID    string            `json:"mission_id"`
	XPAwarded    int               `json:"xp_awarded"`
	LevelUps     int               `json:"level_ups"`
	Level        int               `json:"level"`
	TotalPoints  int               `json:"total_points"`
	Achievements []achievementInfo `json:"achievements_unlocked,omitempty"`
}

// handleCompleteMission handles POST /api/v1/users/{id}/missions/{missionID}/complete
func (s *Server) handleCompleteMission(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	missionID := r.PathValue("missionID")

	result, err := s.deps.CompleteMissionHandler.Handle(r.Context(), command.CompleteMissionCommand{
		UserID:    userID,
		MissionID: missionID,
	})
	if err != nil {
		s.writeCommandError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, completeMissionResponse{
		MissionID:    missionID,
		XPAwarded:    result.XPAwarded.Int(),
		LevelUps:     result.LevelUps,
		Level:        result.Progress.Level.Int(),
		TotalPoints:  result.Progress.TotalPoints.Int(),
		Achievements: achievementInfos(result.Achievements),
	})
}

type submitProofRequest struct {
	Proof string `json:"proof"`
}

type submitProofResponse struct {
	Accepted     bool                     `json:"accepted"`
	VerifierNote string                   `json:"verifier_note,omitempty"`
	Completion   *completeMissionResponse `json:"completion,omitempty"`
}

// handleSubmitProof handles POST /api/v1/users/{id}/missions/{missionID}/proof
func (s *Server) handleSubmitProof(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	missionID := r.PathValue("missionID")

	var req submitProofRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.SubmitProofHandler.Handle(r.Context(), command.SubmitProofCommand{
		UserID:    userID,
		MissionID: missionID,
		Proof:     req.Proof,
	})
	if err != nil {
		s.writeCommandError(w, r, err)
		return
	}

	resp := submitProofResponse{
		Accepted:     result.Accepted,
		VerifierNote: result.VerifierNote,
	}
	if result.Completion != nil {
		resp.Completion = &completeMissionResponse{
			MissionID:    missionID,
			XPAwarded:    result.Completion.XPAwarded.Int(),
			LevelUps:     result.Completion.LevelUps,
			Level:        result.Completion.Progress.Level.Int(),
			TotalPoints:  result.Completion.Progress.TotalPoints.Int(),
			Achievements: achievementInfos(result.Completion.Achievements),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListAchievements handles GET /api/v1/users/{id}/achievements
func (s *Server) handleListAchievements(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")

	result, err := s.deps.ListAchievementsHandler.Handle(r.Context(), query.ListAchievementsQuery{
		UserID:       userID,
		OnlyUnlocked: getQueryParamBool(r, "unlocked"),
	})
	if err != nil {
		s.writeCommandError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// achievementInfo is the compact unlock representation in command responses.
type achievementInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	BonusXP int    `json:"bonus_xp"`
}

// achievementInfos flattens a saga result into response entries.
func achievementInfos(result *saga.AchievementFlowResult) []achievementInfo {
	if result == nil || !result.HasNewAchievements() {
		return nil
	}
	infos := make([]achievementInfo, 0, len(result.Unlocked))
	for _, def := range result.Unlocked {
		infos = append(infos, achievementInfo{
			ID:      def.ID.String(),
			Name:    def.Name,
			BonusXP: def.Bonus.Int(),
		})
	}
	return infos
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetLeaderboard handles GET /api/v1/leaderboard
func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	q := query.GetLeaderboardQuery{
		Page:      getQueryParamInt(r, "page", 1),
		PageSize:  getQueryParamInt(r, "page_size", 20),
		ForUserID: getQueryParam(r, "for_user", ""),
	}

	result, err := s.deps.GetLeaderboardHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeCommandError(w, r, err)
		return
	}

	meta := &ResponseMeta{
		TotalCount: result.TotalCount,
		Page:       result.Page,
		PageSize:   q.PageSize,
	}
	writeJSONWithMeta(w, r, http.StatusOK, result, meta)
}

// handleGetLeaderboardAround handles GET /api/v1/leaderboard/around/{id}
func (s *Server) handleGetLeaderboardAround(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")

	result, err := s.deps.GetLeaderboardHandler.Handle(r.Context(), query.GetLeaderboardQuery{
		PageSize:     getQueryParamInt(r, "range", 10),
		AroundUserID: userID,
		ForUserID:    userID,
	})
	if err != nil {
		s.writeCommandError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRebuildLeaderboard handles POST /api/v1/admin/leaderboard/rebuild
func (s *Server) handleRebuildLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.deps.Rebuilder == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Leaderboard rebuild not configured")
		return
	}

	start := time.Now()
	if err := s.deps.Rebuilder.Run(r.Context()); err != nil {
		s.logger.Error("leaderboard rebuild failed", logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "rebuild_failed", "Leaderboard rebuild failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "rebuilt",
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST DECODING & ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// decodeBody decodes a required JSON body, writing an error on failure.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_json", "Request body must be valid JSON")
		return false
	}
	return true
}

// decodeOptionalBody decodes a JSON body when present; an empty body is fine.
func (s *Server) decodeOptionalBody(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	defer r.Body.Close()

	err := json.NewDecoder(r.Body).Decode(dest)
	if err != nil && err != io.EOF {
		writeJSONError(w, http.StatusBadRequest, "invalid_json", "Request body must be valid JSON")
		return false
	}
	return true
}

// writeCommandError maps domain errors onto HTTP statuses.
func (s *Server) writeCommandError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusForError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			logger.String("path", r.URL.Path),
			logger.String("request_id", getRequestID(r.Context())),
			logger.Err(err),
		)
		writeJSONError(w, status, code, "An unexpected error occurred")
		return
	}

	writeJSONError(w, status, code, err.Error())
}

// statusForError resolves the HTTP status and error code for a domain error.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, shared.ErrProofVerificationUnavailable),
		errors.Is(err, shared.ErrServiceUnavailable):
		return http.StatusServiceUnavailable, "verifier_unavailable"
	case errors.Is(err, shared.ErrTimeout):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, shared.ErrVerifierInvalidResponse):
		return http.StatusBadGateway, "verifier_invalid_response"
	case errors.Is(err, shared.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, shared.ErrAlreadyExists),
		errors.Is(err, shared.ErrAlreadyProcessed),
		errors.Is(err, shared.ErrOptimisticLock),
		errors.Is(err, shared.ErrConcurrentModification):
		return http.StatusConflict, "conflict"
	case errors.Is(err, shared.ErrExpired),
		errors.Is(err, shared.ErrInvalidState):
		return http.StatusUnprocessableEntity, "invalid_state"
	case errors.Is(err, shared.ErrInvalidID),
		errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrEmptyValue),
		errors.Is(err, shared.ErrNegativeValue),
		errors.Is(err, shared.ErrInvalidFormat),
		errors.Is(err, shared.ErrValidation):
		return http.StatusBadRequest, "invalid_request"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
