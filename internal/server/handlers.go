package server

import (
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lumenreads/lumen/internal/catalog"
	"github.com/lumenreads/lumen/internal/groups"
	"github.com/lumenreads/lumen/internal/progress"
	"github.com/lumenreads/lumen/internal/rankings"
	"github.com/lumenreads/lumen/internal/users"
	"go.uber.org/zap"
)

func (h *httpHandler) handleCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"books":          catalog.Books(),
		"total_chapters": catalog.TotalChapters(),
	})
}

func (h *httpHandler) handleGetProgress(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	records, err := h.progress.ListRecords(c.Request.Context(), userID)
	if err != nil {
		h.respondServiceError(c, "progress_load_failed", err)
		return
	}
	c.JSON(http.StatusOK, progress.Aggregate(records))
}

type togglePayload struct {
	Book    string `json:"book"`
	Chapter int    `json:"chapter"`
	Action  string `json:"action"`
}

type togglesRequestPayload struct {
	Toggles []togglePayload `json:"toggles"`
}

type toggleResultPayload struct {
	Book     string `json:"book"`
	Chapter  int    `json:"chapter"`
	Action   string `json:"action"`
	Applied  bool   `json:"applied"`
	RecordID string `json:"record_id,omitempty"`
}

type togglesResponsePayload struct {
	Results           []toggleResultPayload `json:"results"`
	ChaptersReadCount int                   `json:"chapters_read_count"`
}

func (h *httpHandler) handleApplyToggles(c *gin.Context) {
	userID := c.GetString(userIDContextKey)

	var request togglesRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || len(request.Toggles) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	toggles := make([]progress.Toggle, 0, len(request.Toggles))
	for _, item := range request.Toggles {
		action, err := progress.ParseAction(item.Action)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_action"})
			return
		}
		toggle, err := progress.NewToggle(item.Book, item.Chapter, action)
		if errors.Is(err, progress.ErrUnknownBook) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown_book"})
			return
		}
		if errors.Is(err, progress.ErrChapterOutOfRange) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "chapter_out_of_range"})
			return
		}
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_toggle"})
			return
		}
		toggles = append(toggles, toggle)
	}

	result, err := h.progress.ApplyToggles(c.Request.Context(), userID, toggles)
	if err != nil {
		h.respondServiceError(c, "save_failed", err)
		return
	}

	changedBooks := make([]string, 0, len(result.Outcomes))
	seen := make(map[string]struct{}, len(result.Outcomes))
	response := togglesResponsePayload{
		Results:           make([]toggleResultPayload, 0, len(result.Outcomes)),
		ChaptersReadCount: result.ChaptersReadCount,
	}
	for _, outcome := range result.Outcomes {
		response.Results = append(response.Results, toggleResultPayload{
			Book:     outcome.Toggle.Book,
			Chapter:  outcome.Toggle.Chapter,
			Action:   string(outcome.Toggle.Action),
			Applied:  outcome.Applied,
			RecordID: outcome.RecordID,
		})
		if outcome.Applied {
			if _, ok := seen[outcome.Toggle.Book]; !ok {
				seen[outcome.Toggle.Book] = struct{}{}
				changedBooks = append(changedBooks, outcome.Toggle.Book)
			}
		}
	}

	if len(changedBooks) > 0 {
		h.realtime.Publish(RealtimeMessage{
			UserID:            userID,
			EventType:         RealtimeEventProgressChanged,
			Books:             changedBooks,
			ChaptersReadCount: result.ChaptersReadCount,
			Timestamp:         h.clock().UTC(),
		})
	}

	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleStreak(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	records, err := h.progress.ListRecords(c.Request.Context(), userID)
	if err != nil {
		h.respondServiceError(c, "streak_load_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"streak": progress.Streak(records, h.clock())})
}

func (h *httpHandler) handleLeaderboard(c *gin.Context) {
	limit := h.leaderboardLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_limit"})
			return
		}
		if parsed < limit {
			limit = parsed
		}
	}

	query := rankings.LeaderboardQuery{
		GroupID: c.Query("group"),
		Limit:   limit,
	}

	entries, err := h.rankings.Leaderboard(c.Request.Context(), query)
	if err != nil {
		// Degrade to an empty board; the failure is already logged by the
		// ranking service and clients render a no-data state.
		entries = []rankings.Entry{}
	}

	scope := query.GroupID
	if scope == "" {
		scope = "global"
	}
	c.JSON(http.StatusOK, gin.H{"scope": scope, "entries": entries})
}

type risingStarsGroupPayload struct {
	GroupID string           `json:"group_id"`
	Name    string           `json:"name"`
	Stars   []rankings.Entry `json:"stars"`
}

func (h *httpHandler) handleRisingStars(c *gin.Context) {
	metric, err := rankings.ParseMetric(c.Query("metric"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_metric"})
		return
	}

	stars, err := h.rankings.RisingStars(c.Request.Context(), rankings.RisingStarsConfig{
		Metric: metric,
		TopN:   h.risingStarsTopN,
	})
	if err != nil {
		stars = map[string][]rankings.Entry{}
	}

	names := make(map[string]string)
	if all, err := h.groups.List(c.Request.Context()); err == nil {
		for _, group := range all {
			names[group.ID] = group.Name
		}
	} else {
		h.logger.Warn("group name lookup failed", zap.Error(err))
	}

	payload := make([]risingStarsGroupPayload, 0, len(stars))
	for groupID, entries := range stars {
		payload = append(payload, risingStarsGroupPayload{
			GroupID: groupID,
			Name:    names[groupID],
			Stars:   entries,
		})
	}
	sort.Slice(payload, func(i, j int) bool {
		if payload[i].Name != payload[j].Name {
			return payload[i].Name < payload[j].Name
		}
		return payload[i].GroupID < payload[j].GroupID
	})

	c.JSON(http.StatusOK, gin.H{"metric": string(metric), "groups": payload})
}

func (h *httpHandler) handleListGroups(c *gin.Context) {
	all, err := h.groups.List(c.Request.Context())
	if err != nil {
		h.logger.Error("group list failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "groups_load_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": all})
}

type createGroupPayload struct {
	Name string `json:"name"`
}

func (h *httpHandler) handleCreateGroup(c *gin.Context) {
	userID := c.GetString(userIDContextKey)

	var request createGroupPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	group, err := h.groups.Create(c.Request.Context(), request.Name, userID)
	if errors.Is(err, groups.ErrInvalidGroupName) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "group_name_required"})
		return
	}
	if err != nil {
		h.logger.Error("group create failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "group_create_failed"})
		return
	}

	// The join code is only disclosed here, to the creator.
	c.JSON(http.StatusCreated, gin.H{"group": group, "join_code": group.JoinCode})
}

type joinGroupPayload struct {
	GroupID string `json:"group_id"`
	Code    string `json:"code"`
}

func (h *httpHandler) handleJoinGroup(c *gin.Context) {
	userID := c.GetString(userIDContextKey)

	var request joinGroupPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	group, err := h.groups.Join(c.Request.Context(), userID, request.GroupID, request.Code)
	if errors.Is(err, groups.ErrGroupNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "group_not_found"})
		return
	}
	if errors.Is(err, groups.ErrWrongJoinCode) {
		c.JSON(http.StatusForbidden, gin.H{"error": "wrong_join_code"})
		return
	}
	if err != nil {
		h.logger.Error("group join failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "group_join_failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"group": group})
}

func (h *httpHandler) handleLeaveGroup(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	if err := h.groups.Leave(c.Request.Context(), userID); err != nil {
		h.logger.Error("group leave failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "group_leave_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"left": true})
}

func (h *httpHandler) handleRenameGroup(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	groupID := c.Param("id")

	var request createGroupPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	group, err := h.groups.Rename(c.Request.Context(), groupID, userID, request.Name)
	if errors.Is(err, groups.ErrGroupNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "group_not_found"})
		return
	}
	if errors.Is(err, groups.ErrNotGroupMember) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not_group_member"})
		return
	}
	if errors.Is(err, groups.ErrInvalidGroupName) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "group_name_required"})
		return
	}
	if err != nil {
		h.logger.Error("group rename failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "group_rename_failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"group": group})
}

type profileResponsePayload struct {
	ID                string `json:"id"`
	Email             string `json:"email"`
	DisplayName       string `json:"display_name"`
	GroupID           string `json:"group_id,omitempty"`
	ChaptersReadCount int64  `json:"chapters_read_count"`
}

func profileResponse(user users.User) profileResponsePayload {
	return profileResponsePayload{
		ID:                user.ID,
		Email:             user.Email,
		DisplayName:       user.DisplayName,
		GroupID:           user.GroupID,
		ChaptersReadCount: user.ChaptersReadCount,
	}
}

func (h *httpHandler) handleGetProfile(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	user, err := h.users.GetProfile(c.Request.Context(), userID)
	if errors.Is(err, users.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user_not_found"})
		return
	}
	if err != nil {
		h.logger.Error("profile load failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "profile_load_failed"})
		return
	}
	c.JSON(http.StatusOK, profileResponse(user))
}

type updateProfilePayload struct {
	DisplayName string `json:"display_name"`
}

func (h *httpHandler) handleUpdateProfile(c *gin.Context) {
	userID := c.GetString(userIDContextKey)

	var request updateProfilePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), userID, request.DisplayName)
	if errors.Is(err, users.ErrInvalidRegistration) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "display_name_required"})
		return
	}
	if errors.Is(err, users.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user_not_found"})
		return
	}
	if err != nil {
		h.logger.Error("profile update failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "profile_update_failed"})
		return
	}
	c.JSON(http.StatusOK, profileResponse(user))
}
