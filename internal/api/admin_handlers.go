package api

import (
	"net/http"
	"strconv"
	"time"

	"jetsflare/internal/database"
	"jetsflare/internal/models"
)

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

func (s *HTTPServer) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Nickname     string `json:"nickname"`
		ReferralCode string `json:"referral_code"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	user, err := s.accounts.Register(r.Context(), database.CreateUserParams{
		Nickname:         body.Nickname,
		ReferralCodeUsed: body.ReferralCode,
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *HTTPServer) handleListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.UserFilter{
		Tier:   q.Get("tier"),
		Status: q.Get("status"),
		Search: q.Get("search"),
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	users, err := s.store.ListUsers(r.Context(), filter)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	total, err := s.store.CountUsers(r.Context(), filter.Tier, filter.Status)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"users": users, "total": total})
}

// handleGetUser returns the full admin detail: the user row plus derived
// today-traffic, referral count and current access links.
func (s *HTTPServer) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	profile, err := s.accounts.Profile(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	links, err := s.accounts.AccessLinks(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":                profile.User,
		"days_left":           profile.DaysLeft,
		"today_traffic_bytes": profile.TodayBytes,
		"daily_limit_mb":      profile.DailyLimitMB,
		"referral_count":      profile.ReferralCount,
		"links":               links,
	})
}

func (s *HTTPServer) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var fields map[string]any
	if err := decodeJSON(r, &fields); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(fields) == 0 {
		writeError(w, http.StatusBadRequest, "no fields to update")
		return
	}

	// Tier changes always go through SetTier so limits follow the tier,
	// even when the body carries other fields alongside.
	if tier, found := fields["tier"]; found {
		tierStr, _ := tier.(string)
		if tierStr != models.TierFree && tierStr != models.TierVIP {
			writeError(w, http.StatusBadRequest, "invalid tier")
			return
		}
		if err := s.store.SetTier(r.Context(), id, tierStr); err != nil {
			writeStoreError(w, err)
			return
		}
		delete(fields, "tier")
	}
	if len(fields) > 0 {
		if err := s.store.UpdateUserFields(r.Context(), id, fields); err != nil {
			writeStoreError(w, err)
			return
		}
	}

	user, err := s.store.GetUserByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *HTTPServer) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	if err := s.store.DeleteUser(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *HTTPServer) handleExtendUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var body struct {
		Days int64 `json:"days"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Days <= 0 {
		writeError(w, http.StatusBadRequest, "days must be positive")
		return
	}

	if err := s.store.ExtendSubscription(r.Context(), id, body.Days); err != nil {
		writeStoreError(w, err)
		return
	}

	user, err := s.store.GetUserByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *HTTPServer) handleUserLinks(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	links, err := s.accounts.AccessLinks(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"links": links})
}

func (s *HTTPServer) handleListNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.store.ListNodes(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"nodes": nodes})
}

func (s *HTTPServer) handleDeleteNode(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteNode(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *HTTPServer) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.AllSettings(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *HTTPServer) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "no settings to update")
		return
	}

	for key := range body {
		if _, known := models.DefaultSettings[key]; !known {
			writeError(w, http.StatusBadRequest, "unknown setting: "+key)
			return
		}
	}
	for key, value := range body {
		if err := s.store.SetSetting(r.Context(), key, value); err != nil {
			writeStoreError(w, err)
			return
		}
	}

	settings, err := s.store.AllSettings(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *HTTPServer) handleTopReferrers(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	stats, err := s.store.TopReferrers(r.Context(), limit)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"referrers": stats})
}

func (s *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.DashboardStats(r.Context(), time.Now())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *HTTPServer) handleBackup(w http.ResponseWriter, r *http.Request) {
	dir := s.cfg.Database.Backup.StoragePath
	path, err := s.backups.Backup(r.Context(), dir)
	if err != nil {
		s.logger.Error().Err(err).Msg("backup failed")
		writeError(w, http.StatusInternalServerError, "backup failed")
		return
	}

	pruned := 0
	if days := s.cfg.Database.Backup.RetentionDays; days > 0 {
		if pruned, err = s.backups.PruneBackups(dir, days); err != nil {
			s.logger.Warn().Err(err).Msg("backup prune failed")
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"path": path, "pruned": pruned})
}
