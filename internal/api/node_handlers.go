package api

import (
	"net/http"
	"strings"
	"time"

	"jetsflare/internal/database"
	"jetsflare/internal/events"
	"jetsflare/internal/metrics"
	"jetsflare/internal/models"
)

func (s *HTTPServer) handleNodeRegister(w http.ResponseWriter, r *http.Request) {
	var p database.RegisterNodeParams
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(p.ServerIP) == "" {
		writeError(w, http.StatusBadRequest, "server_ip is required")
		return
	}

	nodeID, err := s.store.UpsertNode(r.Context(), p)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if s.eventBus != nil {
		_ = s.eventBus.PublishJSON(events.EventNodeRegistered, events.NodeRegisteredPayload{
			NodeID:   nodeID,
			NodeName: p.NodeName,
			ServerIP: p.ServerIP,
		})
	}

	s.logger.Info().Str("node_id", nodeID).Str("server_ip", p.ServerIP).Msg("node registered")
	writeJSON(w, http.StatusOK, map[string]string{"id": nodeID, "status": "registered"})
}

func (s *HTTPServer) handleNodeHeartbeat(w http.ResponseWriter, r *http.Request) {
	nodeID := r.PathValue("id")
	if err := s.store.Heartbeat(r.Context(), nodeID); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleNodeClients returns the provisioning list: every client the node
// must accept right now. The node replaces its local client set with this
// list on each poll.
func (s *HTTPServer) handleNodeClients(w http.ResponseWriter, r *http.Request) {
	nodeID := r.PathValue("id")
	if _, err := s.store.GetNode(r.Context(), nodeID); err != nil {
		writeStoreError(w, err)
		return
	}

	clients, err := s.store.ActiveClients(r.Context(), time.Now())
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"clients": clients})
}

func (s *HTTPServer) handleNodeTraffic(w http.ResponseWriter, r *http.Request) {
	nodeID := r.PathValue("id")
	if _, err := s.store.GetNode(r.Context(), nodeID); err != nil {
		writeStoreError(w, err)
		return
	}

	var report models.TrafficReport
	if err := decodeJSON(r, &report); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	recorded, err := s.store.RecordTraffic(r.Context(), nodeID, report)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	var uplink, downlink int64
	for _, entry := range report {
		uplink += entry.Uplink
		downlink += entry.Downlink
	}
	metrics.AddTraffic(uplink, downlink)

	writeJSON(w, http.StatusOK, map[string]any{"recorded": recorded})
}
