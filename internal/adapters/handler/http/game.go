package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/KoDakness/404syndicate-sub000/internal/core/domain"
	"github.com/KoDakness/404syndicate-sub000/internal/core/services"
)

type statusResponse struct {
	Status string `json:"status"`
}

var okResponse = statusResponse{Status: "ok"}

func (s *Server) handlePlayer(w http.ResponseWriter, r *http.Request) {
	snap, err := sessionFrom(r.Context()).Snapshot(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type contractsResponse struct {
	Contracts  []services.ContractView `json:"contracts"`
	ActiveJobs []string                `json:"active_jobs"`
}

func (s *Server) handleContracts(w http.ResponseWriter, r *http.Request) {
	snap, err := sessionFrom(r.Context()).Snapshot(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contractsResponse{Contracts: snap.Contracts, ActiveJobs: snap.ActiveJobs})
}

type acceptRequest struct {
	Forced bool `json:"forced"`
}

func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	var req acceptRequest
	if err := decodeBody(r, &req); err != nil {
		writeDecodeError(w)
		return
	}
	job, err := sessionFrom(r.Context()).AcceptJob(r.Context(), chi.URLParam(r, "id"), req.Forced)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type refreshResponse struct {
	Rotated bool `json:"rotated"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	rotated, err := sessionFrom(r.Context()).RefreshContracts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, refreshResponse{Rotated: rotated})
}

func (s *Server) handleManualRefresh(w http.ResponseWriter, r *http.Request) {
	if err := sessionFrom(r.Context()).ManualRefreshContracts(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, refreshResponse{Rotated: true})
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	if err := sessionFrom(r.Context()).PurchaseEquipment(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse)
}

type createLoadoutRequest struct {
	BaseID        string `json:"base_id"`
	MotherboardID string `json:"motherboard_id"`
}

func (s *Server) handleCreateLoadout(w http.ResponseWriter, r *http.Request) {
	var req createLoadoutRequest
	if err := decodeBody(r, &req); err != nil {
		writeDecodeError(w)
		return
	}
	loadout, err := sessionFrom(r.Context()).CreateLoadout(r.Context(), req.BaseID, req.MotherboardID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, loadout)
}

func (s *Server) handleEquipLoadout(w http.ResponseWriter, r *http.Request) {
	if err := sessionFrom(r.Context()).EquipLoadout(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse)
}

type installRequest struct {
	ComponentID string `json:"component_id"`
}

func (s *Server) handleInstall(w http.ResponseWriter, r *http.Request) {
	var req installRequest
	if err := decodeBody(r, &req); err != nil {
		writeDecodeError(w)
		return
	}
	err := sessionFrom(r.Context()).InstallComponent(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "slot"), req.ComponentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse)
}

func (s *Server) handleUninstall(w http.ResponseWriter, r *http.Request) {
	if err := sessionFrom(r.Context()).UninstallComponent(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "slot")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse)
}

func (s *Server) handleDeleteLoadout(w http.ResponseWriter, r *http.Request) {
	if err := sessionFrom(r.Context()).DeleteLoadout(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse)
}

func (s *Server) handleUpgradeSkill(w http.ResponseWriter, r *http.Request) {
	if err := sessionFrom(r.Context()).UpgradeSkill(r.Context(), chi.URLParam(r, "skill")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse)
}

type eventRewardRequest struct {
	Torcoins int `json:"torcoins"`
}

func (s *Server) handleEventReward(w http.ResponseWriter, r *http.Request) {
	var req eventRewardRequest
	if err := decodeBody(r, &req); err != nil {
		writeDecodeError(w)
		return
	}
	if err := sessionFrom(r.Context()).ApplyEventReward(r.Context(), req.Torcoins); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse)
}

func (s *Server) handleCompleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := sessionFrom(r.Context()).CompleteEvent(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse)
}

func (s *Server) handleRecentChat(w http.ResponseWriter, r *http.Request) {
	if s.chat == nil {
		writeError(w, r, services.ErrChatDisabled)
		return
	}
	msgs, err := s.chat.Recent(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if msgs == nil {
		msgs = []*domain.ChatMessage{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

type chatRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleSendChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(r, &req); err != nil {
		writeDecodeError(w)
		return
	}
	msg, err := sessionFrom(r.Context()).SendChat(r.Context(), req.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	n := queryInt(r, "limit", feedBacklog, services.FeedCapacity)
	writeJSON(w, http.StatusOK, sessionFrom(r.Context()).Feed(n))
}

type visibilityRequest struct {
	Visible bool `json:"visible"`
}

func (s *Server) handleVisibility(w http.ResponseWriter, r *http.Request) {
	var req visibilityRequest
	if err := decodeBody(r, &req); err != nil {
		writeDecodeError(w)
		return
	}
	if err := sessionFrom(r.Context()).SetVisibility(r.Context(), req.Visible); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse)
}

type tutorialStepRequest struct {
	Step int `json:"step"`
}

func (s *Server) handleTutorialStep(w http.ResponseWriter, r *http.Request) {
	var req tutorialStepRequest
	if err := decodeBody(r, &req); err != nil {
		writeDecodeError(w)
		return
	}
	if err := sessionFrom(r.Context()).AdvanceTutorial(r.Context(), req.Step); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse)
}

func (s *Server) handleTutorialComplete(w http.ResponseWriter, r *http.Request) {
	if err := sessionFrom(r.Context()).CompleteTutorial(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse)
}

type featureRequest struct {
	Key string `json:"key"`
}

func (s *Server) handleFeatureSeen(w http.ResponseWriter, r *http.Request) {
	var req featureRequest
	if err := decodeBody(r, &req); err != nil {
		writeDecodeError(w)
		return
	}
	if err := sessionFrom(r.Context()).MarkFeatureSeen(r.Context(), req.Key); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse)
}

type multiplierRequest struct {
	Multiplier int `json:"multiplier"`
}

func (s *Server) handleTimeMultiplier(w http.ResponseWriter, r *http.Request) {
	var req multiplierRequest
	if err := decodeBody(r, &req); err != nil {
		writeDecodeError(w)
		return
	}
	if err := sessionFrom(r.Context()).SetTimeMultiplier(r.Context(), req.Multiplier); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse)
}
