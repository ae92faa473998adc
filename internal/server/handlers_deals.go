package server

import (
	"net/http"

	"github.com/signalhaus/signalhaus/internal/deal"
	"github.com/signalhaus/signalhaus/internal/model"
)

func (h *handlers) handleCreateDeal(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	var req model.CreateDealRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "invalid request body: "+err.Error())
		return
	}
	d, err := h.deals.CreateDeal(r.Context(), req.Name, req.CompanyID, req.Value, req.CloseDate)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if req.Facts != (model.DealFacts{}) {
		if d, err = h.deals.UpdateFacts(r.Context(), d.ID, req.Facts); err != nil {
			writeServiceError(w, r, err)
			return
		}
	}
	writeJSON(w, r, http.StatusCreated, d, nil)
}

func (h *handlers) handleDealAnalysis(w http.ResponseWriter, r *http.Request) {
	analysis, err := h.deals.Analysis(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, analysis, nil)
}

func (h *handlers) handleAddPersona(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	var req model.AddPersonaRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "invalid request body: "+err.Error())
		return
	}
	p, err := h.deals.AddPersona(r.Context(), r.PathValue("id"), model.BuyerPersona{
		ContactID:          req.ContactID,
		Name:               req.Name,
		Type:               req.Type,
		Engagement:         req.Engagement,
		InfluenceScore:     req.InfluenceScore,
		CanVeto:            req.CanVeto,
		CanApprove:         req.CanApprove,
		Motivations:        req.Motivations,
		Concerns:           req.Concerns,
		AvgResponseTimeHrs: req.AvgResponseTimeHrs,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, p, nil)
}

func (h *handlers) handleEngagement(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	var req model.EngagementEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "invalid request body: "+err.Error())
		return
	}
	p, err := h.deals.RecordEngagement(r.Context(), r.PathValue("pid"), deal.EngagementEvent{
		Sentiment:  deal.Sentiment(req.Kind),
		Note:       req.Notes,
		OccurredAt: req.OccurredAt,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, p, nil)
}

func (h *handlers) handleBANT(w http.ResponseWriter, r *http.Request) {
	bant, err := h.deals.ScoreBANT(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, bant, nil)
}

func (h *handlers) handleSPIN(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	var req model.SPINRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "invalid request body: "+err.Error())
		return
	}
	spin, err := h.deals.AnalyzeSPIN(r.Context(), r.PathValue("id"),
		spinInput(req.Situation), spinInput(req.Problem),
		spinInput(req.Implication), spinInput(req.NeedPayoff))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, spin, nil)
}

func spinInput(e model.SPINEntry) deal.SPINInput {
	return deal.SPINInput{Content: e.Content, Confidence: e.Confidence, Sources: e.Sources}
}

func (h *handlers) handleParanoid(w http.ResponseWriter, r *http.Request) {
	analysis, err := h.deals.RunParanoid(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, analysis, nil)
}

func (h *handlers) handleCommitGate(w http.ResponseWriter, r *http.Request) {
	gate, err := h.deals.CheckGate(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, gate, nil)
}

func (h *handlers) handleStage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	var req model.StageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "invalid request body: "+err.Error())
		return
	}
	d, err := h.deals.SetStage(r.Context(), r.PathValue("id"), req.Stage)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, d, nil)
}

func (h *handlers) handleAddRisk(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	var req model.AddRiskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "invalid request body: "+err.Error())
		return
	}
	risk, err := h.deals.AddRisk(r.Context(), r.PathValue("id"), model.DealRisk{
		Title:                 req.Title,
		Description:           req.Description,
		Category:              req.Category,
		Severity:              req.Severity,
		Probability:           req.Probability,
		Impact:                req.Impact,
		Source:                model.RiskSourceManual,
		CounterEvidenceNeeded: req.CounterEvidenceNeeded,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, risk, nil)
}

func (h *handlers) handleAddMitigation(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	var req model.AddMitigationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "invalid request body: "+err.Error())
		return
	}
	risk, err := h.deals.AddMitigation(r.Context(), r.PathValue("id"), r.PathValue("rid"),
		model.MitigationAction{
			Description: req.Description,
			DueDate:     req.DueDate,
			Owner:       req.Owner,
			Status:      "open",
		}, req.MarkStatus)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, risk, nil)
}
