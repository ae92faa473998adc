package deal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/signalhaus/signalhaus/internal/model"
)

// ErrNotFound is returned by Store implementations when a deal, persona, or
// risk does not exist. The service maps it to QualificationError.
var ErrNotFound = errors.New("deal: not found")

// Store is the persistence surface the deal service needs. The graph store
// implements it; tests use an in-memory fake.
type Store interface {
	CreateDeal(ctx context.Context, d model.DealIntent) error
	GetDeal(ctx context.Context, id string) (model.DealIntent, error)
	UpdateDeal(ctx context.Context, d model.DealIntent) error
	ListPersonas(ctx context.Context, dealID string) ([]model.BuyerPersona, error)
	GetPersona(ctx context.Context, id string) (model.BuyerPersona, error)
	UpsertPersona(ctx context.Context, p model.BuyerPersona) error
	ListRisks(ctx context.Context, dealID string) ([]model.DealRisk, error)
	UpsertRisk(ctx context.Context, r model.DealRisk) error
}

// Service orchestrates deal qualification over the store.
type Service struct {
	store Store
	log   *slog.Logger
	now   func() time.Time
}

func NewService(store Store, log *slog.Logger) *Service {
	return &Service{store: store, log: log, now: time.Now}
}

// WithClock overrides the service clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateDeal registers a new deal at stage discovery.
func (s *Service) CreateDeal(ctx context.Context, name, companyID string, value float64, closeDate *time.Time) (model.DealIntent, error) {
	if name == "" {
		return model.DealIntent{}, model.NewValidationError("deal", "deal_name", "required")
	}
	now := s.now()
	d := model.DealIntent{
		ID:        "deal:" + uuid.NewString(),
		Name:      name,
		CompanyID: companyID,
		Value:     value,
		Stage:     model.StageDiscovery,
		CloseDate: closeDate,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateDeal(ctx, d); err != nil {
		return model.DealIntent{}, fmt.Errorf("deal: create: %w", err)
	}
	s.log.Info("deal created", "deal_id", d.ID, "deal_name", name)
	return d, nil
}

// GetDeal loads a deal or reports it unknown.
func (s *Service) GetDeal(ctx context.Context, id string) (model.DealIntent, error) {
	d, err := s.store.GetDeal(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return model.DealIntent{}, &model.QualificationError{Kind: "deal", ID: id}
	}
	if err != nil {
		return model.DealIntent{}, fmt.Errorf("deal: get: %w", err)
	}
	return d, nil
}

// UpdateFacts replaces the deal's asserted facts.
func (s *Service) UpdateFacts(ctx context.Context, id string, facts model.DealFacts) (model.DealIntent, error) {
	d, err := s.GetDeal(ctx, id)
	if err != nil {
		return model.DealIntent{}, err
	}
	d.Facts = facts
	d.UpdatedAt = s.now()
	if err := s.store.UpdateDeal(ctx, d); err != nil {
		return model.DealIntent{}, fmt.Errorf("deal: update facts: %w", err)
	}
	return d, nil
}

// AddPersona attaches a stakeholder to a deal. A deal holds at most one
// economic buyer and at most one champion.
func (s *Service) AddPersona(ctx context.Context, dealID string, p model.BuyerPersona) (model.BuyerPersona, error) {
	if !p.Type.Valid() {
		return model.BuyerPersona{}, model.NewValidationError("deal", "persona_type", "unknown persona type "+string(p.Type))
	}
	if p.Name == "" {
		return model.BuyerPersona{}, model.NewValidationError("deal", "name", "required")
	}
	if _, err := s.GetDeal(ctx, dealID); err != nil {
		return model.BuyerPersona{}, err
	}

	if p.Type == model.PersonaEconomicBuyer || p.Type == model.PersonaChampion {
		existing, err := s.store.ListPersonas(ctx, dealID)
		if err != nil {
			return model.BuyerPersona{}, fmt.Errorf("deal: list personas: %w", err)
		}
		if findOne(existing, p.Type) != nil {
			return model.BuyerPersona{}, model.NewValidationError("deal", "persona_type",
				"deal already has a "+string(p.Type))
		}
	}

	now := s.now()
	p.ID = uuid.NewString()
	p.DealID = dealID
	if p.Engagement == "" {
		p.Engagement = model.EngagementUnknown
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	if err := s.store.UpsertPersona(ctx, p); err != nil {
		return model.BuyerPersona{}, fmt.Errorf("deal: add persona: %w", err)
	}
	return p, nil
}

// RecordEngagement applies an engagement event to a persona.
func (s *Service) RecordEngagement(ctx context.Context, personaID string, ev EngagementEvent) (model.BuyerPersona, error) {
	p, err := s.store.GetPersona(ctx, personaID)
	if errors.Is(err, ErrNotFound) {
		return model.BuyerPersona{}, &model.QualificationError{Kind: "persona", ID: personaID}
	}
	if err != nil {
		return model.BuyerPersona{}, fmt.Errorf("deal: get persona: %w", err)
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = s.now()
	}
	p = ApplyEngagement(p, ev)
	if err := s.store.UpsertPersona(ctx, p); err != nil {
		return model.BuyerPersona{}, fmt.Errorf("deal: record engagement: %w", err)
	}
	return p, nil
}

// SetEngagementLevel force-sets a persona's level, used when a stakeholder
// turns blocking or is unblocked outside of recorded events.
func (s *Service) SetEngagementLevel(ctx context.Context, personaID string, level model.EngagementLevel) (model.BuyerPersona, error) {
	p, err := s.store.GetPersona(ctx, personaID)
	if errors.Is(err, ErrNotFound) {
		return model.BuyerPersona{}, &model.QualificationError{Kind: "persona", ID: personaID}
	}
	if err != nil {
		return model.BuyerPersona{}, fmt.Errorf("deal: get persona: %w", err)
	}
	p.Engagement = level
	p.UpdatedAt = s.now()
	if err := s.store.UpsertPersona(ctx, p); err != nil {
		return model.BuyerPersona{}, fmt.Errorf("deal: set engagement: %w", err)
	}
	return p, nil
}

// CoverageReport runs coverage analysis over the deal's personas.
func (s *Service) CoverageReport(ctx context.Context, dealID string) (CoverageReport, error) {
	if _, err := s.GetDeal(ctx, dealID); err != nil {
		return CoverageReport{}, err
	}
	personas, err := s.store.ListPersonas(ctx, dealID)
	if err != nil {
		return CoverageReport{}, fmt.Errorf("deal: list personas: %w", err)
	}
	return Coverage(personas), nil
}

// ScoreBANT evaluates the rubric and persists the result on the deal.
func (s *Service) ScoreBANT(ctx context.Context, dealID string) (model.BANT, error) {
	d, err := s.GetDeal(ctx, dealID)
	if err != nil {
		return model.BANT{}, err
	}
	personas, err := s.store.ListPersonas(ctx, dealID)
	if err != nil {
		return model.BANT{}, fmt.Errorf("deal: list personas: %w", err)
	}

	b := ScoreBANT(d.Facts, personas, s.now())
	d.BANT = &b
	d.UpdatedAt = b.ScoredAt
	if err := s.refreshCommitReady(ctx, &d); err != nil {
		return model.BANT{}, err
	}
	if err := s.store.UpdateDeal(ctx, d); err != nil {
		return model.BANT{}, fmt.Errorf("deal: persist bant: %w", err)
	}
	s.log.Info("bant scored", "deal_id", dealID, "total", b.Total)
	return b, nil
}

// AnalyzeSPIN stores the four-quadrant account on the deal.
func (s *Service) AnalyzeSPIN(ctx context.Context, dealID string, situation, problem, implication, needPayoff SPINInput) (model.SPIN, error) {
	d, err := s.GetDeal(ctx, dealID)
	if err != nil {
		return model.SPIN{}, err
	}
	spin := AnalyzeSPIN(situation, problem, implication, needPayoff, s.now())
	d.SPIN = &spin
	d.UpdatedAt = spin.AnalyzedAt
	if err := s.refreshCommitReady(ctx, &d); err != nil {
		return model.SPIN{}, err
	}
	if err := s.store.UpdateDeal(ctx, d); err != nil {
		return model.SPIN{}, fmt.Errorf("deal: persist spin: %w", err)
	}
	return spin, nil
}

// refreshCommitReady re-evaluates the commit gate after a qualification input
// changed, so the persisted flag never outlives the evidence behind it.
func (s *Service) refreshCommitReady(ctx context.Context, d *model.DealIntent) error {
	personas, err := s.store.ListPersonas(ctx, d.ID)
	if err != nil {
		return fmt.Errorf("deal: list personas: %w", err)
	}
	risks, err := s.store.ListRisks(ctx, d.ID)
	if err != nil {
		return fmt.Errorf("deal: list risks: %w", err)
	}
	d.CommitReady = CheckCommitGate(*d, personas, risks).Passed
	return nil
}

// RunParanoid executes the adversarial review, persists produced risks into
// the register, and stamps the verdict onto the deal.
func (s *Service) RunParanoid(ctx context.Context, dealID string) (ParanoidAnalysis, error) {
	d, err := s.GetDeal(ctx, dealID)
	if err != nil {
		return ParanoidAnalysis{}, err
	}
	personas, err := s.store.ListPersonas(ctx, dealID)
	if err != nil {
		return ParanoidAnalysis{}, fmt.Errorf("deal: list personas: %w", err)
	}
	existing, err := s.store.ListRisks(ctx, dealID)
	if err != nil {
		return ParanoidAnalysis{}, fmt.Errorf("deal: list risks: %w", err)
	}

	a := RunParanoid(d, personas, existing, s.now())

	known := make(map[string]bool, len(existing))
	for _, r := range existing {
		known[r.ID] = true
	}
	for _, r := range append(append([]model.DealRisk{}, a.CriticalRisks...), a.SignificantRisks...) {
		if known[r.ID] {
			continue
		}
		if err := s.store.UpsertRisk(ctx, r); err != nil {
			return ParanoidAnalysis{}, fmt.Errorf("deal: persist risk: %w", err)
		}
	}

	reviewed := a.AnalyzedAt
	d.ParanoidVerdict = a.Verdict
	d.FailureProbability = a.FailureProbability
	d.TotalRiskScore = a.TotalRiskScore
	d.ParanoidReviewedAt = &reviewed
	d.CommitReady = s.gatePasses(d, personas, a)
	d.UpdatedAt = reviewed
	if err := s.store.UpdateDeal(ctx, d); err != nil {
		return ParanoidAnalysis{}, fmt.Errorf("deal: persist verdict: %w", err)
	}

	s.log.Info("paranoid analysis complete",
		"deal_id", dealID,
		"verdict", string(a.Verdict),
		"failure_probability", a.FailureProbability,
		"critical_risks", len(a.CriticalRisks),
	)
	return a, nil
}

func (s *Service) gatePasses(d model.DealIntent, personas []model.BuyerPersona, a ParanoidAnalysis) bool {
	risks := append(append([]model.DealRisk{}, a.CriticalRisks...), a.SignificantRisks...)
	return CheckCommitGate(d, personas, risks).Passed
}

// CheckGate evaluates the commit gate without side effects.
func (s *Service) CheckGate(ctx context.Context, dealID string) (GateResult, error) {
	d, err := s.GetDeal(ctx, dealID)
	if err != nil {
		return GateResult{}, err
	}
	personas, err := s.store.ListPersonas(ctx, dealID)
	if err != nil {
		return GateResult{}, fmt.Errorf("deal: list personas: %w", err)
	}
	risks, err := s.store.ListRisks(ctx, dealID)
	if err != nil {
		return GateResult{}, fmt.Errorf("deal: list risks: %w", err)
	}
	return CheckCommitGate(d, personas, risks), nil
}

// SetStage advances the deal. Moving to commit is policy-gated: the commit
// gate must pass at the moment of the move.
func (s *Service) SetStage(ctx context.Context, dealID string, stage model.DealStage) (model.DealIntent, error) {
	if !stage.Valid() {
		return model.DealIntent{}, model.NewValidationError("deal", "stage", "unknown stage "+string(stage))
	}
	d, err := s.GetDeal(ctx, dealID)
	if err != nil {
		return model.DealIntent{}, err
	}

	if stage == model.StageCommit {
		gate, err := s.CheckGate(ctx, dealID)
		if err != nil {
			return model.DealIntent{}, err
		}
		if !gate.Passed {
			blocking := make([]string, len(gate.Blocking))
			for i, item := range gate.Blocking {
				blocking[i] = item.Message
			}
			return model.DealIntent{}, &model.PolicyError{DealID: dealID, Blocking: blocking}
		}
		d.CommitReady = true
	}

	d.Stage = stage
	d.UpdatedAt = s.now()
	if err := s.store.UpdateDeal(ctx, d); err != nil {
		return model.DealIntent{}, fmt.Errorf("deal: set stage: %w", err)
	}
	return d, nil
}

// AddRisk appends a human-authored risk to the register.
func (s *Service) AddRisk(ctx context.Context, dealID string, r model.DealRisk) (model.DealRisk, error) {
	if !r.Category.Valid() {
		return model.DealRisk{}, model.NewValidationError("deal", "category", "unknown risk category "+string(r.Category))
	}
	if _, err := s.GetDeal(ctx, dealID); err != nil {
		return model.DealRisk{}, err
	}
	now := s.now()
	r.ID = uuid.NewString()
	r.DealID = dealID
	r.Source = model.RiskSourceManual
	if r.Status == "" {
		r.Status = model.RiskOpen
	}
	r.CreatedAt = now
	r.UpdatedAt = now
	if err := s.store.UpsertRisk(ctx, r); err != nil {
		return model.DealRisk{}, fmt.Errorf("deal: add risk: %w", err)
	}
	return r, nil
}

// AddMitigation appends a mitigation action and optionally moves the risk's
// status along its lifecycle.
func (s *Service) AddMitigation(ctx context.Context, dealID, riskID string, action model.MitigationAction, newStatus model.RiskStatus) (model.DealRisk, error) {
	risks, err := s.store.ListRisks(ctx, dealID)
	if err != nil {
		return model.DealRisk{}, fmt.Errorf("deal: list risks: %w", err)
	}
	for _, r := range risks {
		if r.ID != riskID {
			continue
		}
		r.MitigationActions = append(r.MitigationActions, action)
		if newStatus != "" {
			r.Status = newStatus
		}
		r.UpdatedAt = s.now()
		if err := s.store.UpsertRisk(ctx, r); err != nil {
			return model.DealRisk{}, fmt.Errorf("deal: update risk: %w", err)
		}
		return r, nil
	}
	return model.DealRisk{}, &model.QualificationError{Kind: "risk", ID: riskID}
}

// CompleteAnalysis bundles everything known about a deal for the analysis
// endpoint.
type CompleteAnalysis struct {
	Deal     model.DealIntent     `json:"deal"`
	Personas []model.BuyerPersona `json:"personas"`
	Coverage CoverageReport       `json:"coverage"`
	Risks    []model.DealRisk     `json:"risks"`
	Gate     GateResult           `json:"commit_gate"`
}

// Analysis assembles the complete qualification picture for one deal.
func (s *Service) Analysis(ctx context.Context, dealID string) (CompleteAnalysis, error) {
	d, err := s.GetDeal(ctx, dealID)
	if err != nil {
		return CompleteAnalysis{}, err
	}
	personas, err := s.store.ListPersonas(ctx, dealID)
	if err != nil {
		return CompleteAnalysis{}, fmt.Errorf("deal: list personas: %w", err)
	}
	risks, err := s.store.ListRisks(ctx, dealID)
	if err != nil {
		return CompleteAnalysis{}, fmt.Errorf("deal: list risks: %w", err)
	}
	return CompleteAnalysis{
		Deal:     d,
		Personas: personas,
		Coverage: Coverage(personas),
		Risks:    risks,
		Gate:     CheckCommitGate(d, personas, risks),
	}, nil
}
