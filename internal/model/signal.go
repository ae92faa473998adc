package model

import (
	"fmt"
	"time"
)

// Priority is the tier a signal type belongs to. It drives base scoring
// and default historical accuracy.
type Priority string

const (
	PriorityHot          Priority = "hot"
	PriorityStrategic    Priority = "strategic"
	PriorityMarket       Priority = "market"
	PriorityRelationship Priority = "relationship"
)

// SignalType is the closed 24-member enum of detectable market signals.
type SignalType string

// Hot signals: direct surplus-buying opportunities.
const (
	SignalInventorySurplus       SignalType = "inventory_surplus"
	SignalEarningsMiss           SignalType = "earnings_miss"
	SignalProductDiscontinuation SignalType = "product_discontinuation"
	SignalPlantClosure           SignalType = "plant_closure"
	SignalFiscalYearEnd          SignalType = "fiscal_year_end"
	SignalOverstockClearance     SignalType = "overstock_clearance"
)

// Strategic signals: company-level changes that open doors.
const (
	SignalLeadershipChange   SignalType = "leadership_change"
	SignalRestructuring      SignalType = "restructuring"
	SignalMergerAcquisition  SignalType = "merger_acquisition"
	SignalMarketExit         SignalType = "market_exit"
	SignalStrategyShift      SignalType = "strategy_shift"
	SignalCostCuttingProgram SignalType = "cost_cutting_program"
)

// Market signals: category and sector dynamics.
const (
	SignalCategoryOversupply SignalType = "category_oversupply"
	SignalDemandDrop         SignalType = "demand_drop"
	SignalPricePressure      SignalType = "price_pressure"
	SignalCompetitorDistress SignalType = "competitor_distress"
	SignalRegulationChange   SignalType = "regulation_change"
	SignalSupplyChainShift   SignalType = "supply_chain_shift"
)

// Relationship signals: openings to build or deepen contact.
const (
	SignalNewProcurementLead      SignalType = "new_procurement_lead"
	SignalPartnershipAnnouncement SignalType = "partnership_announcement"
	SignalTradeShowPresence       SignalType = "trade_show_presence"
	SignalExpansion               SignalType = "expansion"
	SignalSustainabilityPush      SignalType = "sustainability_initiative"
	SignalDigitalTransformation   SignalType = "digital_transformation"
)

// signalMeta binds each signal type to its priority tier and urgency window.
// Keywords and rationale live in the detect package rule table.
type signalMeta struct {
	Priority    Priority
	UrgencyDays int
}

var signalTypes = map[SignalType]signalMeta{
	SignalInventorySurplus:        {PriorityHot, 14},
	SignalEarningsMiss:            {PriorityHot, 21},
	SignalProductDiscontinuation:  {PriorityHot, 30},
	SignalPlantClosure:            {PriorityHot, 30},
	SignalFiscalYearEnd:           {PriorityHot, 21},
	SignalOverstockClearance:      {PriorityHot, 14},
	SignalLeadershipChange:        {PriorityStrategic, 60},
	SignalRestructuring:           {PriorityStrategic, 60},
	SignalMergerAcquisition:       {PriorityStrategic, 90},
	SignalMarketExit:              {PriorityStrategic, 60},
	SignalStrategyShift:           {PriorityStrategic, 90},
	SignalCostCuttingProgram:      {PriorityStrategic, 60},
	SignalCategoryOversupply:      {PriorityMarket, 90},
	SignalDemandDrop:              {PriorityMarket, 60},
	SignalPricePressure:           {PriorityMarket, 60},
	SignalCompetitorDistress:      {PriorityMarket, 60},
	SignalRegulationChange:        {PriorityMarket, 90},
	SignalSupplyChainShift:        {PriorityMarket, 90},
	SignalNewProcurementLead:      {PriorityRelationship, 45},
	SignalPartnershipAnnouncement: {PriorityRelationship, 60},
	SignalTradeShowPresence:       {PriorityRelationship, 30},
	SignalExpansion:               {PriorityRelationship, 90},
	SignalSustainabilityPush:      {PriorityRelationship, 90},
	SignalDigitalTransformation:   {PriorityRelationship, 90},
}

// Valid reports whether t is one of the 24 defined signal types.
func (t SignalType) Valid() bool {
	_, ok := signalTypes[t]
	return ok
}

// Priority returns the priority tier for t, or PriorityRelationship for
// unknown types (the weakest tier).
func (t SignalType) Priority() Priority {
	if m, ok := signalTypes[t]; ok {
		return m.Priority
	}
	return PriorityRelationship
}

// UrgencyDays returns the per-type expiry window in days.
func (t SignalType) UrgencyDays() int {
	if m, ok := signalTypes[t]; ok {
		return m.UrgencyDays
	}
	return 30
}

// AllSignalTypes returns the closed signal type set in stable order.
func AllSignalTypes() []SignalType {
	return []SignalType{
		SignalInventorySurplus, SignalEarningsMiss, SignalProductDiscontinuation,
		SignalPlantClosure, SignalFiscalYearEnd, SignalOverstockClearance,
		SignalLeadershipChange, SignalRestructuring, SignalMergerAcquisition,
		SignalMarketExit, SignalStrategyShift, SignalCostCuttingProgram,
		SignalCategoryOversupply, SignalDemandDrop, SignalPricePressure,
		SignalCompetitorDistress, SignalRegulationChange, SignalSupplyChainShift,
		SignalNewProcurementLead, SignalPartnershipAnnouncement, SignalTradeShowPresence,
		SignalExpansion, SignalSustainabilityPush, SignalDigitalTransformation,
	}
}

// Category is the 9-member product taxonomy a signal can touch.
type Category string

const (
	CategoryElectronics   Category = "electronics"
	CategoryHomeAppliance Category = "home_appliances"
	CategoryPersonalCare  Category = "personal_care"
	CategoryFashion       Category = "fashion"
	CategorySportsLeisure Category = "sports_leisure"
	CategoryToys          Category = "toys"
	CategoryDIYGarden     Category = "diy_garden"
	CategoryFoodBeverage  Category = "food_beverage"
	CategoryHousehold     Category = "household"
)

// AllCategories returns the product taxonomy in stable order.
func AllCategories() []Category {
	return []Category{
		CategoryElectronics, CategoryHomeAppliance, CategoryPersonalCare,
		CategoryFashion, CategorySportsLeisure, CategoryToys,
		CategoryDIYGarden, CategoryFoodBeverage, CategoryHousehold,
	}
}

// SignalStatus is the signal lifecycle state. Transitions only move forward:
// new → viewed → {actioned, dismissed, expired}.
type SignalStatus string

const (
	StatusNew       SignalStatus = "new"
	StatusViewed    SignalStatus = "viewed"
	StatusActioned  SignalStatus = "actioned"
	StatusDismissed SignalStatus = "dismissed"
	StatusExpired   SignalStatus = "expired"
)

// statusRank orders the lifecycle; transitions must strictly increase, and
// the three terminal states are mutually exclusive.
var statusRank = map[SignalStatus]int{
	StatusNew:       0,
	StatusViewed:    1,
	StatusActioned:  2,
	StatusDismissed: 2,
	StatusExpired:   2,
}

// CanTransition reports whether a signal may move from to next.
func (s SignalStatus) CanTransition(next SignalStatus) bool {
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	return to > from
}

// Evidence holds the extracted support for a detected signal.
type Evidence struct {
	Quotes            []string `json:"quotes"`
	KeywordMatchCount int      `json:"keyword_match_count"`
}

// OutcomeResult is the closed set of recorded signal outcomes.
type OutcomeResult string

const (
	OutcomeDealWon   OutcomeResult = "deal_won"
	OutcomeDealLost  OutcomeResult = "deal_lost"
	OutcomeExpired   OutcomeResult = "expired"
	OutcomeDismissed OutcomeResult = "dismissed"
)

// Outcome is recorded once a signal has been actioned. Outcomes are
// immutable after they are written.
type Outcome struct {
	Result         OutcomeResult `json:"result"`
	ActualDiscount *float64      `json:"actual_discount,omitempty"`
	DealValue      *float64      `json:"deal_value,omitempty"`
	Notes          string        `json:"notes,omitempty"`
	RecordedAt     time.Time     `json:"recorded_at"`
}

// Signal is a timestamped, typed, scored observation about a company.
type Signal struct {
	ID            string       `json:"id"`
	CompanyID     string       `json:"company_id"`
	CompanyName   string       `json:"company_name,omitempty"`
	Type          SignalType   `json:"signal_type"`
	Priority      Priority     `json:"priority"`
	Title         string       `json:"title"`
	Summary       string       `json:"summary"`
	Confidence    float64      `json:"confidence"`     // 0..100
	DealPotential float64      `json:"deal_potential"` // 0..100
	Categories    []Category   `json:"categories,omitempty"`
	SourceURL     string       `json:"source_url,omitempty"`
	SourceType    string       `json:"source_type"`
	SourceDate    time.Time    `json:"source_date"`
	DetectedAt    time.Time    `json:"detected_at"`
	ExpiresAt     time.Time    `json:"expires_at"`
	Status        SignalStatus `json:"status"`
	Evidence      Evidence     `json:"evidence"`
	Outcome       *Outcome     `json:"outcome,omitempty"`
}

// Clamp100 bounds v to [0, 100]. Confidence and deal potential pass through
// this after every adjustment.
func Clamp100(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Validate checks the signal's closed-set fields and score bounds.
func (s Signal) Validate() error {
	if !s.Type.Valid() {
		return fmt.Errorf("model: unknown signal type %q", s.Type)
	}
	if s.Confidence < 0 || s.Confidence > 100 {
		return fmt.Errorf("model: confidence %v out of range", s.Confidence)
	}
	if s.DealPotential < 0 || s.DealPotential > 100 {
		return fmt.Errorf("model: deal_potential %v out of range", s.DealPotential)
	}
	return nil
}
