package model

import (
	"fmt"
	"time"
)

// DealStage is the pipeline position of a deal.
type DealStage string

const (
	StageProspect      DealStage = "prospect"
	StageQualification DealStage = "qualification"
	StageDueDiligence  DealStage = "due_diligence"
	StageNegotiation   DealStage = "negotiation"
	StageClosing       DealStage = "closing"
	StageClosedWon     DealStage = "closed_won"
	StageClosedLost    DealStage = "closed_lost"
)

// DealStages lists every valid stage in pipeline order.
var DealStages = []DealStage{
	StageProspect,
	StageQualification,
	StageDueDiligence,
	StageNegotiation,
	StageClosing,
	StageClosedWon,
	StageClosedLost,
}

// ParseDealStage validates s against the fixed set of stages.
func ParseDealStage(s string) (DealStage, error) {
	for _, st := range DealStages {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown deal stage %q", s)
}

// Label returns a human-readable stage name.
func (s DealStage) Label() string {
	switch s {
	case StageProspect:
		return "Prospect"
	case StageQualification:
		return "Qualification"
	case StageDueDiligence:
		return "Due Diligence"
	case StageNegotiation:
		return "Negotiation"
	case StageClosing:
		return "Closing"
	case StageClosedWon:
		return "Closed (won)"
	case StageClosedLost:
		return "Closed (lost)"
	default:
		return string(s)
	}
}

// IsClosed reports whether the deal has left the active pipeline.
func (s DealStage) IsClosed() bool {
	return s == StageClosedWon || s == StageClosedLost
}

// Money is an amount in minor currency units (e.g. cents).
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// String formats the amount with two decimal places.
func (m Money) String() string {
	sign := ""
	amount := m.Amount
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, amount/100, amount%100, m.Currency)
}

// Owner is the user responsible for a deal.
type Owner struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// TimelineEvent is one entry in a deal's activity history.
type TimelineEvent struct {
	At          time.Time `json:"at"`
	Kind        string    `json:"kind"`
	Description string    `json:"description"`
}

// DealDocument references a document attached to a deal.
// The deal does not own the document record.
type DealDocument struct {
	DocumentID string    `json:"document_id"`
	Name       string    `json:"name"`
	Folder     string    `json:"folder"`
	AddedAt    time.Time `json:"added_at"`
}

// Deal is a business deal with its attached files and history.
type Deal struct {
	ID        string          `json:"id" db:"id"`
	Name      string          `json:"name" db:"name"`
	Stage     DealStage       `json:"stage" db:"stage"`
	Value     Money           `json:"value" db:"-"`
	Owner     Owner           `json:"owner" db:"-"`
	Documents []DealDocument  `json:"documents,omitempty" db:"-"`
	Timeline  []TimelineEvent `json:"timeline,omitempty" db:"-"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`

	// HasOfflineChanges is set when the deal was edited locally and the
	// edit has not yet been accepted by the server. Never sent by the server.
	HasOfflineChanges bool `json:"-" db:"has_offline_changes"`
}
