package checkout

import (
	"errors"
	"fmt"
	"strings"

	"pos.GO/agent"
)

// Mode is the cashier's agent-selection mode at checkout.
type Mode int

const (
	ModeAuto Mode = iota
	ModeOfficial
	ModeUnofficial
)

func (m Mode) String() string {
	switch m {
	case ModeOfficial:
		return "official"
	case ModeUnofficial:
		return "unofficial"
	}
	return "auto"
}

// ParseMode maps "auto"/"official"/"unofficial" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ModeAuto, nil
	case "official":
		return ModeOfficial, nil
	case "unofficial":
		return ModeUnofficial, nil
	}
	return ModeAuto, fmt.Errorf("unknown checkout mode %q", s)
}

// Forced returns the agent a non-auto mode forces, if any.
func (m Mode) Forced() (agent.Key, bool) {
	switch m {
	case ModeOfficial:
		return agent.Official, true
	case ModeUnofficial:
		return agent.Unofficial, true
	}
	return agent.Official, false
}

// PaymentMethod as the agents accept it.
type PaymentMethod string

const (
	PayCash   PaymentMethod = "cash"
	PayCard   PaymentMethod = "card"
	PayCredit PaymentMethod = "credit"
)

// ParsePayment maps "cash"/"card"/"credit" to a PaymentMethod.
func ParsePayment(s string) (PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cash":
		return PayCash, nil
	case "card":
		return PayCard, nil
	case "credit":
		return PayCredit, nil
	}
	return PayCash, fmt.Errorf("unknown payment method %q", s)
}

// Request is everything the orchestrator needs at the moment of "Pay".
type Request struct {
	Mode           Mode
	FlagToOfficial bool
	Payment        PaymentMethod
	CustomerID     string
	Note           string
}

// Validation errors: rejected before any network call, no state mutated.
var (
	ErrEmptyCart           = errors.New("cart is empty")
	ErrCreditNeedsCustomer = errors.New("credit payment requires a customer")
	ErrCreditSplit         = errors.New("credit cannot be split across two receivables ledgers")
	ErrCreditCrossCompany  = errors.New("credit is not allowed on a cross-company invoice (use the flag toggle)")
	ErrCreditEdgeOffline   = errors.New("credit is disabled while the invoicing agent's edge is unreachable")
)

// IsValidation reports whether err is one of the pre-network rejection
// sentinels, so callers can distinguish a bad request from a failed
// submission.
func IsValidation(err error) bool {
	for _, sentinel := range []error{
		ErrEmptyCart, ErrCreditNeedsCustomer, ErrCreditSplit,
		ErrCreditCrossCompany, ErrCreditEdgeOffline,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// Kind classifies what the orchestrator decided to do.
type Kind string

const (
	KindSimple  Kind = "simple"
	KindCross   Kind = "cross"
	KindFlagged Kind = "flagged"
	KindSplit   Kind = "split"
)

// PilotMeta is the orchestration metadata stored on the invoice under
// receipt_meta.pilot, for back-office review.
type PilotMeta struct {
	Mode                 string   `json:"mode"`
	InvoiceCompany       string   `json:"invoice_company"`
	LineCompanies        []string `json:"line_companies"`
	CrossCompany         bool     `json:"cross_company"`
	FlaggedForAdjustment bool     `json:"flagged_for_adjustment"`
	SplitGroupID         string   `json:"split_group_id,omitempty"`
	CustomerIDRequested  string   `json:"customer_id_requested,omitempty"`
	CustomerIDApplied    string   `json:"customer_id_applied,omitempty"`
	Note                 string   `json:"note,omitempty"`
}

// Submission is the outcome of one /api/sale call (one invoice).
type Submission struct {
	Company         agent.Key `json:"company"`
	EventID         string    `json:"event_id,omitempty"`
	EdgeAccepted    *bool     `json:"edge_accepted,omitempty"`
	CustomerApplied string    `json:"customer_applied,omitempty"`
	GuestFallback   bool      `json:"guest_fallback,omitempty"`
	ReceiptBlocked  bool      `json:"receipt_blocked,omitempty"`
	Meta            PilotMeta `json:"meta"`
	Err             error     `json:"-"`
}

// Result is the combined outcome of a checkout. With a split cart it can
// be partial: committed legs stay committed, failed legs keep their lines
// in the cart for an explicit retry.
type Result struct {
	Kind         Kind         `json:"kind"`
	SplitGroupID string       `json:"split_group_id,omitempty"`
	Submissions  []Submission `json:"submissions"`
	Warnings     []string     `json:"warnings,omitempty"`
}

// Succeeded lists the agents whose submission committed.
func (r *Result) Succeeded() []agent.Key {
	var out []agent.Key
	for _, s := range r.Submissions {
		if s.Err == nil {
			out = append(out, s.Company)
		}
	}
	return out
}

// Failed lists the agents whose submission failed.
func (r *Result) Failed() []agent.Key {
	var out []agent.Key
	for _, s := range r.Submissions {
		if s.Err != nil {
			out = append(out, s.Company)
		}
	}
	return out
}

// Err summarizes leg failures, naming who committed and who did not.
// Leg errors stay wrapped so callers can match sentinels with errors.Is.
func (r *Result) Err() error {
	var errs []error
	for _, s := range r.Submissions {
		if s.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Company, s.Err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	joined := errors.Join(errs...)
	if ok := r.Succeeded(); len(ok) > 0 {
		names := make([]string, len(ok))
		for i, k := range ok {
			names[i] = k.String()
		}
		return fmt.Errorf("sale committed for %s; failed: %w", strings.Join(names, ", "), joined)
	}
	return fmt.Errorf("sale failed: %w", joined)
}
