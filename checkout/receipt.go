package checkout

import "pos.GO/agent"

// ReceiptWindow is the receipt-popup port. The window is pre-opened
// before the sale call (popup blockers only allow windows opened
// synchronously from a click) and navigated to the invoicing agent's
// receipt endpoint only once the sale succeeds; on failure it is closed.
type ReceiptWindow interface {
	// PreOpen opens a blank window for the agent's receipt. An error means
	// the popup was blocked; the sale itself still proceeds.
	PreOpen(k agent.Key) (ReceiptHandle, error)
}

// ReceiptHandle is one pre-opened window.
type ReceiptHandle interface {
	Navigate(url string)
	Close()
}

// NopReceiptWindow is used by headless callers (CLI, tests without a
// receipt assertion).
type NopReceiptWindow struct{}

func (NopReceiptWindow) PreOpen(agent.Key) (ReceiptHandle, error) { return nopHandle{}, nil }

type nopHandle struct{}

func (nopHandle) Navigate(string) {}
func (nopHandle) Close()          {}
