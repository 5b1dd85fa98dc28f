package agent

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// Key identifies one of the two local agents. Exactly two exist for the
// process lifetime, each fronting its own company ledger.
type Key int

const (
	Official Key = iota
	Unofficial
)

// Keys lists both agents in declaration order.
var Keys = [2]Key{Official, Unofficial}

func (k Key) String() string {
	switch k {
	case Official:
		return "official"
	case Unofficial:
		return "unofficial"
	}
	return fmt.Sprintf("agent.Key(%d)", int(k))
}

// Other returns the opposite agent.
func (k Key) Other() Key {
	if k == Official {
		return Unofficial
	}
	return Official
}

// MarshalJSON encodes a Key as its name, never as an index.
func (k Key) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *Key) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseKey(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKey maps "official"/"unofficial" (case-insensitive) to a Key.
func ParseKey(s string) (Key, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "official":
		return Official, nil
	case "unofficial":
		return Unofficial, nil
	}
	return Official, fmt.Errorf("unknown agent key %q", s)
}

// Registry holds the base URL of each agent. The unofficial agent's URL is
// operator-adjustable at runtime, so BaseURL is re-read before every call
// rather than captured at construction.
type Registry struct {
	mu   sync.RWMutex
	base [2]string
}

// NewRegistry builds a registry with the two base URLs. Trailing slashes
// are stripped so path joining stays uniform.
func NewRegistry(official, unofficial string) *Registry {
	r := &Registry{}
	r.SetBaseURL(Official, official)
	r.SetBaseURL(Unofficial, unofficial)
	return r
}

// BaseURL returns the current base URL for an agent.
func (r *Registry) BaseURL(k Key) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.base[k]
}

// SetBaseURL replaces an agent's base URL. Takes effect on the next call.
func (r *Registry) SetBaseURL(k Key, url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.base[k] = strings.TrimRight(strings.TrimSpace(url), "/")
}
