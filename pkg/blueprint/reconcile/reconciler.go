// Package reconcile maps discovered header texts onto the system column
// vocabulary and drives the operator confirmation flow.
//
// Exact keyword matches map automatically and are never surfaced. Everything
// else gets a best-effort suggestion but MUST be confirmed explicitly: a
// silently force-mapped header corrupts every invoice generated for that
// customer afterwards, so ambiguity always goes back to the operator.
package reconcile

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/exportdocs/blueprint/pkg/blueprint/models"
	"github.com/exportdocs/blueprint/pkg/blueprint/rules"
)

// ErrCustomerCodeRequired is returned when a session is finalized without a
// customer code.
var ErrCustomerCodeRequired = errors.New("customer code required to finalize mappings")

// ErrUnknownColumnID is returned when a confirmation names an identifier
// outside the closed vocabulary.
var ErrUnknownColumnID = errors.New("unknown system column identifier")

// Result partitions a header set into auto-mapped and unrecognized entries.
type Result struct {
	// AutoMapped binds header text to the identifier the vocabulary
	// resolved without operator involvement.
	AutoMapped models.ColumnMapping
	// Unknown lists headers needing confirmation, each with a suggestion
	// when the heuristic produced one.
	Unknown []models.HeaderEntry
}

// Clean reports whether every header was recognized.
func (r *Result) Clean() bool {
	return len(r.Unknown) == 0
}

// Partition classifies the given header texts. The result is deterministic:
// the same headers against the same vocabulary always produce the same
// split, with Unknown sorted by header text and duplicates collapsed.
func Partition(headers []string) *Result {
	result := &Result{AutoMapped: models.ColumnMapping{}}
	seen := map[string]bool{}
	for _, raw := range headers {
		text := strings.TrimSpace(raw)
		if text == "" || seen[text] {
			continue
		}
		seen[text] = true
		if def := rules.MatchKeyword(text); def != nil {
			result.AutoMapped[text] = def.ID
			continue
		}
		result.Unknown = append(result.Unknown, models.HeaderEntry{
			Text:       text,
			Suggestion: rules.Suggest(text),
		})
	}
	sort.Slice(result.Unknown, func(i, j int) bool {
		return result.Unknown[i].Text < result.Unknown[j].Text
	})
	return result
}

// Session tracks operator confirmations for one scan result. Confirmations
// can be toggled freely until Finalize freezes them; an unconfirmed header
// simply stays unmapped and falls back to defaults at render time.
type Session struct {
	mu        sync.Mutex
	result    *Result
	confirmed models.ColumnMapping
}

// NewSession starts a confirmation session over a partition result.
func NewSession(result *Result) *Session {
	return &Session{
		result:    result,
		confirmed: models.ColumnMapping{},
	}
}

// Confirm binds an unrecognized header to a vocabulary identifier.
// Confirming twice replaces the earlier choice.
func (s *Session) Confirm(headerText, columnID string) error {
	if !rules.IsKnownID(columnID) {
		return fmt.Errorf("%w: %q", ErrUnknownColumnID, columnID)
	}
	text := strings.TrimSpace(headerText)
	if !s.isUnknown(text) {
		return fmt.Errorf("header %q is not awaiting confirmation", headerText)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirmed[text] = columnID
	return nil
}

// Unconfirm reverts a confirmation; the header returns to the unconfirmed
// state as if it had never been confirmed.
func (s *Session) Unconfirm(headerText string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.confirmed, strings.TrimSpace(headerText))
}

// Confirmed returns a snapshot of the current confirmations.
func (s *Session) Confirmed() models.ColumnMapping {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.confirmed.Clone()
}

// Finalize freezes the session into the ColumnMapping used to build the
// blueprint: all auto-mapped headers plus the currently confirmed ones.
// Headers never confirmed are discarded and stay unmapped. A non-empty
// customer code is required; there is nothing to attach the mapping to
// without one.
func (s *Session) Finalize(customerCode string) (models.ColumnMapping, error) {
	if strings.TrimSpace(customerCode) == "" {
		return nil, ErrCustomerCodeRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.result.AutoMapped.Clone()
	for header, id := range s.confirmed {
		out[header] = id
	}
	return out, nil
}

func (s *Session) isUnknown(text string) bool {
	for _, entry := range s.result.Unknown {
		if strings.EqualFold(entry.Text, text) {
			return true
		}
	}
	return false
}

// Merge folds caller-supplied confirmations into a mapping in one shot, the
// request/response variant of the interactive session. Unknown identifiers
// are rejected; headers absent from the unknown set are ignored rather than
// silently force-mapped.
func Merge(result *Result, confirmations map[string]string) (models.ColumnMapping, error) {
	session := NewSession(result)
	for header, id := range confirmations {
		if !rules.IsKnownID(id) {
			return nil, fmt.Errorf("%w: %q for header %q", ErrUnknownColumnID, id, header)
		}
		if err := session.Confirm(header, id); err != nil {
			continue
		}
	}
	out := result.AutoMapped.Clone()
	for header, id := range session.Confirmed() {
		out[header] = id
	}
	return out, nil
}
