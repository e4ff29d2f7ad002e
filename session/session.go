// Package session holds extraction results for the currently loaded
// document and presents them to interactive callers. A session is
// immutable once published; re-running extraction produces a new session
// that replaces the old one atomically through the Manager.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cdehaan/lattice/model"
)

// Warning codes attached to a session for recovered failures.
const (
	WarnDetectionTimeout = "detection_timeout"
	WarnAmbiguousRegion  = "ambiguous_region"
	WarnPageSkipped      = "page_skipped"
	WarnOCRFailed        = "ocr_failed"
)

// Warning records a recovered failure during extraction. Page and region
// level failures degrade the result instead of aborting the document, but
// they are never silent.
type Warning struct {
	Code      string
	PageIndex int // -1 when not scoped to a page
	Message   string
}

func (w Warning) String() string {
	if w.PageIndex < 0 {
		return fmt.Sprintf("[%s] %s", w.Code, w.Message)
	}
	return fmt.Sprintf("[%s] page %d: %s", w.Code, w.PageIndex, w.Message)
}

// FormatWarnings renders warnings one per line for display.
func FormatWarnings(warnings []Warning) string {
	out := ""
	for i, w := range warnings {
		if i > 0 {
			out += "\n"
		}
		out += w.String()
	}
	return out
}

// Session is the transient set of tables extracted from one document.
type Session struct {
	id           string
	documentHash string
	created      time.Time
	tables       []model.Table
	warnings     []Warning
}

// New creates a session over the given tables and warnings. The slices
// are copied so later mutation by the caller cannot leak in.
func New(documentHash string, tables []model.Table, warnings []Warning) *Session {
	return &Session{
		id:           uuid.NewString(),
		documentHash: documentHash,
		created:      time.Now(),
		tables:       append([]model.Table(nil), tables...),
		warnings:     append([]Warning(nil), warnings...),
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// DocumentHash returns the content hash of the extracted document.
func (s *Session) DocumentHash() string { return s.documentHash }

// Created returns the session creation time.
func (s *Session) Created() time.Time { return s.created }

// Count returns the number of tables in the session.
func (s *Session) Count() int { return len(s.tables) }

// Tables returns the ordered table list.
func (s *Session) Tables() []model.Table {
	return append([]model.Table(nil), s.tables...)
}

// Table returns the table at the given position.
func (s *Session) Table(index int) (model.Table, bool) {
	if index < 0 || index >= len(s.tables) {
		return model.Table{}, false
	}
	return s.tables[index], true
}

// Filter returns the tables matching the predicate, in order.
func (s *Session) Filter(keep func(model.Table) bool) []model.Table {
	var matched []model.Table
	for _, table := range s.tables {
		if keep(table) {
			matched = append(matched, table)
		}
	}
	return matched
}

// FlatRows returns one table's cells as a flat row-major sequence.
func (s *Session) FlatRows(index int) ([]string, bool) {
	table, ok := s.Table(index)
	if !ok {
		return nil, false
	}
	return table.Flat(), true
}

// Warnings returns the recovered failures reported during extraction.
func (s *Session) Warnings() []Warning {
	return append([]Warning(nil), s.warnings...)
}

// Manager owns the single active session. Replacement is atomic: readers
// observe either the previous complete session or the new one, never a
// mix.
type Manager struct {
	mu      sync.RWMutex
	current *Session
}

// NewManager creates a manager with no active session.
func NewManager() *Manager {
	return &Manager{}
}

// Current returns the active session, or nil when none is loaded.
func (m *Manager) Current() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Replace installs a new session and returns the one it displaced, if
// any.
func (m *Manager) Replace(next *Session) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.current
	m.current = next
	return prev
}

// Close drops the active session.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil
}
