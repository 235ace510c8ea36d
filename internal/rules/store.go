package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File permission constants.
const (
	dirPermissions  = 0750
	filePermissions = 0600
)

// Logger defines the logging interface used by the Store and Evaluator.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Store is the single source of truth for rule definitions.
//
// Rules live in a JSON array file, mirrored in memory in file order.
// Every mutation validates, writes the whole file atomically, commits
// the in-memory list only after the write succeeds, and then invokes
// the change hook so the evaluator and bus can catch up before the
// caller's request returns.
type Store struct {
	path     string
	mu       sync.Mutex
	rules    []*Rule
	onChange func()
	logger   Logger
}

// NewStore creates a store backed by the given rules file.
// Call Load before first use.
func NewStore(path string) *Store {
	return &Store{
		path:   path,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// OnChange registers a hook invoked synchronously after every
// successful mutation. Wiring uses it to reload the evaluator and
// reconcile bus subscriptions before the API request returns.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Load reads the rules file into memory.
// A missing file starts the store empty; a file that cannot be parsed
// is an error.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("rules file not found, starting with empty store", "path", s.path)
			s.mu.Lock()
			s.rules = nil
			s.mu.Unlock()
			return nil
		}
		return fmt.Errorf("reading rules file: %w", err)
	}

	var rules []*Rule
	if len(data) > 0 {
		if err := json.Unmarshal(data, &rules); err != nil {
			return fmt.Errorf("parsing rules file %s: %w", s.path, err)
		}
	}

	s.mu.Lock()
	s.rules = rules
	s.mu.Unlock()

	s.logger.Info("rules loaded", "path", s.path, "count", len(rules))
	return nil
}

// List returns every rule, enabled and disabled, in file order.
func (s *Store) List() []Rule {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Rule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, *r.DeepCopy())
	}
	return out
}

// Enabled returns the enabled rules in file order.
// This is what the evaluator snapshots on reload.
func (s *Store) Enabled() []Rule {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Rule
	for _, r := range s.rules {
		if r.Enabled {
			out = append(out, *r.DeepCopy())
		}
	}
	return out
}

// Get returns the first rule matching the identifier under the given
// lookup key, or ErrRuleNotFound.
func (s *Store) Get(ident string, key LookupKey) (*Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.rules {
		if matches(r, ident, key) {
			return r.DeepCopy(), nil
		}
	}
	return nil, fmt.Errorf("%w: %s %q", ErrRuleNotFound, key, ident)
}

// Add validates and appends a new rule.
// An empty ID is assigned a generated UUID. A duplicate ID is a
// conflict; a duplicate name is logged and accepted (the operator may
// genuinely want two rules with one name).
func (s *Store) Add(r *Rule) (*Rule, error) {
	stored, err := s.add(r)
	if err != nil {
		return nil, err
	}
	s.notify()
	return stored, nil
}

func (s *Store) add(r *Rule) (*Rule, error) {
	if r == nil {
		return nil, ErrInvalidRule
	}
	if r.ID == "" {
		r.ID = GenerateID()
	}
	if err := ValidateRule(r); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.rules {
		if existing.ID == r.ID {
			return nil, fmt.Errorf("%w: %s", ErrRuleExists, r.ID)
		}
		if existing.Name == r.Name {
			s.logger.Warn("rule name already in use, accepting anyway",
				"name", r.Name, "existing_id", existing.ID, "new_id", r.ID)
		}
	}

	next := make([]*Rule, len(s.rules), len(s.rules)+1)
	copy(next, s.rules)
	next = append(next, r.DeepCopy())

	if err := s.save(next); err != nil {
		return nil, err
	}
	s.rules = next

	s.logger.Info("rule added", "rule_id", r.ID, "name", r.Name, "enabled", r.Enabled)
	return r.DeepCopy(), nil
}

// Modify replaces the first rule matching the identifier with the given
// definition. The replacement keeps the located rule's ID when it does
// not carry one. A replacement name that collides with a different rule
// is a conflict.
func (s *Store) Modify(ident string, r *Rule, key LookupKey) (*Rule, error) {
	stored, err := s.modify(ident, r, key)
	if err != nil {
		return nil, err
	}
	s.notify()
	return stored, nil
}

func (s *Store) modify(ident string, r *Rule, key LookupKey) (*Rule, error) {
	if r == nil {
		return nil, ErrInvalidRule
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, existing := range s.rules {
		if matches(existing, ident, key) {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, fmt.Errorf("%w: %s %q", ErrRuleNotFound, key, ident)
	}

	if r.ID == "" {
		r.ID = s.rules[idx].ID
	}
	if err := ValidateRule(r); err != nil {
		return nil, err
	}

	for i, existing := range s.rules {
		if i == idx {
			continue
		}
		if existing.ID == r.ID {
			return nil, fmt.Errorf("%w: %s", ErrRuleExists, r.ID)
		}
		if existing.Name == r.Name {
			return nil, fmt.Errorf("%w: %q", ErrNameConflict, r.Name)
		}
	}

	next := make([]*Rule, len(s.rules))
	copy(next, s.rules)
	next[idx] = r.DeepCopy()

	if err := s.save(next); err != nil {
		return nil, err
	}
	s.rules = next

	s.logger.Info("rule modified", "rule_id", r.ID, "name", r.Name, "enabled", r.Enabled)
	return r.DeepCopy(), nil
}

// Delete removes every rule matching the identifier.
// Returns ErrRuleNotFound when nothing matched.
func (s *Store) Delete(ident string, key LookupKey) error {
	if err := s.remove(ident, key); err != nil {
		return err
	}
	s.notify()
	return nil
}

func (s *Store) remove(ident string, key LookupKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]*Rule, 0, len(s.rules))
	removed := 0
	for _, r := range s.rules {
		if matches(r, ident, key) {
			removed++
			continue
		}
		next = append(next, r)
	}
	if removed == 0 {
		return fmt.Errorf("%w: %s %q", ErrRuleNotFound, key, ident)
	}

	if err := s.save(next); err != nil {
		return err
	}
	s.rules = next

	s.logger.Info("rule deleted", "key", string(key), "ident", ident, "removed", removed)
	return nil
}

// Count returns the total and enabled rule counts.
func (s *Store) Count() (total, enabled int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.rules {
		if r.Enabled {
			enabled++
		}
	}
	return len(s.rules), enabled
}

// matches reports whether a rule is addressed by ident under key.
func matches(r *Rule, ident string, key LookupKey) bool {
	switch key {
	case ByName:
		return r.Name == ident
	default:
		return r.ID == ident
	}
}

// notify runs the change hook outside the store lock so the hook can
// read the store (the evaluator reload does exactly that).
func (s *Store) notify() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// save writes the given rule list to disk atomically.
// Callers must hold the store lock; the in-memory list is committed
// only after save succeeds, so a failed write leaves memory and file
// consistent.
func (s *Store) save(rules []*Rule) error {
	if rules == nil {
		rules = []*Rule{} // keep the file a JSON array, never null
	}
	data, err := json.MarshalIndent(rules, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding rules: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), dirPermissions); err != nil {
		return fmt.Errorf("creating rules directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, filePermissions); err != nil {
		return fmt.Errorf("writing rules file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing rules file: %w", err)
	}
	return nil
}
