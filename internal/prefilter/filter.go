package prefilter

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Filter holds the ignored-sender and ignored-subject lists the poll loop
// consults before handing a fetched message to ingestion. Matching is
// case-insensitive substring. The lists are mutable at runtime and
// persisted to a JSON file on every change.
type Filter struct {
	mu       sync.RWMutex
	path     string
	senders  []string
	subjects []string
	logger   *zap.Logger
}

type fileFormat struct {
	IgnoredSenders  []string `json:"ignored_senders"`
	IgnoredSubjects []string `json:"ignored_subjects"`
}

// NewFilter loads the filter configuration from path, starting empty when
// the file does not exist yet. An empty path disables persistence.
func NewFilter(path string, logger *zap.Logger) (*Filter, error) {
	f := &Filter{path: path, logger: logger}

	if path == "" {
		return f, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read filter config: %w", err)
	}

	var cfg fileFormat
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse filter config: %w", err)
	}
	f.senders = cfg.IgnoredSenders
	f.subjects = cfg.IgnoredSubjects

	logger.Info("Filter configuration loaded",
		zap.String("path", path),
		zap.Int("ignored_senders", len(f.senders)),
		zap.Int("ignored_subjects", len(f.subjects)))

	return f, nil
}

// ShouldProcess reports whether a message passes the filter.
func (f *Filter) ShouldProcess(sender, subject string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	sender = strings.ToLower(sender)
	for _, ignored := range f.senders {
		if strings.Contains(sender, strings.ToLower(ignored)) {
			return false
		}
	}

	subject = strings.ToLower(subject)
	for _, ignored := range f.subjects {
		if strings.Contains(subject, strings.ToLower(ignored)) {
			return false
		}
	}

	return true
}

// AddSender adds an ignored-sender substring.
func (f *Filter) AddSender(sender string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !contains(f.senders, sender) {
		f.senders = append(f.senders, sender)
	}
	return f.save()
}

// RemoveSender removes an ignored-sender substring.
func (f *Filter) RemoveSender(sender string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.senders = remove(f.senders, sender)
	return f.save()
}

// AddSubject adds an ignored-subject substring.
func (f *Filter) AddSubject(keyword string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !contains(f.subjects, keyword) {
		f.subjects = append(f.subjects, keyword)
	}
	return f.save()
}

// RemoveSubject removes an ignored-subject substring.
func (f *Filter) RemoveSubject(keyword string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.subjects = remove(f.subjects, keyword)
	return f.save()
}

// Lists returns copies of the current ignored-sender and ignored-subject
// lists.
func (f *Filter) Lists() (senders, subjects []string) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string(nil), f.senders...), append([]string(nil), f.subjects...)
}

// save persists the lists. Callers hold the write lock.
func (f *Filter) save() error {
	if f.path == "" {
		return nil
	}

	data, err := json.MarshalIndent(fileFormat{
		IgnoredSenders:  f.senders,
		IgnoredSubjects: f.subjects,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal filter config: %w", err)
	}

	if err := os.WriteFile(f.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write filter config: %w", err)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func remove(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
