package testutil

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/twitchax/triage-bot/core"
)

// MemStore implements the storage contract in memory. Configure
// SearchResult/SearchErr to script the ranked search; writes and search
// calls are recorded for assertions.
type MemStore struct {
	mu sync.Mutex

	// SearchResult is returned by SearchMessages when SearchErr is nil.
	SearchResult string

	// SearchErr makes SearchMessages fail.
	SearchErr error

	directives   map[string]string
	contexts     map[string][]string
	messages     map[string][]string
	searchCalls  int
	searchedWith []string
}

func NewMemStore() *MemStore {
	return &MemStore{
		directives: make(map[string]string),
		contexts:   make(map[string][]string),
		messages:   make(map[string][]string),
	}
}

func (s *MemStore) GetOrCreateChannel(_ context.Context, channelID string) (core.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := core.NewChannel(channelID)
	if notes, ok := s.directives[channelID]; ok {
		ch.Directive.Notes = notes
	}
	return ch, nil
}

func (s *MemStore) UpdateDirective(_ context.Context, channelID string, _ json.RawMessage, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.directives[channelID] = notes
	return nil
}

func (s *MemStore) AppendContext(_ context.Context, channelID string, _ json.RawMessage, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contexts[channelID] = append(s.contexts[channelID], notes)
	return nil
}

func (s *MemStore) GetContext(_ context.Context, channelID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	notes := s.contexts[channelID]
	if len(notes) == 0 {
		return "No context recorded.", nil
	}
	out := ""
	for _, n := range notes {
		out += "- " + n + "\n"
	}
	return out, nil
}

func (s *MemStore) ContextEntries(_ context.Context, channelID string) ([]core.ChannelContextEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]core.ChannelContextEntry, 0, len(s.contexts[channelID]))
	for _, n := range s.contexts[channelID] {
		entries = append(entries, core.ChannelContextEntry{Notes: n})
	}
	return entries, nil
}

func (s *MemStore) AppendMessage(_ context.Context, channelID string, _ json.RawMessage, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[channelID] = append(s.messages[channelID], text)
	return nil
}

func (s *MemStore) SearchMessages(_ context.Context, _ string, terms string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchCalls++
	s.searchedWith = append(s.searchedWith, terms)
	if s.SearchErr != nil {
		return "", s.SearchErr
	}
	if s.SearchResult == "" {
		return "No relevant messages found.", nil
	}
	return s.SearchResult, nil
}

func (s *MemStore) Close() error { return nil }

// Directive returns the stored directive notes for the channel, or "".
func (s *MemStore) Directive(channelID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.directives[channelID]
}

// ContextNotes returns the appended context notes for the channel in order.
func (s *MemStore) ContextNotes(channelID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.contexts[channelID]))
	copy(out, s.contexts[channelID])
	return out
}

// Messages returns the recorded message texts for the channel in order.
func (s *MemStore) Messages(channelID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.messages[channelID]))
	copy(out, s.messages[channelID])
	return out
}

// SearchCalls returns how many times SearchMessages ran.
func (s *MemStore) SearchCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searchCalls
}

// SearchTerms returns the term strings passed to SearchMessages in order.
func (s *MemStore) SearchTerms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.searchedWith))
	copy(out, s.searchedWith)
	return out
}
