// Package conversation keeps the per-session message log and the thought
// extraction applied to assistant replies.
package conversation

import (
	"regexp"
	"strings"
	"sync"

	"github.com/0x00000002/multi-ai/pkg/protocol"
)

// thinkRe matches the first <think> block, non-greedy across newlines.
// Nested think tags are undefined behavior; only non-nested blocks are
// supported.
var thinkRe = regexp.MustCompile(`(?s)<think>(.*?)</think>`)

const thinkClose = "</think>"

// Option configures a Manager.
type Option func(*Manager)

// WithExtractThoughts toggles thought extraction on assistant messages.
func WithExtractThoughts(on bool) Option {
	return func(m *Manager) { m.extractThoughts = on }
}

// WithShowThinking controls whether extracted thought blocks stay in the
// message content.
func WithShowThinking(on bool) Option {
	return func(m *Manager) { m.showThinking = on }
}

// Manager is an append-only conversation log with session metadata and
// context maps. Safe for concurrent use.
type Manager struct {
	mu              sync.RWMutex
	messages        []protocol.Message
	metadata        map[string]interface{}
	context         map[string]interface{}
	extractThoughts bool
	showThinking    bool
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		metadata:        make(map[string]interface{}),
		context:         make(map[string]interface{}),
		extractThoughts: true,
		showThinking:    true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddMessage appends a message. Assistant content goes through thought
// extraction when enabled.
func (m *Manager) AddMessage(msg protocol.Message) {
	if m.extractThoughts && msg.Role == protocol.RoleAssistant {
		msg = m.extract(msg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
}

// AddInteraction appends a user message and the assistant reply to it.
func (m *Manager) AddInteraction(user, assistant string) {
	m.AddMessage(protocol.NewUserMessage(user))
	m.AddMessage(protocol.NewAssistantMessage(assistant))
}

// Messages returns a copy of the log in insertion order.
func (m *Manager) Messages() []protocol.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return protocol.CloneMessages(m.messages)
}

// Last returns the most recent message, if any.
func (m *Manager) Last() (protocol.Message, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.messages) == 0 {
		return protocol.Message{}, false
	}
	return m.messages[len(m.messages)-1], true
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages)
}

// ClearMessages drops the log but keeps metadata and context.
func (m *Manager) ClearMessages() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = nil
}

func (m *Manager) SetMetadata(key string, value interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metadata[key] = value
}

func (m *Manager) GetMetadata(key string) (interface{}, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.metadata[key]
	return v, ok
}

func (m *Manager) SetContext(key string, value interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.context[key] = value
}

func (m *Manager) GetContext(key string) (interface{}, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.context[key]
	return v, ok
}

// Reset clears messages, metadata and context together.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = nil
	m.metadata = make(map[string]interface{})
	m.context = make(map[string]interface{})
}

// Clone returns an independent copy of the manager's current state.
func (m *Manager) Clone() *Manager {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := &Manager{
		messages:        protocol.CloneMessages(m.messages),
		metadata:        make(map[string]interface{}, len(m.metadata)),
		context:         make(map[string]interface{}, len(m.context)),
		extractThoughts: m.extractThoughts,
		showThinking:    m.showThinking,
	}
	for k, v := range m.metadata {
		out.metadata[k] = v
	}
	for k, v := range m.context {
		out.context[k] = v
	}
	return out
}

func (m *Manager) extract(msg protocol.Message) protocol.Message {
	match := thinkRe.FindStringSubmatchIndex(msg.Content)
	if match == nil {
		return msg
	}

	msg.Thoughts = msg.Content[match[2]:match[3]]
	if m.showThinking {
		return msg
	}

	stripped := strings.TrimSpace(msg.Content[:match[0]] + msg.Content[match[1]:])
	if stripped == "" {
		// Everything was inside think blocks; keep whatever follows the
		// last closing tag.
		if idx := strings.LastIndex(msg.Content, thinkClose); idx >= 0 {
			stripped = strings.TrimSpace(msg.Content[idx+len(thinkClose):])
		}
	}
	msg.Content = stripped
	return msg
}
