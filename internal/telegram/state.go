package telegram

import (
	"sync"

	"github.com/shopspring/decimal"
)

type SessionState int

const (
	StateIdle SessionState = iota
	StateAwaitingPhone
	StateAwaitingWithdrawAmount
	StateAwaitingWithdrawDetails
)

// Session is per-chat dialog state. It only carries what the next message
// needs; everything durable lives in the database.
type Session struct {
	State          SessionState
	TariffID       int64
	IsPriority     bool
	WithdrawAmount decimal.Decimal
	WithdrawMethod string
}

type StateManager struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

func NewStateManager() *StateManager {
	return &StateManager{
		sessions: make(map[int64]*Session),
	}
}

func (m *StateManager) Get(chatID int64) *Session {
	m.mu.RLock()
	session, ok := m.sessions[chatID]
	m.mu.RUnlock()
	if ok {
		return session
	}
	return &Session{State: StateIdle}
}

func (m *StateManager) Set(chatID int64, session *Session) {
	m.mu.Lock()
	m.sessions[chatID] = session
	m.mu.Unlock()
}

func (m *StateManager) Reset(chatID int64) {
	m.Set(chatID, &Session{State: StateIdle})
}
