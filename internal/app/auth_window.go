package app

import (
	"sync"
	"time"
)

// AuthWindow records until when the owner holds a valid login. Background
// refresh only runs inside that window.
type AuthWindow struct {
	mu    sync.RWMutex
	until time.Time
	now   func() time.Time
}

// NewAuthWindow returns a closed window.
func NewAuthWindow() *AuthWindow {
	return &AuthWindow{now: time.Now}
}

// MarkLogin extends the window to until. An earlier time never shortens it.
func (w *AuthWindow) MarkLogin(until time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if until.After(w.until) {
		w.until = until
	}
}

// Active reports whether a login is currently valid.
func (w *AuthWindow) Active() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.now().Before(w.until)
}
