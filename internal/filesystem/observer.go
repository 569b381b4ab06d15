package filesystem

import "sync"

// Observer records retry metrics for filesystem operations. The metrics
// package provides the implementation so that this package stays free of
// Prometheus imports.
//
// op is the operation label: "stat" or "open".
type Observer interface {
	ObserveRetryAttempt(op string)
	ObserveRetrySuccess(op string)
	ObserveRetryFailure(op string)
	ObserveStaleError(op string)
}

var (
	observerMu      sync.RWMutex
	defaultObserver Observer
)

// SetObserver sets the package-level metrics observer.
// Call this once at startup. A nil observer disables recording.
func SetObserver(o Observer) {
	observerMu.Lock()
	defaultObserver = o
	observerMu.Unlock()
}

// observe returns the package-level observer, which may be nil.
func observe() Observer {
	observerMu.RLock()
	defer observerMu.RUnlock()
	return defaultObserver
}
