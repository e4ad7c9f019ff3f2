package client

import "github.com/go-pkgz/lgr"

// Notifier shows transient messages about the outcome of mutations.
// Implementations must not block.
type Notifier interface {
	Success(msg string)
	Failure(msg string)
}

// LogNotifier sends notifications to a logger.
type LogNotifier struct {
	Log lgr.L
}

// Success logs msg with INFO level.
func (n LogNotifier) Success(msg string) {
	n.Log.Logf("INFO %s", msg)
}

// Failure logs msg with WARN level.
func (n LogNotifier) Failure(msg string) {
	n.Log.Logf("WARN %s", msg)
}

type nopNotifier struct{}

func (nopNotifier) Success(string) {}
func (nopNotifier) Failure(string) {}
