package scene

import (
	"strings"
	"sync"

	"github.com/1ureka/aselink/internal/util"
)

// ConsoleNotifier prints reports through the process logger.
type ConsoleNotifier struct{}

func (ConsoleNotifier) Report(severity Severity, message string) {
	message = oneLine(message)
	switch severity {
	case SeverityDebug:
		util.LogDebug("%s", message)
	case SeverityInfo:
		util.LogInfo("%s", message)
	case SeverityWarning:
		util.LogWarning("%s", message)
	default:
		util.LogError("%s", message)
	}
}

// oneLine folds multi-line text (joined errors, mostly) into one line.
func oneLine(s string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(s, "\n", "; ")), " ")
}

// Report is one recorded notification.
type Report struct {
	Severity Severity
	Message  string
}

// Recorder keeps every report in memory.
type Recorder struct {
	mu      sync.Mutex
	reports []Report
}

func (r *Recorder) Report(severity Severity, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, Report{Severity: severity, Message: message})
}

// Reports returns a copy of everything recorded so far.
func (r *Recorder) Reports() []Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Report(nil), r.reports...)
}

// Count returns how many reports have the given severity.
func (r *Recorder) Count(severity Severity) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rep := range r.reports {
		if rep.Severity == severity {
			n++
		}
	}
	return n
}
