package store

import "time"

// Outcome values recorded for runs.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
	OutcomeStopped = "stopped"
	OutcomeError   = "error"
)

// BuildRecord captures the result of a build operation.
type BuildRecord struct {
	RequestID string    `json:"request_id"`
	Board     string    `json:"board"`
	Variant   string    `json:"variant"`
	Env       string    `json:"env"`
	Flags     []string  `json:"flags,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
	Outcome   string    `json:"outcome"`
	ExitCode  int       `json:"exit_code"`
	Duration  string    `json:"duration"`
	Error     string    `json:"error,omitempty"`
}

// FlashRecord captures the result of a flash operation.
type FlashRecord struct {
	BuildRecord
	Port  string `json:"port"`
	Erase bool   `json:"erase,omitempty"`
}

// SerialLog tracks a serial logging session.
type SerialLog struct {
	Port      string    `json:"port"`
	BaudRate  int       `json:"baud_rate"`
	Timestamp time.Time `json:"timestamp"`
	LogFile   string    `json:"log_file"`
}

// Run is one finished build or upload as reported by the caller. AddRun
// files it as a BuildRecord or FlashRecord.
type Run struct {
	RequestID string
	Upload    bool
	Board     string
	Variant   string
	Env       string
	Port      string
	Erase     bool
	Flags     []string
	Started   time.Time
	Duration  time.Duration
	ExitCode  int
	Outcome   string
	Err       error
}

func (r Run) buildRecord() BuildRecord {
	rec := BuildRecord{
		RequestID: r.RequestID,
		Board:     r.Board,
		Variant:   r.Variant,
		Env:       r.Env,
		Flags:     r.Flags,
		Timestamp: r.Started,
		Success:   r.Outcome == OutcomeSuccess,
		Outcome:   r.Outcome,
		ExitCode:  r.ExitCode,
		Duration:  r.Duration.Round(time.Millisecond).String(),
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
	}
	return rec
}
