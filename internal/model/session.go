package model

// Session is one completed or in-progress counting interval tied to a
// counter. CounterName is a snapshot taken at creation time; renaming a
// counter must not rewrite old history labels. Timestamp and Duration are
// epoch milliseconds.
type Session struct {
	ID          string `json:"id"`
	CounterID   string `json:"counterId"`
	CounterName string `json:"counterName"`
	Count       int    `json:"count"`
	Malas       int    `json:"malas"`
	Chants      int    `json:"chants"`
	Timestamp   int64  `json:"timestamp"`
	Duration    int64  `json:"duration"`
}

// ActiveSession is the transient checkpoint of an in-progress interval. It
// lives in the preferences key-value store, not in the sessions table, so an
// interrupted process can resume exactly where it left off.
type ActiveSession struct {
	CounterID        string `json:"counterId"`
	CounterName      string `json:"counterName"`
	CurrentTapCount  int    `json:"currentTapCount"`
	SessionTotalTaps int    `json:"sessionTotalTaps"`
	StartTime        int64  `json:"startTime"`
	SessionID        string `json:"sessionId"`
}

// ExportVersion is the current version of the portable backup format.
const ExportVersion = 1

// ExportData is the portable interchange bundle: the full set of counters
// and sessions for one user.
type ExportData struct {
	ExportVersion int       `json:"exportVersion"`
	ExportDate    int64     `json:"exportDate"`
	Counters      []Counter `json:"counters"`
	Sessions      []Session `json:"sessions"`
}
