package pipeline

// Phase is the orchestrator's current stage. Transitions are strictly
// idle -> analyzing -> idle for ingestion and
// idle -> generating -> finalizing -> idle for synthesis.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseAnalyzing  Phase = "analyzing"
	PhaseGenerating Phase = "generating"
	PhaseFinalizing Phase = "finalizing"
)

// Progress is a poll-friendly snapshot of the running operation.
type Progress struct {
	Phase       Phase  `json:"phase"`
	Percent     int    `json:"percent"`
	CurrentFile string `json:"currentFile,omitempty"`
	Message     string `json:"message,omitempty"`
}
