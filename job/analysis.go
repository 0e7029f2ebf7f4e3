package job

// BackendKind selects the execution strategy for an analysis.
type BackendKind string

const (
	// BackendLocal runs attempts as forked child processes.
	BackendLocal BackendKind = "local"
	// BackendRemote submits attempts to a batch cluster scheduler.
	BackendRemote BackendKind = "remote"
)

// Analysis is the static configuration of one work type. Instances are
// immutable for the process lifetime; the controller owns them and
// looks them up by logic name.
type Analysis struct {
	// LogicName is the key jobs carry in their Analysis field.
	LogicName string

	// Module is the payload entry point jobs of this analysis run.
	Module string

	// Backend selects local fork or remote batch submission.
	Backend BackendKind

	// Concurrency is the ceiling on simultaneously running attempts.
	Concurrency int

	// OutputRoot is the root directory for this analysis' artifacts.
	OutputRoot string

	// Parameters is the default opaque parameter blob for new jobs.
	Parameters string
}
