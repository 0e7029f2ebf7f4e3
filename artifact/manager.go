// Package artifact owns the on-disk output of job attempts: it derives
// deterministic, collision-avoiding stdout/stderr paths, maintains the
// sharded directory tree under each analysis root, and provides the
// two bulk maintenance operations, retarget and retention cleanup.
package artifact

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/zzygyx9119/ensembl-pipeline/job"
)

// DefaultShardCount is the number of rotating subdirectories used to
// bound per-directory fan-out.
const DefaultShardCount = 10

// Pair is the stdout/stderr path pair derived for one job attempt.
type Pair struct {
	Stdout string
	Stderr string
}

// Manager derives artifact paths and manages the directory tree under
// an output root. Shard assignment rotates round-robin per Manager
// instance. Safe for concurrent use.
type Manager struct {
	root       string
	shardCount int
	logger     *slog.Logger

	// limiter bounds the sustained filesystem operation rate during
	// retention cleanup. Nil means unlimited.
	limiter *rate.Limiter

	// stale decides whether a file is older than the retention cutoff.
	// Overridable in tests; ctime cannot be backdated through the
	// filesystem API.
	stale func(path string, info fs.FileInfo, cutoff time.Time) bool

	mu    sync.Mutex
	shard int
}

// Option configures a Manager.
type Option func(*Manager)

// WithShardCount sets the number of rotating shard directories.
func WithShardCount(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.shardCount = n
		}
	}
}

// WithLogger sets the logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithOpDelay inserts a fixed delay between filesystem operations
// during retention cleanup, bounding the sustained deletion rate on
// shared network storage. Zero disables the limit.
func WithOpDelay(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// NewManager creates a Manager rooted at root.
func NewManager(root string, opts ...Option) *Manager {
	m := &Manager{
		root:       root,
		shardCount: DefaultShardCount,
		logger:     slog.Default(),
		stale:      allTimesBefore,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Root returns the manager's output root.
func (m *Manager) Root() string { return m.root }

// Paths derives the stdout/stderr pair for one job attempt and lazily
// creates the shard directory it lands in. The shard advances
// round-robin on every call so consecutive attempts spread across
// subdirectories.
func (m *Manager) Paths(analysis string, jobID int64, now time.Time) (Pair, error) {
	m.mu.Lock()
	m.shard = (m.shard + 1) % m.shardCount
	shard := m.shard
	m.mu.Unlock()

	dir := filepath.Join(m.root, analysis, fmt.Sprintf("%d", shard))
	if err := ensureDir(dir); err != nil {
		return Pair{}, fmt.Errorf("artifact dir %s: %w", dir, err)
	}

	base := filepath.Join(dir, fmt.Sprintf("job_%d_%d", jobID, now.Unix()))
	return Pair{Stdout: base + ".out", Stderr: base + ".err"}, nil
}

// EnsureRoots creates the full shard tree for every analysis up front.
// Failures are collected per directory and returned in aggregate; the
// batch is never aborted on the first bad directory.
func (m *Manager) EnsureRoots(analyses []job.Analysis) error {
	var errs DirErrors
	for _, a := range analyses {
		root := a.OutputRoot
		if root == "" {
			root = m.root
		}
		for shard := 0; shard < m.shardCount; shard++ {
			dir := filepath.Join(root, a.LogicName, fmt.Sprintf("%d", shard))
			if err := ensureDir(dir); err != nil {
				errs = append(errs, DirError{Dir: dir, Err: err})
			}
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ensureDir creates dir idempotently with group-writable permissions.
// A concurrent creator winning the race is success, not failure.
func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o775); err != nil {
		return err
	}
	// MkdirAll permissions pass through the umask; restore group write
	// so sibling pipeline processes can deposit artifacts.
	if err := os.Chmod(dir, 0o775); err != nil {
		return err
	}
	return nil
}

// DirError records a single failed directory operation.
type DirError struct {
	Dir string
	Err error
}

func (e DirError) Error() string {
	return fmt.Sprintf("%s: %v", e.Dir, e.Err)
}

// DirErrors aggregates per-directory failures from a batch operation.
type DirErrors []DirError

func (e DirErrors) Error() string {
	msgs := make([]string, len(e))
	for i, d := range e {
		msgs[i] = d.Error()
	}
	return fmt.Sprintf("artifact: %d directory operations failed: %s",
		len(e), strings.Join(msgs, "; "))
}
