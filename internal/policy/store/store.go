// Package store manages the on-disk policy document and its compiled,
// lock-free-readable in-memory snapshot. Readers (the evaluator, on every
// request) load the current snapshot via atomic.Value with no locking;
// writers (Apply, Reload) serialize through a mutex and only ever install a
// new snapshot after it has compiled successfully and been durably
// persisted to disk.
package store

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/promptgate/gateway/internal/domain/policy"
	"github.com/promptgate/gateway/internal/policy/compiled"
	"github.com/promptgate/gateway/internal/semantic"
)

// Snapshot is an immutable, fully compiled view of the policy document.
// Once published via atomic.Value, a Snapshot is never mutated in place;
// Apply always builds and installs a new one.
type Snapshot struct {
	Raw      *policy.PolicyFile
	Compiled *compiled.Policy
	Pii      policy.PiiConfig
	Semantic semantic.Matcher
}

// Store owns the policy document's lifecycle: loading it from disk at
// startup, serving lock-free reads of the current compiled snapshot, and
// applying validated updates that are persisted before they are swapped in.
type Store struct {
	path     string
	mu       sync.Mutex
	snapshot atomic.Value // *Snapshot
	logger   *slog.Logger
}

// Load reads the policy document at path, compiles it, and returns a Store
// ready to serve evaluations. A missing file is treated as an empty policy
// (no rules, everything allowed by default) rather than an error, mirroring
// first-boot behavior of the reference store this was ported from.
func Load(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{path: path, logger: logger}

	file, err := readPolicyFile(path)
	if err != nil {
		return nil, err
	}

	snap, err := buildSnapshot(file)
	if err != nil {
		return nil, fmt.Errorf("compile policy at %s: %w", path, err)
	}
	s.snapshot.Store(snap)

	if snap.Compiled == nil || len(snap.Compiled.Rules) == 0 {
		s.logger.Warn("policy loaded with zero rules, all traffic will default-allow", "path", path)
	}

	return s, nil
}

// readPolicyFile reads and parses the YAML policy document at path. A
// missing file yields an empty, valid document instead of an error.
func readPolicyFile(path string) (*policy.PolicyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &policy.PolicyFile{Rules: []policy.Rule{}}, nil
		}
		return nil, fmt.Errorf("read policy file: %w", err)
	}

	var file policy.PolicyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}
	return &file, nil
}

// buildSnapshot validates and compiles a raw policy document into a
// Snapshot. Compilation is all-or-nothing: a single bad rule fails the
// whole document rather than silently dropping it.
func buildSnapshot(file *policy.PolicyFile) (*Snapshot, error) {
	cp, err := compiled.Compile(file)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Raw:      file,
		Compiled: cp,
		Pii:      file.Pii,
		Semantic: semantic.Compile(file.Semantic),
	}, nil
}

// Snapshot returns the currently active compiled policy. It never blocks:
// concurrent evaluations and an in-flight Apply never contend on a lock.
func (s *Store) Snapshot() *Snapshot {
	return s.snapshot.Load().(*Snapshot)
}

// Validate compiles file without persisting or installing it, for
// dry-run validation of a candidate policy document before it is applied.
func Validate(file *policy.PolicyFile) error {
	_, err := compiled.Compile(file)
	return err
}

// Apply validates and compiles the new document, persists it to disk
// atomically, and only then swaps it into the live snapshot. If
// compilation or persistence fails, the store's current snapshot is left
// untouched — a malformed update can never degrade a running gateway.
func (s *Store) Apply(file *policy.PolicyFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := buildSnapshot(file)
	if err != nil {
		return fmt.Errorf("compile policy: %w", err)
	}

	if err := s.persist(file); err != nil {
		return fmt.Errorf("persist policy: %w", err)
	}

	s.snapshot.Store(snap)
	s.logger.Info("policy applied", "path", s.path, "rules", len(snap.Compiled.Rules))
	return nil
}

// persist writes file to disk atomically: serialize, write to a temp file,
// fsync, rename over the target, then chmod 0600. A cross-process flock on
// path+".lock" serializes concurrent writers (e.g. a CLI validate/apply
// racing the running server), and a ".bak" copy of the previous document is
// kept before the temp file is renamed into place.
func (s *Store) persist(file *policy.PolicyFile) error {
	data, err := yaml.Marshal(file)
	if err != nil {
		return fmt.Errorf("marshal policy: %w", err)
	}

	lockPath := s.path + ".lock"
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	defer func() { _ = lockFile.Close() }()

	if err := flockLock(lockFile.Fd()); err != nil {
		return fmt.Errorf("acquire file lock: %w", err)
	}
	defer flockUnlock(lockFile.Fd()) //nolint:errcheck

	if current, readErr := os.ReadFile(s.path); readErr == nil {
		if writeErr := os.WriteFile(s.path+".bak", current, 0600); writeErr != nil {
			s.logger.Warn("failed to write policy backup", "error", writeErr)
		}
	}

	if err := writeAtomic(s.path, data); err != nil {
		return err
	}

	if err := os.Chmod(s.path, 0600); err != nil {
		s.logger.Warn("failed to set permissions on policy file", "error", err)
	}
	return nil
}

// writeAtomic writes data to path+".tmp", fsyncs it, and renames it over
// path. The temp file is removed on any failure so a crash mid-write never
// leaves a partial file at path.
func writeAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	cleanup := func() {
		_ = f.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := f.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp to policy file: %w", err)
	}
	return nil
}

// Reload re-reads the policy document from disk and installs it as the
// new snapshot, without re-persisting it (the file is already canonical).
// Used to pick up out-of-band edits (e.g. a file deployed by config
// management) without restarting the process.
func (s *Store) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := readPolicyFile(s.path)
	if err != nil {
		return err
	}
	snap, err := buildSnapshot(file)
	if err != nil {
		return fmt.Errorf("compile policy at %s: %w", s.path, err)
	}

	s.snapshot.Store(snap)
	s.logger.Info("policy reloaded", "path", s.path, "rules", len(snap.Compiled.Rules))
	return nil
}

// Path returns the configured policy document path.
func (s *Store) Path() string {
	return s.path
}
