// Package checkpoint persists model parameter snapshots for one training
// run. The directory is an explicit parameter of the store, never an
// ambient working-directory assumption, and a run always starts from a
// fully reset directory so stale state cannot leak in.
package checkpoint

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Snapshot is one persisted parameter set, keyed by tensor name.
type Snapshot struct {
	Step    int
	Tensors map[string][]float64
}

type manifest struct {
	RunID      string `json:"run_id"`
	LatestStep int    `json:"latest_step"`
	Steps      []int  `json:"steps"`
}

// Store owns one checkpoint directory. Exactly one trainer writes to a
// store per run.
type Store struct {
	dir string
	man manifest
}

// NewStore binds a store to dir and assigns the run a fresh identifier.
func NewStore(dir string) *Store {
	return &Store{dir: dir, man: manifest{RunID: uuid.NewString()}}
}

// Dir returns the directory the store writes to.
func (s *Store) Dir() string {
	return s.dir
}

// Reset clears any prior run's checkpoints and recreates the directory.
func (s *Store) Reset() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return errors.Wrapf(err, "checkpoint: clear %s", s.dir)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return errors.Wrapf(err, "checkpoint: create %s", s.dir)
	}
	s.man.LatestStep = 0
	s.man.Steps = nil
	return nil
}

func (s *Store) snapshotPath(step int) string {
	return filepath.Join(s.dir, fmt.Sprintf("model-%06d.ckpt", step))
}

// Save writes the tensors as the snapshot for step. The snapshot file
// and manifest are written to temporary names and renamed into place, so
// an interrupted save never leaves a partial checkpoint behind.
func (s *Store) Save(step int, tensors map[string][]float64) error {
	path := s.snapshotPath(step)
	if err := writeAtomic(path, func(f *os.File) error {
		return gob.NewEncoder(f).Encode(Snapshot{Step: step, Tensors: tensors})
	}); err != nil {
		return errors.Wrapf(err, "checkpoint: save step %d", step)
	}

	s.man.LatestStep = step
	s.man.Steps = append(s.man.Steps, step)
	if err := writeAtomic(filepath.Join(s.dir, "manifest.json"), func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(s.man)
	}); err != nil {
		return errors.Wrap(err, "checkpoint: write manifest")
	}
	return nil
}

// Restore loads the most recent snapshot in the directory.
func (s *Store) Restore() (*Snapshot, error) {
	raw, err := os.ReadFile(filepath.Join(s.dir, "manifest.json"))
	if err != nil {
		return nil, errors.Wrapf(err, "checkpoint: read manifest in %s", s.dir)
	}
	var man manifest
	if err := json.Unmarshal(raw, &man); err != nil {
		return nil, errors.Wrap(err, "checkpoint: decode manifest")
	}
	if man.LatestStep == 0 {
		return nil, errors.Errorf("checkpoint: %s holds no snapshots", s.dir)
	}

	f, err := os.Open(s.snapshotPath(man.LatestStep))
	if err != nil {
		return nil, errors.Wrapf(err, "checkpoint: open snapshot for step %d", man.LatestStep)
	}
	defer f.Close()
	var snap Snapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return nil, errors.Wrapf(err, "checkpoint: decode snapshot for step %d", man.LatestStep)
	}
	return &snap, nil
}

// Steps lists the steps checkpointed so far, in save order.
func (s *Store) Steps() []int {
	return append([]int(nil), s.man.Steps...)
}

// MoveTo relocates the checkpoint directory to dst.
func (s *Store) MoveTo(dst string) error {
	if err := os.RemoveAll(dst); err != nil {
		return errors.Wrapf(err, "checkpoint: clear destination %s", dst)
	}
	if err := os.Rename(s.dir, dst); err != nil {
		return errors.Wrapf(err, "checkpoint: move %s to %s", s.dir, dst)
	}
	s.dir = dst
	return nil
}

func writeAtomic(path string, write func(*os.File) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
