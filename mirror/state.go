package mirror

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/hupe1980/experience/codec"
	"github.com/hupe1980/experience/internal/fs"
)

const (
	// StateFileName records what has been mirrored into a directory.
	StateFileName = ".mirror.json"
	stateVersion  = 1
)

// State maps remote blob names to the version last copied.
type State struct {
	Version int              `json:"version"`
	Objects map[string]Entry `json:"objects"`
}

// Entry describes one mirrored blob.
type Entry struct {
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
	// Local is the file written, relative to the mirror directory.
	Local string `json:"local"`
}

func newState() *State {
	return &State{Version: stateVersion, Objects: make(map[string]Entry)}
}

// LoadState reads the mirror state of dir. A missing state file yields an
// empty state.
func LoadState(fsys fs.FileSystem, dir string) (*State, error) {
	f, err := fsys.OpenFile(filepath.Join(dir, StateFileName), os.O_RDONLY, 0)
	if errors.Is(err, os.ErrNotExist) {
		return newState(), nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	var st State
	if err := codec.Default.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("mirror state: %w", err)
	}
	if st.Version != stateVersion {
		return nil, fmt.Errorf("unsupported mirror state version: %d (expected %d)", st.Version, stateVersion)
	}
	if st.Objects == nil {
		st.Objects = make(map[string]Entry)
	}
	return &st, nil
}

// upToDate reports whether the blob described by info was already mirrored.
func (st *State) upToDate(fsys fs.FileSystem, dir, name string, size int64, modTime time.Time) bool {
	e, ok := st.Objects[name]
	if !ok || e.Size != size || !e.ModTime.Equal(modTime) {
		return false
	}
	_, err := fsys.Stat(filepath.Join(dir, e.Local))
	return err == nil
}

// save atomically replaces the state file.
func (st *State) save(fsys fs.FileSystem, dir string) error {
	data, err := codec.Default.Marshal(st)
	if err != nil {
		return err
	}
	return writeFile(fsys, filepath.Join(dir, StateFileName), data)
}

// writeFile writes data through a temporary file, fsyncs it and renames it
// into place.
func writeFile(fsys fs.FileSystem, path string, data []byte) error {
	tmpPath := path + ".tmp"
	f, err := fsys.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = fsys.Remove(tmpPath)
		return err
	}
	return commit(fsys, f, tmpPath, path)
}

// commit syncs and closes f, then renames tmpPath to path and syncs the
// directory. tmpPath is removed on failure.
func commit(fsys fs.FileSystem, f fs.File, tmpPath, path string) error {
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = fsys.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		_ = fsys.Remove(tmpPath)
		return err
	}
	if err := fsys.Rename(tmpPath, path); err != nil {
		_ = fsys.Remove(tmpPath)
		return err
	}
	return syncDir(fsys, filepath.Dir(path))
}

func syncDir(fsys fs.FileSystem, dir string) error {
	f, err := fsys.OpenFile(dir, os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
