package output

import (
	"errors"
	"fmt"
	"os"
)

// TempPath returns the staging path for target. The pid suffix keeps two
// concurrent runs pointed at the same artifact from trampling each other's
// staging file; the winner is whichever renames last.
func TempPath(target string) string {
	return fmt.Sprintf("%s.tmp.%d", target, os.Getpid())
}

// PendingFile stages an artifact at a temporary sibling path. Writers stream
// into F; a clean Commit renames the staged file over the target in one
// operation, so readers only ever observe the old artifact or the complete
// new one.
type PendingFile struct {
	F      *os.File
	target string
	tmp    string
	done   bool
}

// CreateTemp opens the staging file for target, truncating any leftover from
// a previous crashed run.
func CreateTemp(target string) (*PendingFile, error) {
	tmp := TempPath(target)
	f, err := os.Create(tmp)
	if err != nil {
		return nil, &WriteError{Path: target, Err: err}
	}
	return &PendingFile{F: f, target: target, tmp: tmp}, nil
}

// Commit closes the staged file and renames it into place.
func (p *PendingFile) Commit() error {
	if p.done {
		return nil
	}
	p.done = true
	// Columnar encoders close the file themselves when finalizing footers;
	// a second close here must not fail the commit.
	if err := p.F.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		_ = os.Remove(p.tmp)
		return &WriteError{Path: p.target, Err: err}
	}
	if err := os.Rename(p.tmp, p.target); err != nil {
		_ = os.Remove(p.tmp)
		return &WriteError{Path: p.target, Err: err}
	}
	return nil
}

// Abort discards the staged file. Safe to call repeatedly and after Commit,
// where it does nothing.
func (p *PendingFile) Abort() {
	if p.done {
		return
	}
	p.done = true
	_ = p.F.Close()
	_ = os.Remove(p.tmp)
}
