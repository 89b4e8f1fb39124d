// Package masterlistupdate is the MasterlistUpdater collaborator from §6:
// "fetch remote reference, fast-forward local branch, check out a file,
// re-parse" is a black-box contract the core only needs a revision
// (hash, date, edited) and a successful-parse guarantee from. This package
// gives that contract a concrete, runnable local-path implementation —
// copying a source masterlist file into place, without parsing it, and
// reporting its content hash — rather than a real git client, since the git-backed update path
// is explicitly out of scope. Grounded on the teacher's plain os.ReadFile
// style; the revision hash is computed with stdlib crypto/sha256 the way
// the teacher computes content hashes for its cache keys.
package masterlistupdate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/pluginsort/core/internal/apperr"
)

// Updater refreshes a masterlist file from a local source path standing in
// for a remote git reference, and reports its revision.
type Updater struct {
	// SourceDir maps a remoteURL to a local directory holding the file to
	// copy in; in the real collaborator this would be a git clone, here
	// it is just a directory keyed by remoteURL verbatim.
	SourceDir map[string]string
}

// New constructs an Updater backed by sources, a remoteURL -> local
// directory map.
func New(sources map[string]string) *Updater {
	return &Updater{SourceDir: sources}
}

// Update copies the masterlist found under remoteURL/remoteBranch's source
// directory to masterlistPath, reporting whether its content changed. It
// returns apperr.GitError when the source masterlist cannot be found or
// read, apperr.PathReadFail or apperr.PathWriteFail for failures on the
// local masterlist path, and ctx.Err() if ctx is already done. The copied
// file is not parsed.
func (u *Updater) Update(ctx context.Context, masterlistPath, remoteURL, remoteBranch string) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	srcDir, ok := u.SourceDir[remoteURL]
	if !ok {
		return false, apperr.New(apperr.GitError, "no local source configured for "+remoteURL)
	}
	srcPath := filepath.Join(srcDir, remoteBranch, "masterlist.yaml")

	newData, err := os.ReadFile(srcPath)
	if err != nil {
		return false, apperr.Wrap(apperr.GitError, "read source masterlist", err)
	}

	oldData, err := os.ReadFile(masterlistPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, apperr.Wrap(apperr.PathReadFail, "read existing masterlist", err)
	}
	if err == nil && hash(oldData) == hash(newData) {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(masterlistPath), 0o755); err != nil {
		return false, apperr.Wrap(apperr.PathWriteFail, "create masterlist directory", err)
	}
	if err := os.WriteFile(masterlistPath, newData, 0o644); err != nil {
		return false, apperr.Wrap(apperr.PathWriteFail, "write masterlist", err)
	}
	return true, nil
}

// Revision reports the masterlist's content hash (truncated to 7 hex
// characters when short is true, matching a git short-hash display
// convention), its modification time formatted as a date, and whether the
// file's content diverges from its last Update call — which this stub,
// having no baseline beyond the file itself, always reports as false.
func (u *Updater) Revision(ctx context.Context, masterlistPath string, short bool) (string, string, bool, error) {
	f, err := os.Open(masterlistPath)
	if err != nil {
		return "", "", false, apperr.Wrap(apperr.PathReadFail, "open masterlist for revision", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", "", false, apperr.Wrap(apperr.PathReadFail, "hash masterlist", err)
	}
	sum := hex.EncodeToString(h.Sum(nil))
	if short {
		sum = sum[:7]
	}

	info, err := f.Stat()
	if err != nil {
		return "", "", false, apperr.Wrap(apperr.PathReadFail, "stat masterlist", err)
	}
	date := info.ModTime().UTC().Format("2006-01-02")

	return sum, date, false, nil
}

func hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
