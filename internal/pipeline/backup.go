package pipeline

import (
	"os"
	"strconv"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rotisserie/eris"
)

// BackupPath returns the sibling path a store is backed up to at time t.
func BackupPath(path string, t time.Time) string {
	return path + ".backup." + strconv.FormatInt(t.UnixMilli(), 10)
}

// writeBackup writes data to a new file at path. It fails if the file exists.
func writeBackup(path string, data []byte, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return eris.Wrapf(err, "backup: create %s", path)
	}
	if _, err := f.Write(data); err != nil {
		f.Close() //nolint:errcheck
		return eris.Wrapf(err, "backup: write %s", path)
	}
	if err := f.Sync(); err != nil {
		f.Close() //nolint:errcheck
		return eris.Wrapf(err, "backup: sync %s", path)
	}
	return eris.Wrapf(f.Close(), "backup: close %s", path)
}

// writeFileAtomic replaces path with data through a synced temp file in the
// same directory and a rename, so readers see either the old or new content.
// An existing file keeps its mode; a new one gets perm.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	return eris.Wrapf(renameio.WriteFile(path, data, perm), "write: replace %s", path)
}
