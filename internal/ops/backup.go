// Package ops holds offline operational tooling: data directory backup and
// restore, used by cmd/ops.
package ops

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"choreboard/internal/store"
)

// dbFile is the live database under the data directory. Its WAL sidecars
// never enter an archive: copying them file-by-file while the engine writes
// would capture a torn snapshot, so the backup snapshots the database through
// sqlite instead and archives everything else as-is.
const dbFile = "choreboard.db"

// BackupDataDir archives dataDir to a .tar.gz at archivePath. If the database
// exists it is snapshotted via the store (consistent against a live WAL) and
// archived under its usual name; -wal/-shm sidecars are omitted.
func BackupDataDir(ctx context.Context, dataDir, archivePath string) error {
	dataDir = filepath.Clean(strings.TrimSpace(dataDir))
	archivePath = filepath.Clean(strings.TrimSpace(archivePath))
	if dataDir == "" || archivePath == "" {
		return fmt.Errorf("dataDir and archivePath are required")
	}
	info, err := os.Stat(dataDir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("data dir is not a directory: %s", dataDir)
	}

	staging, err := os.MkdirTemp("", "choreboard-backup-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(staging)

	snapshot := ""
	if _, err := os.Stat(filepath.Join(dataDir, dbFile)); err == nil {
		snapshot = filepath.Join(staging, dbFile)
		if err := snapshotDatabase(ctx, dataDir, snapshot); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(archivePath), 0o755); err != nil {
		return err
	}
	f, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	defer gz.Close()
	tw := tar.NewWriter(gz)
	defer tw.Close()

	if snapshot != "" {
		if err := addFile(tw, snapshot, dbFile); err != nil {
			return fmt.Errorf("archive database snapshot: %w", err)
		}
	}

	return filepath.WalkDir(dataDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == dataDir {
			return nil
		}
		rel, err := filepath.Rel(dataDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if isDatabaseArtifact(rel) {
			return nil
		}
		if d.Type()&os.ModeSymlink != 0 {
			// symlinks make restores unpredictable
			return nil
		}
		if d.IsDir() {
			return addDir(tw, path, rel)
		}
		return addFile(tw, path, rel)
	})
}

// snapshotDatabase opens the live store and asks sqlite for a consistent
// copy; a plain file copy of a WAL-mode database mid-write is torn.
func snapshotDatabase(ctx context.Context, dataDir, dst string) error {
	st, err := store.Open(dataDir)
	if err != nil {
		return fmt.Errorf("open database for snapshot: %w", err)
	}
	defer st.Close()
	return st.SnapshotTo(ctx, dst)
}

func isDatabaseArtifact(rel string) bool {
	switch rel {
	case dbFile, dbFile + "-wal", dbFile + "-shm":
		return true
	}
	return false
}

func addDir(tw *tar.Writer, path, rel string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = rel + "/"
	return tw.WriteHeader(hdr)
}

func addFile(tw *tar.Writer, path, rel string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = rel
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()
	_, err = io.Copy(tw, src)
	return err
}

// RestoreDataDir unpacks a backup archive into targetDir. Entry paths are
// validated so a crafted archive cannot write outside the target.
func RestoreDataDir(archivePath, targetDir string) error {
	archivePath = filepath.Clean(strings.TrimSpace(archivePath))
	targetDir = filepath.Clean(strings.TrimSpace(targetDir))
	if archivePath == "" || targetDir == "" {
		return fmt.Errorf("archivePath and targetDir are required")
	}
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return err
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := extractEntry(tr, hdr, targetDir); err != nil {
			return err
		}
	}
}

func extractEntry(tr *tar.Reader, hdr *tar.Header, targetDir string) error {
	rel, err := sanitizeArchiveRelPath(hdr.Name)
	if err != nil {
		return err
	}
	outPath := filepath.Join(targetDir, rel)

	switch hdr.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(outPath, os.FileMode(hdr.Mode))
	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			return err
		}
		dst, err := os.OpenFile(outPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(hdr.Mode))
		if err != nil {
			return err
		}
		if _, err := io.Copy(dst, tr); err != nil {
			_ = dst.Close()
			return err
		}
		return dst.Close()
	default:
		// other entry types are ignored
		return nil
	}
}

func sanitizeArchiveRelPath(name string) (string, error) {
	name = filepath.Clean(strings.TrimSpace(name))
	if name == "." || name == "" {
		return "", fmt.Errorf("invalid archive entry path")
	}
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("invalid absolute archive entry path: %s", name)
	}
	if name == ".." || strings.HasPrefix(name, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid archive entry path traversal: %s", name)
	}
	return name, nil
}
