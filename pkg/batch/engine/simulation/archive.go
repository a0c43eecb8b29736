package simulation

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/exception"
)

// ArchiveName returns the name of the log archive of the given attempt.
func ArchiveName(attempt int) string {
	return fmt.Sprintf("logs_attempt%d.tar.gz", attempt)
}

// ArchiveLogs packs files into a gzip-compressed tarball at dest. Entries are stored under their base
// name; missing files are skipped. The archive is written to a temporary file and renamed into place.
func ArchiveLogs(dest string, files []string) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".logs-*.tar.gz")
	if err != nil {
		return exception.NewCycleErrorf(moduleName, exception.KindIO, "cannot create log archive in %s", filepath.Dir(dest), err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	gz := gzip.NewWriter(tmp)
	tw := tar.NewWriter(gz)
	for _, f := range files {
		if err = addFile(tw, f); err != nil {
			return err
		}
	}
	if err = tw.Close(); err != nil {
		return exception.NewCycleErrorf(moduleName, exception.KindIO, "cannot finish tar stream %s", dest, err)
	}
	if err = gz.Close(); err != nil {
		return exception.NewCycleErrorf(moduleName, exception.KindIO, "cannot finish gzip stream %s", dest, err)
	}
	if err = tmp.Close(); err != nil {
		return exception.NewCycleErrorf(moduleName, exception.KindIO, "cannot close %s", tmp.Name(), err)
	}
	if err = os.Rename(tmp.Name(), dest); err != nil {
		return exception.NewCycleErrorf(moduleName, exception.KindIO, "cannot move log archive to %s", dest, err)
	}
	return nil
}

func addFile(tw *tar.Writer, path string) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return exception.NewCycleErrorf(moduleName, exception.KindIO, "cannot open %s", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return exception.NewCycleErrorf(moduleName, exception.KindIO, "cannot stat %s", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil
	}
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return exception.NewCycleErrorf(moduleName, exception.KindIO, "cannot build tar header for %s", path, err)
	}
	hdr.Name = filepath.Base(path)
	if err := tw.WriteHeader(hdr); err != nil {
		return exception.NewCycleErrorf(moduleName, exception.KindIO, "cannot write tar header for %s", path, err)
	}
	if _, err := io.Copy(tw, f); err != nil {
		return exception.NewCycleErrorf(moduleName, exception.KindIO, "cannot archive %s", path, err)
	}
	return nil
}
