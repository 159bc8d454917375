package share

import (
	"archive/zip"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/flate"
	"github.com/pkg/errors"
)

// zipFolder runs on its own goroutine: it streams the session's temp tree
// into a deflate archive at maximum compression, updating the progress
// percentage after each file, then deletes the temp tree. Failures never
// retry; the client must re-upload.
func (s *Store) zipFolder(f *folderUpload) {
	archiveName := s.uniqueArchiveName(f.name + ".zip")

	// The archive must not be downloadable while it is being written.
	s.setAssembling(archiveName, true)

	size, fileCount, err := s.writeArchive(f, archiveName)

	os.RemoveAll(f.tempDir)
	s.fmu.Lock()
	delete(s.folders, f.id)
	s.fmu.Unlock()

	if err != nil {
		os.Remove(s.FilePath(archiveName))
		s.setAssembling(archiveName, false)
		log.Printf("ERROR archiving folder %s: %v", f.name, err)
		s.setFolderStatus(f.id, func(st *FolderStatus) {
			st.Status = FolderError
			st.Error = err.Error()
		})
		return
	}

	if err := s.meta.Save(&Metadata{
		Filename:   archiveName,
		UploadedBy: f.owner,
		UploadTime: time.Now().Format(timeFormat),
		FileSize:   size,
		Downloads:  []DownloadRecord{},
		FromFolder: true,
		FileCount:  fileCount,
	}); err != nil {
		log.Printf("ERROR saving metadata for %s: %v", archiveName, err)
	}

	s.setAssembling(archiveName, false)
	s.setFolderStatus(f.id, func(st *FolderStatus) {
		st.Status = FolderComplete
		st.Percent = 100
		st.Filename = archiveName
	})
	s.notifySystem(fmt.Sprintf("%s uploaded folder %s (%d files, %s)",
		f.owner, archiveName, fileCount, humanize.IBytes(uint64(size))))
}

// writeArchive creates the zip and returns its final size and file count.
// On error the caller removes the partial archive.
func (s *Store) writeArchive(f *folderUpload, archiveName string) (int64, int, error) {
	tree := filepath.Join(f.tempDir, "tree")
	var files []string
	err := filepath.Walk(tree, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return 0, 0, errors.Wrap(err, "walk folder tree")
	}
	if len(files) == 0 {
		return 0, 0, errors.New("folder upload contains no files")
	}

	out, err := os.Create(s.FilePath(archiveName))
	if err != nil {
		return 0, 0, errors.Wrap(err, "create archive")
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.BestCompression)
	})

	for i, path := range files {
		rel, err := filepath.Rel(tree, path)
		if err != nil {
			zw.Close()
			return 0, 0, err
		}
		if err := addToZip(zw, path, filepath.ToSlash(rel)); err != nil {
			zw.Close()
			return 0, 0, errors.Wrapf(err, "archive %s", rel)
		}
		percent := float64(i+1) / float64(len(files)) * 100
		s.setFolderStatus(f.id, func(st *FolderStatus) { st.Percent = percent })
	}

	if err := zw.Close(); err != nil {
		return 0, 0, errors.Wrap(err, "close archive")
	}

	info, err := os.Stat(s.FilePath(archiveName))
	if err != nil {
		return 0, 0, err
	}
	return info.Size(), len(files), nil
}

func addToZip(zw *zip.Writer, path, name string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: time.Now(),
	})
	if err != nil {
		return err
	}
	_, err = io.Copy(w, in)
	return err
}

// uniqueArchiveName disambiguates duplicate targets by appending an
// incrementing numeric suffix before the extension: name.zip, name_1.zip,
// name_2.zip, ...
func (s *Store) uniqueArchiveName(name string) string {
	if _, err := os.Stat(s.FilePath(name)); os.IsNotExist(err) {
		return name
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", base, i, ext)
		if _, err := os.Stat(s.FilePath(candidate)); os.IsNotExist(err) {
			return candidate
		}
	}
}
