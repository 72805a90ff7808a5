package epub

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/yuanying/shamela2epub/internal/book"
)

const (
	mimetype     = "application/epub+zip"
	opfDir       = "OEBPS"
	opfPath      = opfDir + "/content.opf"
	containerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="` + opfPath + `" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>
`
)

// WriteFile serializes m to path. The archive is written to a temporary file
// in the same directory, re-opened and verified, and only then renamed into
// place. On failure nothing is left at path and the error is an
// *book.AssemblyIOError.
func WriteFile(ctx context.Context, m *Manifest, path string) (err error) {
	fail := func(err error) error {
		return &book.AssemblyIOError{Path: path, Err: err}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fail(fmt.Errorf("failed to create output directory: %w", err))
	}
	tmp, err := os.CreateTemp(dir, ".shamela2epub-*.tmp")
	if err != nil {
		return fail(fmt.Errorf("failed to create temp file: %w", err))
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if err := writeArchive(ctx, tmp, m); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		return fail(fmt.Errorf("failed to close temp file: %w", err))
	}
	if err := Verify(tmpPath, m.profile); err != nil {
		return fail(fmt.Errorf("failed to verify archive: %w", err))
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fail(fmt.Errorf("failed to move archive into place: %w", err))
	}
	return nil
}

// writeArchive writes the zip container. The mimetype entry comes first
// and is stored uncompressed.
func writeArchive(ctx context.Context, w io.Writer, m *Manifest) error {
	zw := zip.NewWriter(w)

	mw, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		return fmt.Errorf("failed to create mimetype entry: %w", err)
	}
	if _, err := io.WriteString(mw, mimetype); err != nil {
		return fmt.Errorf("failed to write mimetype entry: %w", err)
	}

	opf, err := marshalOPF(m)
	if err != nil {
		return err
	}
	entries := []struct {
		name string
		data []byte
	}{
		{"META-INF/container.xml", []byte(containerXML)},
		{opfPath, opf},
	}
	for _, item := range m.items {
		entries = append(entries, struct {
			name string
			data []byte
		}{opfDir + "/" + item.Href, item.Data})
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: e.name, Method: zip.Deflate})
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", e.name, err)
		}
		if _, err := fw.Write(e.data); err != nil {
			return fmt.Errorf("failed to write %s: %w", e.name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return nil
}
