// Package archive handles the gzip-tar result archives produced by the
// search service, replacing the shell tar/cp/touch invocations the pipeline
// historically relied on.
package archive

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ExtractTarGz unpacks a gzip-compressed tar stream into destDir. Member
// paths are kept relative to destDir; entries that would escape it are
// rejected.
func ExtractTarGz(r io.Reader, destDir string) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", destDir, err)
	}

	gz, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read tar entry: %w", err)
		}

		name := filepath.Clean(hdr.Name)
		if name == "." || strings.HasPrefix(name, "..") || filepath.IsAbs(name) {
			return fmt.Errorf("tar entry %q escapes destination", hdr.Name)
		}
		target := filepath.Join(destDir, name)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("failed to create %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("failed to create %s: %w", filepath.Dir(target), err)
			}
			out, err := os.Create(target)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", target, err)
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return fmt.Errorf("failed to write %s: %w", target, err)
			}
			if err := out.Close(); err != nil {
				return fmt.Errorf("failed to close %s: %w", target, err)
			}
		default:
			// symlinks and other special entries are not expected in result
			// archives; skip them
		}
	}
}

// ExtractFileTarGz unpacks the gzip-tar archive at archivePath into destDir.
func ExtractFileTarGz(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", archivePath, err)
	}
	defer f.Close()

	return ExtractTarGz(f, destDir)
}

// ExtractIfMissing unpacks archivePath into destDir unless firstMember
// already exists there, making repeated pipeline runs cheap.
func ExtractIfMissing(archivePath, destDir, firstMember string) error {
	if _, err := os.Stat(filepath.Join(destDir, firstMember)); err == nil {
		return nil
	}
	return ExtractFileTarGz(archivePath, destDir)
}

// Concatenate reads every file fully, strips embedded NUL bytes and joins
// the contents in the given order. Order is caller-significant.
func Concatenate(paths ...string) (string, error) {
	var b strings.Builder
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", p, err)
		}
		b.Write(bytes.ReplaceAll(data, []byte{0}, nil))
	}
	return b.String(), nil
}
