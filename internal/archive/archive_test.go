package archive

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"
)

// buildTarGz writes a gzip-tar archive containing the given files.
func buildTarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	for name, content := range files {
		hdr := &tar.Header{
			Name: name,
			Mode: 0o644,
			Size: int64(len(content)),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("failed to write tar header: %v", err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatalf("failed to write tar body: %v", err)
		}
	}

	if err := tw.Close(); err != nil {
		t.Fatalf("failed to close tar writer: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("failed to close gzip writer: %v", err)
	}
	return buf.Bytes()
}

func writeArchive(t *testing.T, dir string, files map[string]string) string {
	t.Helper()
	path := filepath.Join(dir, "out.tar.gz")
	if err := os.WriteFile(path, buildTarGz(t, files), 0o644); err != nil {
		t.Fatalf("failed to write archive: %v", err)
	}
	return path
}

func TestExtractFileTarGz(t *testing.T) {
	dir := t.TempDir()
	archive := writeArchive(t, dir, map[string]string{
		"uniref.a3m": ">101\nMKVLAAG\n",
		"pdb70.m8":   "101\t1ABC_A\t0.9\n",
	})

	dest := filepath.Join(dir, "work")
	if err := ExtractFileTarGz(archive, dest); err != nil {
		t.Fatalf("ExtractFileTarGz: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dest, "uniref.a3m"))
	if err != nil {
		t.Fatalf("extracted member missing: %v", err)
	}
	if string(got) != ">101\nMKVLAAG\n" {
		t.Errorf("member content = %q", got)
	}
}

func TestExtractIfMissingSkipsExisting(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "work")
	if err := os.MkdirAll(dest, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dest, "uniref.a3m"), []byte("existing"), 0o644); err != nil {
		t.Fatal(err)
	}

	// Archive path does not exist; the skip must kick in before any open.
	if err := ExtractIfMissing(filepath.Join(dir, "missing.tar.gz"), dest, "uniref.a3m"); err != nil {
		t.Fatalf("ExtractIfMissing should have skipped: %v", err)
	}

	got, _ := os.ReadFile(filepath.Join(dest, "uniref.a3m"))
	if string(got) != "existing" {
		t.Errorf("existing member was overwritten: %q", got)
	}
}

func TestExtractRejectsEscapingEntries(t *testing.T) {
	dir := t.TempDir()
	archive := writeArchive(t, dir, map[string]string{
		"../evil.txt": "nope",
	})

	if err := ExtractFileTarGz(archive, filepath.Join(dir, "work")); err == nil {
		t.Fatal("expected error for escaping tar entry")
	}
}

func TestConcatenateOrderAndNULStripping(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.a3m")
	second := filepath.Join(dir, "second.a3m")

	if err := os.WriteFile(first, []byte(">a\nMK\x00VL\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(second, []byte(">b\nAAG\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := Concatenate(first, second)
	if err != nil {
		t.Fatalf("Concatenate: %v", err)
	}
	want := ">a\nMKVL\n>b\nAAG\n"
	if got != want {
		t.Errorf("Concatenate = %q, want %q", got, want)
	}
}

func TestConcatenateMissingFile(t *testing.T) {
	if _, err := Concatenate(filepath.Join(t.TempDir(), "nope.a3m")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
