package pipeline

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/foldprep/api/internal/client"
	"github.com/foldprep/api/internal/config"
	"github.com/foldprep/api/internal/model"
	"github.com/foldprep/api/internal/template"
)

const testSequence = "MKVLAAGITGRQWERTYASDFGHKLMNPCVSTAMKVLAAGI"

func buildTarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		if err := tw.WriteHeader(&tar.Header{
			Name: name,
			Mode: 0o644,
			Size: int64(len(content)),
		}); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// searchServer emulates the search API: a submit, one poll, then a download
// serving the given archive.
func searchServer(t *testing.T, archive []byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/ticket/msa":
			w.Write([]byte(`{"id":"tk-1","status":"PENDING"}`))
		case strings.HasPrefix(r.URL.Path, "/ticket/"):
			w.Write([]byte(`{"id":"tk-1","status":"COMPLETE"}`))
		case strings.HasPrefix(r.URL.Path, "/result/download/"):
			w.Write(archive)
		default:
			t.Errorf("unexpected search path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestRunner(t *testing.T, searchURL, templateURL, dataDir string) *Runner {
	t.Helper()
	cfg := &config.SearchConfig{
		HostURL:     searchURL,
		TemplateURL: templateURL,
		PathSuffix:  "env",
		NTemplates:  20,
		Shuffle:     true,
	}
	search := client.NewMMseqs2Client(cfg)
	fetcher := template.NewFetcher(client.NewTemplateClient(cfg))
	selector := template.NewSelector(nil, nil)

	r, err := NewRunner(search, selector, fetcher, cfg, dataDir, "test", testSequence)
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	return r
}

func TestRunnerDerivesDeterministicWorkDir(t *testing.T) {
	dataDir := t.TempDir()

	r1 := newTestRunner(t, "http://unused", "http://unused", dataDir)
	r2 := newTestRunner(t, "http://unused", "http://unused", dataDir)

	if r1.SearchID() != r2.SearchID() {
		t.Errorf("search ids differ: %s vs %s", r1.SearchID(), r2.SearchID())
	}
	if !strings.HasPrefix(r1.SearchID(), "test_") {
		t.Errorf("search id should start with the cleaned name, got %s", r1.SearchID())
	}
	if len(r1.SearchID()) != len("test_")+5 {
		t.Errorf("search id should carry a 5-char digest, got %s", r1.SearchID())
	}
	if r1.WorkDir() != filepath.Join(dataDir, r1.SearchID()+"_env") {
		t.Errorf("unexpected work dir %s", r1.WorkDir())
	}
}

func TestRunnerRejectsEmptySequence(t *testing.T) {
	cfg := &config.SearchConfig{PathSuffix: "env"}
	_, err := NewRunner(nil, nil, nil, cfg, t.TempDir(), "test", "xx bb zz 123")
	if err == nil {
		t.Fatal("expected error for sequence with no canonical residues")
	}
	var cfgErr *model.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %T", err)
	}
}

func TestRunnerFullLifecycle(t *testing.T) {
	resultArchive := buildTarGz(t, map[string]string{
		"uniref.a3m": ">101\n" + testSequence + "\n",
		"bfd.mgnify30.metaeuk30.smag30.a3m": ">hit1\nMKVLAAGITG\n",
		"pdb70.m8": "101\t3SN6_R\t0.9\t120\t3\t0\t1\t120\t1\t120\t2.5e-30\t250\n" +
			"101\t4LDE_A\t0.8\t118\t5\t0\t1\t118\t1\t118\t1.1e-20\t210\n",
	})
	search := searchServer(t, resultArchive)
	defer search.Close()

	bundle := buildTarGz(t, map[string]string{
		"pdb70_a3m.ffindex": "3SN6_R\t0\t100\n",
		"pdb70_a3m.ffdata":  "data",
	})
	var bundleRequest string
	templates := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bundleRequest = r.URL.Path
		w.Write(bundle)
	}))
	defer templates.Close()

	dataDir := t.TempDir()
	r := newTestRunner(t, search.URL, templates.URL, dataDir)

	result, err := r.Run(context.Background(), &model.TemplateCriteria{
		Mode:  model.TemplateModeList,
		Codes: []string{"3SN6_R"},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.SearchID != r.SearchID() {
		t.Errorf("unexpected search id %s", result.SearchID)
	}
	if !strings.Contains(result.Alignment, ">hit1") {
		t.Error("alignment should contain the second archive member")
	}
	if !strings.HasPrefix(result.Alignment, ">101") {
		t.Error("alignment should start with the query member")
	}

	onDisk, err := os.ReadFile(result.AlignmentPath)
	if err != nil {
		t.Fatalf("alignment file missing: %v", err)
	}
	if string(onDisk) != result.Alignment {
		t.Error("alignment file should match the returned alignment")
	}

	if len(result.TemplateCodes) != 1 || result.TemplateCodes[0] != "3SN6_R" {
		t.Errorf("unexpected template codes %v", result.TemplateCodes)
	}
	if bundleRequest != "/3SN6_R" {
		t.Errorf("unexpected bundle request %s", bundleRequest)
	}
	for _, name := range []string{"pdb70_a3m.ffindex", "pdb70_cs219.ffindex", "pdb70_cs219.ffdata"} {
		if _, err := os.Stat(filepath.Join(result.TemplateDir, name)); err != nil {
			t.Errorf("bundle file %s missing: %v", name, err)
		}
	}
}

func TestRunnerSecondRunSkipsSearch(t *testing.T) {
	resultArchive := buildTarGz(t, map[string]string{
		"uniref.a3m": ">101\nAAAA\n",
		"bfd.mgnify30.metaeuk30.smag30.a3m": ">hit\nCCCC\n",
		"pdb70.m8": "",
	})

	var searchCalls int
	search := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		searchCalls++
		switch {
		case r.URL.Path == "/ticket/msa":
			w.Write([]byte(`{"id":"tk-1","status":"PENDING"}`))
		case strings.HasPrefix(r.URL.Path, "/ticket/"):
			w.Write([]byte(`{"id":"tk-1","status":"COMPLETE"}`))
		default:
			w.Write(resultArchive)
		}
	}))
	defer search.Close()

	dataDir := t.TempDir()
	criteria := &model.TemplateCriteria{Mode: model.TemplateModeNone}

	r := newTestRunner(t, search.URL, "http://unused", dataDir)
	if _, err := r.Run(context.Background(), criteria); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	callsAfterFirst := searchCalls

	r2 := newTestRunner(t, search.URL, "http://unused", dataDir)
	if _, err := r2.Run(context.Background(), criteria); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if searchCalls != callsAfterFirst {
		t.Errorf("second run should not contact the search API, calls went %d -> %d", callsAfterFirst, searchCalls)
	}
}

func TestRunnerReshuffleUsesSidecar(t *testing.T) {
	dataDir := t.TempDir()

	bundle := buildTarGz(t, map[string]string{
		"pdb70_a3m.ffindex": "idx",
	})
	var requests []string
	templates := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.Path)
		w.Write(bundle)
	}))
	defer templates.Close()

	r := newTestRunner(t, "http://unused", templates.URL, dataDir)

	// Simulate a completed earlier selection
	sidecar := filepath.Join(r.WorkDir(), "template_pdbs.txt")
	if err := template.SaveCandidates(sidecar, []string{"3SN6_R", "4LDE_A"}); err != nil {
		t.Fatal(err)
	}

	result, err := r.Reshuffle(context.Background())
	if err != nil {
		t.Fatalf("Reshuffle failed: %v", err)
	}
	if len(requests) != 1 {
		t.Fatalf("expected one bundle request, got %v", requests)
	}
	if len(result.TemplateCodes) != 2 {
		t.Errorf("unexpected codes %v", result.TemplateCodes)
	}
}

func TestRunnerReshuffleReportsBundledSubset(t *testing.T) {
	dataDir := t.TempDir()

	bundle := buildTarGz(t, map[string]string{
		"pdb70_a3m.ffindex": "idx",
	})
	var requests []string
	templates := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.Path)
		w.Write(bundle)
	}))
	defer templates.Close()

	cfg := &config.SearchConfig{
		HostURL:     "http://unused",
		TemplateURL: templates.URL,
		PathSuffix:  "env",
		NTemplates:  1,
		Shuffle:     true,
	}
	fetcher := template.NewFetcher(client.NewTemplateClient(cfg))
	r, err := NewRunner(client.NewMMseqs2Client(cfg), template.NewSelector(nil, nil), fetcher, cfg, dataDir, "test", testSequence)
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}

	sidecar := filepath.Join(r.WorkDir(), "template_pdbs.txt")
	if err := template.SaveCandidates(sidecar, []string{"3SN6_R", "4LDE_A", "6OIK_A"}); err != nil {
		t.Fatal(err)
	}

	result, err := r.Reshuffle(context.Background())
	if err != nil {
		t.Fatalf("Reshuffle failed: %v", err)
	}
	if len(result.TemplateCodes) != 1 {
		t.Fatalf("expected the single bundled code, got %v", result.TemplateCodes)
	}
	if len(requests) != 1 || requests[0] != "/"+result.TemplateCodes[0] {
		t.Errorf("reported codes %v do not match bundle request %v", result.TemplateCodes, requests)
	}
}
