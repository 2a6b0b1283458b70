package discovery

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// mockLogger implements Logger interface for testing.
type mockLogger struct {
	debugCalls []string
	infoCalls  []string
	warnCalls  []string
	errorCalls []string
}

func (m *mockLogger) Debug(msg string, keysAndValues ...interface{}) {
	m.debugCalls = append(m.debugCalls, msg)
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.infoCalls = append(m.infoCalls, msg)
}

func (m *mockLogger) Warn(msg string, keysAndValues ...interface{}) {
	m.warnCalls = append(m.warnCalls, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.errorCalls = append(m.errorCalls, msg)
}

// writeFile creates a file with the given modification time.
func writeFile(t *testing.T, dir, name string, mtime time.Time) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("api_key,email\n"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("Chtimes() error = %v", err)
	}
	return path
}

func TestLatest_ByModTime(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	base := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)

	// Name order and mtime order disagree on purpose.
	writeFile(t, dir, "cascade_usage_by_user_2025-01-20.csv", base.Add(-2*time.Hour))
	newest := writeFile(t, dir, "cascade_usage_by_user_2025-01-10.csv", base)
	writeFile(t, dir, "cascade_usage_by_model_date_2025-01-15.csv", base.Add(time.Hour))
	writeFile(t, dir, "cascade_usage_by_user_2025-01-15.json", base.Add(time.Hour))

	log := &mockLogger{}
	f, err := New([]string{dir}, log).Latest("cascade_usage_by_user_", ".csv")
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if f.Path != newest {
		t.Errorf("Latest().Path = %q, want %q", f.Path, newest)
	}
	if len(log.infoCalls) != 1 {
		t.Errorf("expected 1 info log, got %d", len(log.infoCalls))
	}
}

func TestLatest_TieBrokenByName(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	mtime := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)

	writeFile(t, dir, "email_api_mapping_2025-01-14.json", mtime)
	want := writeFile(t, dir, "email_api_mapping_2025-01-15.json", mtime)

	f, err := Latest(dir, "email_api_mapping_", ".json")
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if f.Path != want {
		t.Errorf("Latest().Path = %q, want %q", f.Path, want)
	}
}

func TestLatest_NoFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "unrelated.csv", time.Now())

	_, err := Latest(dir, "credit_usage_report_", ".csv")
	if !errors.Is(err, ErrNoFilesFound) {
		t.Errorf("Latest() error = %v, want ErrNoFilesFound", err)
	}
}

func TestFind_MultipleDirectories(t *testing.T) {
	t.Parallel()

	out := t.TempDir()
	cwd := t.TempDir()
	base := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)

	writeFile(t, out, "cascade_api_raw_responses_2025-01-14.json", base)
	writeFile(t, cwd, "cascade_api_raw_responses_2025-01-15.json", base.Add(time.Minute))

	log := &mockLogger{}
	d := New([]string{out, filepath.Join(out, "missing"), cwd, out}, log)

	files, err := d.Find("cascade_api_raw_responses_", ".json")
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("Find() returned %d files, want 2", len(files))
	}
	if files[0].Name != "cascade_api_raw_responses_2025-01-15.json" {
		t.Errorf("files[0] = %q, want newest first", files[0].Name)
	}
	if files[0].Size == 0 {
		t.Error("Size not populated")
	}
}

func TestFind_SkipsDirectories(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "credit_usage_report_dir.csv"), 0700); err != nil {
		t.Fatalf("Mkdir() error = %v", err)
	}

	files, err := New([]string{dir}, &mockLogger{}).Find("credit_usage_report_", ".csv")
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if len(files) != 0 {
		t.Errorf("Find() returned %d files, want 0", len(files))
	}
}

func TestSortNewestFirst(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	files := []File{
		{Name: "a", ModTime: t0},
		{Name: "c", ModTime: t0},
		{Name: "b", ModTime: t0.Add(time.Second)},
	}

	sortNewestFirst(files)

	want := []string{"b", "c", "a"}
	for i, f := range files {
		if f.Name != want[i] {
			t.Errorf("files[%d] = %q, want %q", i, f.Name, want[i])
		}
	}
}

func TestExpandHome(t *testing.T) {
	t.Parallel()

	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tests := []struct {
		input string
		want  string
	}{
		{"~", home},
		{"~/output", filepath.Join(home, "output")},
		{"/abs/output", "/abs/output"},
		{"output", "output"},
	}

	for _, tt := range tests {
		if got := expandHome(tt.input); got != tt.want {
			t.Errorf("expandHome(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
