package testkit

import (
	"os"
	"strings"
	"testing"
)

// AssertStatusFile checks the line count and the overall line of a gate status file.
func AssertStatusFile(t testing.TB, path string, files int, overall bool) {
	t.Helper()
	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read status file: %v", err)
	}
	lines := strings.Split(string(body), "\n")
	if len(lines) != files+1 {
		t.Errorf("Expected %d status lines, got %d", files+1, len(lines))
	}
	want := "Overall status: False"
	if overall {
		want = "Overall status: True"
	}
	if last := lines[len(lines)-1]; last != want {
		t.Errorf("Expected %q as the last line, got %q", want, last)
	}
}

// SnapshotFiles reads every path into memory.
func SnapshotFiles(t testing.TB, paths ...string) map[string][]byte {
	t.Helper()
	out := make(map[string][]byte, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			t.Fatalf("failed to read %s: %v", p, err)
		}
		out[p] = data
	}
	return out
}

// AssertSameFiles checks that every file still has the snapshotted content.
func AssertSameFiles(t testing.TB, before map[string][]byte) {
	t.Helper()
	for p, want := range before {
		got, err := os.ReadFile(p)
		if err != nil {
			t.Errorf("failed to read %s: %v", p, err)
			continue
		}
		if string(got) != string(want) {
			t.Errorf("Expected %s to be unchanged after a rerun", p)
		}
	}
}
