package logging

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteAndRotate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	l, err := NewRotableLogger(path)
	if err != nil {
		t.Fatalf("NewRotableLogger: %v", err)
	}
	defer l.Close()

	if _, err := l.Write([]byte("before rotate\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := l.Rotate(); err != nil {
		t.Fatalf("Rotate: %v", err)
	}

	if _, err := l.Write([]byte("after rotate\n")); err != nil {
		t.Fatalf("Write after rotate: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "after rotate\n" {
		t.Errorf("current log = %q", data)
	}

	rotated, err := filepath.Glob(path + ".*")
	if err != nil || len(rotated) != 1 {
		t.Fatalf("rotated files = %v (err %v)", rotated, err)
	}
}
