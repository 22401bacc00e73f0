package ytdlp

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestReadLinksFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "links.txt")
	content := "# favorites\n\nhttps://platform.example/watch?v=abc123\n  https://platform.example/sets/mix \n#https://platform.example/skip\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write links file: %v", err)
	}

	urls, err := ReadLinksFile(path)
	if err != nil {
		t.Fatalf("ReadLinksFile: %v", err)
	}
	want := []string{
		"https://platform.example/watch?v=abc123",
		"https://platform.example/sets/mix",
	}
	if !reflect.DeepEqual(urls, want) {
		t.Fatalf("ReadLinksFile = %v, want %v", urls, want)
	}
}

func TestReadLinksFileMissing(t *testing.T) {
	if _, err := ReadLinksFile(filepath.Join(t.TempDir(), "absent.txt")); err == nil {
		t.Fatal("expected error for missing links file")
	}
}
