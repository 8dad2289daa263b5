package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = 0x42
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteCookies writes a browser-export style cookie file with one
// authenticated cookie per name.
func WriteCookies(t testing.TB, path string, names ...string) {
	t.Helper()

	if len(names) == 0 {
		names = []string{"SID"}
	}
	records := make([]map[string]any, 0, len(names))
	for _, name := range names {
		records = append(records, map[string]any{
			"name":           name,
			"value":          "value-" + name,
			"domain":         ".youtube.com",
			"path":           "/",
			"expirationDate": 1893456000.0,
			"httpOnly":       true,
			"secure":         true,
			"sameSite":       "no_restriction",
		})
	}
	data, err := json.Marshal(records)
	if err != nil {
		t.Fatalf("marshal cookies: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write cookies %s: %v", path, err)
	}
}
