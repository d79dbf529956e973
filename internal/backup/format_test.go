package backup

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nvandessel/journeygraph/internal/store"
)

func sampleBackup(t *testing.T) *BackupFormat {
	t.Helper()
	g, err := store.DecodeGraph([]byte(`{
		"nodes":[{"id":"start","label":"Landing"},{"id":"end","label":"Checkout"}],
		"edges":[{"id":"e1","source":"start","target":"end"}]
	}`))
	if err != nil {
		t.Fatal(err)
	}
	return &BackupFormat{CreatedAt: time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC), Graph: g}
}

func TestWriteV1_ReadV1(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup.json")
	if err := WriteV1(path, sampleBackup(t)); err != nil {
		t.Fatalf("WriteV1() error = %v", err)
	}

	got, err := ReadV1(path)
	if err != nil {
		t.Fatalf("ReadV1() error = %v", err)
	}
	if got.Version != FormatV1 {
		t.Errorf("Version = %d, want %d", got.Version, FormatV1)
	}
	if len(got.Graph.Nodes) != 2 || len(got.Graph.Edges) != 1 {
		t.Errorf("graph = %d nodes / %d edges, want 2 / 1", len(got.Graph.Nodes), len(got.Graph.Edges))
	}
}

func TestWriteV2_ReadV2(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup.json.gz")
	opts := &WriteOptions{AppVersion: "v1.2.3", Metadata: map[string]string{"reason": "test"}}
	if err := WriteV2(path, sampleBackup(t), opts); err != nil {
		t.Fatalf("WriteV2() error = %v", err)
	}

	got, err := ReadV2(path)
	if err != nil {
		t.Fatalf("ReadV2() error = %v", err)
	}
	if got.Version != FormatV2 {
		t.Errorf("Version = %d, want %d", got.Version, FormatV2)
	}
	var first map[string]string
	if err := json.Unmarshal(got.Graph.Nodes[0], &first); err != nil {
		t.Fatal(err)
	}
	if first["label"] != "Landing" {
		t.Errorf("first node label = %q, want Landing", first["label"])
	}
}

func TestReadV2Header(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup.json.gz")
	if err := WriteV2(path, sampleBackup(t), &WriteOptions{AppVersion: "v1.2.3"}); err != nil {
		t.Fatal(err)
	}

	h, err := ReadV2Header(path)
	if err != nil {
		t.Fatalf("ReadV2Header() error = %v", err)
	}
	if h.Version != FormatV2 || !h.Compressed {
		t.Errorf("header = %+v, want compressed v2", h)
	}
	if h.NodeCount != 2 || h.EdgeCount != 1 {
		t.Errorf("counts = %d/%d, want 2/1", h.NodeCount, h.EdgeCount)
	}
	if !strings.HasPrefix(h.Checksum, "sha256:") {
		t.Errorf("Checksum = %q, want sha256: prefix", h.Checksum)
	}
	for _, key := range []string{"app_version", "platform", "schema"} {
		if h.Metadata[key] == "" {
			t.Errorf("Metadata[%q] is empty", key)
		}
	}
}

func TestReadV2_DetectsTampering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup.json.gz")
	if err := WriteV2(path, sampleBackup(t), nil); err != nil {
		t.Fatal(err)
	}
	if err := VerifyChecksum(path); err != nil {
		t.Fatalf("VerifyChecksum() on intact file error = %v", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		t.Fatal(err)
	}
	f.Write([]byte("garbage"))
	f.Close()

	if _, err := ReadV2(path); err == nil {
		t.Error("ReadV2() on tampered file should fail")
	}
	if err := VerifyChecksum(path); err == nil {
		t.Error("VerifyChecksum() on tampered file should fail")
	}
}

func TestDetectFormat(t *testing.T) {
	dir := t.TempDir()

	v1 := filepath.Join(dir, "v1.json")
	if err := WriteV1(v1, sampleBackup(t)); err != nil {
		t.Fatal(err)
	}
	v2 := filepath.Join(dir, "v2.json.gz")
	if err := WriteV2(v2, sampleBackup(t), nil); err != nil {
		t.Fatal(err)
	}
	junk := filepath.Join(dir, "junk.txt")
	if err := os.WriteFile(junk, []byte("not a backup"), 0600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		path    string
		want    int
		wantErr bool
	}{
		{"v1", v1, FormatV1, false},
		{"v2", v2, FormatV2, false},
		{"junk", junk, 0, true},
		{"missing", filepath.Join(dir, "nope"), 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectFormat(tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DetectFormat() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("DetectFormat() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestReadAny(t *testing.T) {
	dir := t.TempDir()
	v1 := filepath.Join(dir, "v1.json")
	v2 := filepath.Join(dir, "v2.json.gz")
	if err := WriteV1(v1, sampleBackup(t)); err != nil {
		t.Fatal(err)
	}
	if err := WriteV2(v2, sampleBackup(t), nil); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{v1, v2} {
		bf, err := ReadAny(path)
		if err != nil {
			t.Fatalf("ReadAny(%s) error = %v", filepath.Base(path), err)
		}
		if len(bf.Graph.Nodes) != 2 {
			t.Errorf("ReadAny(%s) nodes = %d, want 2", filepath.Base(path), len(bf.Graph.Nodes))
		}
	}
}

func TestReadV1_RejectsNonArrayNodes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte(`{"version":1,"graph":{"nodes":{},"edges":[]}}`), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadV1(path); err == nil {
		t.Error("ReadV1() should reject object-valued nodes")
	}
}

func TestWriteV2_Layout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup.json.gz")
	if err := WriteV2(path, sampleBackup(t), nil); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	nl := bytes.IndexByte(data, '\n')
	if nl < 0 {
		t.Fatal("no header line")
	}
	var header BackupHeader
	if err := json.Unmarshal(data[:nl], &header); err != nil {
		t.Fatalf("first line is not a JSON header: %v", err)
	}

	body := data[nl+1:]
	if len(body) < 2 || body[0] != 0x1f || body[1] != 0x8b {
		t.Fatalf("body does not start with gzip magic: % x", body[:2])
	}
	sum := sha256.Sum256(body)
	if want := "sha256:" + hex.EncodeToString(sum[:]); header.Checksum != want {
		t.Errorf("Checksum = %s, want sha256 of compressed body %s", header.Checksum, want)
	}

	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	var doc struct {
		Version int             `json:"version"`
		Graph   json.RawMessage `json:"graph"`
	}
	if err := json.NewDecoder(zr).Decode(&doc); err != nil {
		t.Fatalf("gzip body is not a backup document: %v", err)
	}
	if doc.Version != FormatV2 || len(doc.Graph) == 0 {
		t.Errorf("body document = version %d, graph %q", doc.Version, doc.Graph)
	}
}
