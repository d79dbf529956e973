package backup

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/nvandessel/journeygraph/internal/store"
)

// Backup file format versions.
const (
	FormatV1 = 1 // indented JSON document
	FormatV2 = 2 // JSON header line followed by a gzip-compressed document
)

// schemaName identifies the payload layout in V2 metadata.
const schemaName = "journey-graph/1"

// BackupFormat is the content of a backup file.
type BackupFormat struct {
	Version   int         `json:"version"`
	CreatedAt time.Time   `json:"created_at"`
	Graph     store.Graph `json:"graph"`
}

// BackupHeader is the first line of a V2 file. Checksum covers the
// compressed bytes that follow it.
type BackupHeader struct {
	Version    int               `json:"version"`
	CreatedAt  time.Time         `json:"created_at"`
	NodeCount  int               `json:"node_count"`
	EdgeCount  int               `json:"edge_count"`
	Compressed bool              `json:"compressed"`
	Checksum   string            `json:"checksum"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// WriteOptions adds metadata to V2 headers.
type WriteOptions struct {
	AppVersion string
	Metadata   map[string]string
}

// WriteV1 writes bf as an indented JSON file.
func WriteV1(path string, bf *BackupFormat) error {
	bf.Version = FormatV1
	bf.Graph = bf.Graph.Normalize()
	data, err := json.MarshalIndent(bf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal backup: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	return nil
}

// ReadV1 reads a V1 backup file.
func ReadV1(path string) (*BackupFormat, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read backup: %w", err)
	}
	return decodeBackup(data)
}

// WriteV2 writes a header line and the gzip-compressed document.
func WriteV2(path string, bf *BackupFormat, opts *WriteOptions) error {
	bf.Version = FormatV2
	bf.Graph = bf.Graph.Normalize()

	payload, err := json.Marshal(bf)
	if err != nil {
		return fmt.Errorf("marshal backup: %w", err)
	}

	var compressed bytes.Buffer
	zw := gzip.NewWriter(&compressed)
	if _, err := zw.Write(payload); err != nil {
		return fmt.Errorf("compress backup: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("compress backup: %w", err)
	}

	header := BackupHeader{
		Version:    FormatV2,
		CreatedAt:  bf.CreatedAt,
		NodeCount:  len(bf.Graph.Nodes),
		EdgeCount:  len(bf.Graph.Edges),
		Compressed: true,
		Checksum:   checksum(compressed.Bytes()),
		Metadata:   buildMetadata(opts),
	}
	headerLine, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("marshal backup header: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("create backup: %w", err)
	}
	w := bufio.NewWriter(f)
	w.Write(headerLine)
	w.WriteByte('\n')
	w.Write(compressed.Bytes())
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write backup: %w", err)
	}
	return f.Close()
}

func buildMetadata(opts *WriteOptions) map[string]string {
	meta := map[string]string{
		"schema":   schemaName,
		"platform": runtime.GOOS + "/" + runtime.GOARCH,
	}
	if host, err := os.Hostname(); err == nil {
		meta["hostname"] = host
	}
	if opts != nil {
		if opts.AppVersion != "" {
			meta["app_version"] = opts.AppVersion
		}
		for k, v := range opts.Metadata {
			meta[k] = v
		}
	}
	return meta
}

// ReadV2Header reads only the header line of a V2 file.
func ReadV2Header(path string) (*BackupHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open backup: %w", err)
	}
	defer f.Close()

	header, _, err := readHeader(bufio.NewReader(f))
	return header, err
}

// ReadV2 reads a V2 file, verifying the checksum before decompressing.
func ReadV2(path string) (*BackupFormat, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open backup: %w", err)
	}
	defer f.Close()

	header, body, err := readHeader(bufio.NewReader(f))
	if err != nil {
		return nil, err
	}
	if got := checksum(body); got != header.Checksum {
		return nil, fmt.Errorf("backup checksum mismatch: header %s, content %s", header.Checksum, got)
	}

	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("decompress backup: %w", err)
	}
	defer zr.Close()
	payload, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress backup: %w", err)
	}
	return decodeBackup(payload)
}

// VerifyChecksum checks a V2 file's content against its header.
func VerifyChecksum(path string) error {
	_, err := ReadV2(path)
	return err
}

// DetectFormat reports whether path holds a V1 or V2 backup.
func DetectFormat(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open backup: %w", err)
	}
	defer f.Close()

	if header, _, err := readHeader(bufio.NewReader(f)); err == nil && header.Compressed {
		return FormatV2, nil
	}

	if _, err := ReadV1(path); err != nil {
		return 0, fmt.Errorf("unrecognized backup format: %w", err)
	}
	return FormatV1, nil
}

// ReadAny reads a backup of either format.
func ReadAny(path string) (*BackupFormat, error) {
	version, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	if version == FormatV2 {
		return ReadV2(path)
	}
	return ReadV1(path)
}

// readHeader parses the header line and returns the remaining bytes.
func readHeader(r *bufio.Reader) (*BackupHeader, []byte, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return nil, nil, fmt.Errorf("read backup header: %w", err)
	}
	var header BackupHeader
	if err := json.Unmarshal(line, &header); err != nil {
		return nil, nil, fmt.Errorf("parse backup header: %w", err)
	}
	if header.Version != FormatV2 {
		return nil, nil, fmt.Errorf("backup header version %d, want %d", header.Version, FormatV2)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("read backup body: %w", err)
	}
	return &header, body, nil
}

func decodeBackup(data []byte) (*BackupFormat, error) {
	var raw struct {
		Version   int             `json:"version"`
		CreatedAt time.Time       `json:"created_at"`
		Graph     json.RawMessage `json:"graph"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse backup: %w", err)
	}
	g, err := store.DecodeGraph(raw.Graph)
	if err != nil {
		return nil, fmt.Errorf("parse backup graph: %w", err)
	}
	return &BackupFormat{Version: raw.Version, CreatedAt: raw.CreatedAt, Graph: g}, nil
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}
