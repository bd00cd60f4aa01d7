package cdx

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	errs "github.com/matzehuels/stackbom/pkg/errors"
)

// Format selects the on-disk encoding of a document.
type Format string

// Formats.
const (
	FormatJSON   Format = "json"
	FormatBinary Format = "binary"
)

// ParseFormat parses a format name. "proto" and "pb" are accepted for
// [FormatBinary].
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "binary", "bin", "proto", "pb":
		return FormatBinary, nil
	}
	return "", errs.New(errs.ErrCodeInvalidInput, "unknown format %q (want json or binary)", s)
}

// FormatForPath guesses the format from a file extension.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pb", ".bin", ".cdx", ".proto":
		return FormatBinary
	}
	return FormatJSON
}

// WriteJSON encodes d as indented JSON and writes it to w.
func WriteJSON(w io.Writer, d *Document) error {
	b, err := json.Marshal(d)
	if err != nil {
		return errs.Wrap(errs.ErrCodeInvalidDocument, err, "encode document")
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, b, "", "  "); err != nil {
		return errs.Wrap(errs.ErrCodeInvalidDocument, err, "encode document")
	}
	buf.WriteByte('\n')
	if _, err := w.Write(buf.Bytes()); err != nil {
		return errs.Wrap(errs.ErrCodeWriteFailed, err, "write document")
	}
	return nil
}

// ReadJSON decodes a JSON document from r and checks its bomFormat and
// specVersion.
func ReadJSON(r io.Reader) (*Document, error) {
	var d Document
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidDocument, err, "decode document")
	}
	if d.BOMFormat != BOMFormat {
		return nil, errs.New(errs.ErrCodeInvalidDocument, "bomFormat is %q, want %q", d.BOMFormat, BOMFormat)
	}
	if _, err := CheckSpecVersion(d.SpecVersion); err != nil {
		return nil, err
	}
	return &d, nil
}

// Marshal encodes d in format f.
func Marshal(d *Document, f Format) ([]byte, error) {
	if f == FormatBinary {
		return ToBinary(d)
	}
	var buf bytes.Buffer
	if err := WriteJSON(&buf, d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes data in either format, detected from its first byte.
// schemaVersion applies to binary input without a stored version.
func Unmarshal(data []byte, schemaVersion string) (*Document, error) {
	if IsJSON(data) {
		return ReadJSON(bytes.NewReader(data))
	}
	return FromBinary(data, schemaVersion)
}

// ReadFile reads a document in either format from path.
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errs.Wrap(errs.ErrCodeFileNotFound, err, "read %s", path)
	}
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeReadFailed, err, "read %s", path)
	}
	d, err := Unmarshal(data, "")
	if err != nil {
		return nil, errs.Wrap(errs.GetCode(err), err, "%s", path)
	}
	return d, nil
}

// WriteFile encodes d in format f and atomically replaces path with it. On
// failure path is left untouched and no temporary file remains.
func WriteFile(path string, d *Document, f Format) error {
	data, err := Marshal(d, f)
	if err != nil {
		return err
	}
	return AtomicWrite(path, data)
}

// AtomicWrite writes data to a temporary file next to path and renames it
// over path.
func AtomicWrite(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrap(errs.ErrCodeWriteFailed, err, "create %s", dir)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errs.Wrap(errs.ErrCodeWriteFailed, err, "create temp file in %s", dir)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return errs.Wrap(errs.ErrCodeWriteFailed, err, "write %s", path)
	}
	if err = tmp.Sync(); err != nil {
		return errs.Wrap(errs.ErrCodeWriteFailed, err, "sync %s", path)
	}
	if err = tmp.Close(); err != nil {
		return errs.Wrap(errs.ErrCodeWriteFailed, err, "close %s", path)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return errs.Wrap(errs.ErrCodeWriteFailed, err, "chmod %s", path)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return errs.Wrap(errs.ErrCodeWriteFailed, err, "rename to %s", path)
	}
	return nil
}

// LoadBinaryFile reads a document from path. A missing or unreadable file
// returns found == false and no error; a file that exists but does not decode
// returns found == true and the decode error.
func LoadBinaryFile(path, schemaVersion string) (d *Document, found bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false, nil
	}
	d, err = Unmarshal(data, schemaVersion)
	if err != nil {
		return nil, true, err
	}
	return d, true, nil
}
