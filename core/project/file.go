package project

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

var ErrFileTooLarge = errors.New("file is too large")

// FileTooLargeError is returned when a selected file exceeds the upload limit.
type FileTooLargeError struct {
	Size  int64 // -1 when only known to exceed Limit
	Limit int64
}

func (err *FileTooLargeError) Error() string {
	if err.Size < 0 {
		return fmt.Sprintf("the selected file is larger than %s, the maximum allowed size", formatSize(err.Limit))
	}
	return fmt.Sprintf("the selected file is %s; files must not exceed %s", formatSize(err.Size), formatSize(err.Limit))
}

func (err *FileTooLargeError) Is(target error) bool { return target == ErrFileTooLarge }

func formatSize(n int64) string {
	const mb = 1 << 20
	if n >= mb {
		if n%mb == 0 {
			return fmt.Sprintf("%d MB", n/mb)
		}
		return fmt.Sprintf("%.1f MB", float64(n)/mb)
	}
	return fmt.Sprintf("%d KB", (n+1023)/1024)
}

// EncodeDescriptionFile base64 encodes the content of r.
// Reading stops as soon as more than limit bytes are seen: nothing is encoded for oversized files.
func EncodeDescriptionFile(r io.Reader, limit int64) (string, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, limit+1))
	if err != nil {
		return "", errors.Wrap(err, "reading file")
	}
	if n > limit {
		return "", &FileTooLargeError{Size: -1, Limit: limit}
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// LoadDescriptionFile checks the size of the file at path before encoding it.
func LoadDescriptionFile(path string, limit int64) (name, encoded string, err error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", "", errors.Wrap(err, "opening file")
	}
	if fi.IsDir() {
		return "", "", errors.Errorf("%s is a directory", path)
	}
	if fi.Size() > limit {
		return "", "", &FileTooLargeError{Size: fi.Size(), Limit: limit}
	}

	f, err := os.Open(path)
	if err != nil {
		return "", "", errors.Wrap(err, "opening file")
	}
	defer func() { _ = f.Close() }()

	encoded, err = EncodeDescriptionFile(f, limit)
	if err != nil {
		return "", "", err
	}
	return filepath.Base(path), encoded, nil
}

// DecodeDescriptionFile returns the raw bytes of an encoded description file.
func DecodeDescriptionFile(encoded string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	return data, errors.Wrap(err, "decoding description file")
}
