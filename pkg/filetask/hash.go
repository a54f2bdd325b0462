package filetask

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// HashResult is the output of one hash_file task
type HashResult struct {
	// Path is the hashed file
	Path string

	// SHA256 is the hex-encoded digest
	SHA256 string

	// Size is the file size in bytes
	Size int64
}

// HashHandler computes the SHA-256 digest of a file. Payload: the file
// path as a string.
func HashHandler(ctx context.Context, payload any) (any, error) {
	path, ok := payload.(string)
	if !ok {
		return nil, fmt.Errorf("hash_file payload must be a string path, got %T", payload)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	size, err := copyWithContext(ctx, h, f)
	if err != nil {
		return nil, fmt.Errorf("hash %s: %w", path, err)
	}

	return HashResult{
		Path:   path,
		SHA256: hex.EncodeToString(h.Sum(nil)),
		Size:   size,
	}, nil
}

// copyWithContext copies in chunks, checking for cancellation between
// chunks so long files do not pin a worker past their deadline
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, 256*1024)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			wn, werr := dst.Write(buf[:n])
			written += int64(wn)
			if werr != nil {
				return written, werr
			}
		}
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, err
		}
	}
}
