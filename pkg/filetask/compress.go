package filetask

import (
	"compress/gzip"
	"context"
	"fmt"
	"os"
)

// CompressPayload is the input of one compress_file task
type CompressPayload struct {
	// Path is the file to compress
	Path string

	// Dest is the output path; defaults to Path + ".gz"
	Dest string

	// Level is the gzip level; 0 means gzip.DefaultCompression
	Level int
}

// CompressResult is the output of one compress_file task
type CompressResult struct {
	Path           string
	Dest           string
	OriginalSize   int64
	CompressedSize int64
}

// CompressHandler gzips a file. Payload: CompressPayload, or a plain
// string path for the defaults.
func CompressHandler(ctx context.Context, payload any) (any, error) {
	var in CompressPayload
	switch v := payload.(type) {
	case CompressPayload:
		in = v
	case string:
		in = CompressPayload{Path: v}
	default:
		return nil, fmt.Errorf("compress_file payload must be CompressPayload or string, got %T", payload)
	}
	if in.Dest == "" {
		in.Dest = in.Path + ".gz"
	}
	level := in.Level
	if level == 0 {
		level = gzip.DefaultCompression
	}

	src, err := os.Open(in.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", in.Path, err)
	}
	defer src.Close()

	dst, err := os.Create(in.Dest)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", in.Dest, err)
	}
	defer dst.Close()

	zw, err := gzip.NewWriterLevel(dst, level)
	if err != nil {
		return nil, err
	}
	originalSize, err := copyWithContext(ctx, zw, src)
	if err != nil {
		zw.Close()
		os.Remove(in.Dest)
		return nil, fmt.Errorf("compress %s: %w", in.Path, err)
	}
	if err := zw.Close(); err != nil {
		os.Remove(in.Dest)
		return nil, err
	}

	info, err := os.Stat(in.Dest)
	if err != nil {
		return nil, err
	}

	return CompressResult{
		Path:           in.Path,
		Dest:           in.Dest,
		OriginalSize:   originalSize,
		CompressedSize: info.Size(),
	}, nil
}
