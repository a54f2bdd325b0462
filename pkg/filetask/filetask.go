// Package filetask provides the built-in file tooling task bodies: file
// hashing, compression, code analysis, and pattern search. Each handler
// is a pure function of payload to output, registered under a fixed type
// tag; the convenience wrappers fan a slice of paths out over the pool.
package filetask

import (
	"github.com/filetools/taskpool/pkg/task"
)

// Task type tags for the built-in handlers
const (
	TypeHashFile     = "hash_file"
	TypeCompressFile = "compress_file"
	TypeAnalyzeCode  = "analyze_code"
	TypeSearchInFile = "search_in_file"
)

// Register binds every built-in handler to its type tag. Call once,
// before starting the pool.
func Register(reg *task.Registry) error {
	if err := reg.Register(TypeHashFile, HashHandler); err != nil {
		return err
	}
	if err := reg.Register(TypeCompressFile, CompressHandler); err != nil {
		return err
	}
	if err := reg.Register(TypeAnalyzeCode, AnalyzeHandler); err != nil {
		return err
	}
	return reg.Register(TypeSearchInFile, SearchHandler)
}
