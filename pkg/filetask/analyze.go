package filetask

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// functionPattern matches common function declarations across the
// languages the surrounding tooling deals with
var functionPattern = regexp.MustCompile(`^\s*(func\s+|function\s+|def\s+|fn\s+)`)

// AnalyzeResult is the output of one analyze_code task
type AnalyzeResult struct {
	Path string

	// TotalLines is the line count including blanks and comments
	TotalLines int

	// CodeLines is the count of non-blank, non-comment lines
	CodeLines int

	// CommentLines counts lines starting with a line-comment marker
	CommentLines int

	// BlankLines counts whitespace-only lines
	BlankLines int

	// Functions counts function declarations
	Functions int
}

// AnalyzeHandler computes simple source metrics for a file. Payload: the
// file path as a string.
func AnalyzeHandler(ctx context.Context, payload any) (any, error) {
	path, ok := payload.(string)
	if !ok {
		return nil, fmt.Errorf("analyze_code payload must be a string path, got %T", payload)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	res := AnalyzeResult{Path: path}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if res.TotalLines%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		res.TotalLines++

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			res.BlankLines++
		case strings.HasPrefix(line, "//") || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "--"):
			res.CommentLines++
		default:
			res.CodeLines++
			if functionPattern.MatchString(line) {
				res.Functions++
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}
	return res, nil
}
