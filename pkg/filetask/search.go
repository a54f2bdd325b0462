package filetask

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"regexp"
)

// SearchPayload is the input of one search_in_file task
type SearchPayload struct {
	// Path is the file to search
	Path string

	// Pattern is the regular expression to match per line
	Pattern string
}

// Match is one matching line
type Match struct {
	// Line is the 1-based line number
	Line int

	// Text is the matching line content
	Text string
}

// SearchResult is the output of one search_in_file task
type SearchResult struct {
	Path    string
	Pattern string
	Matches []Match
}

// SearchHandler finds lines matching a pattern. Payload: SearchPayload.
func SearchHandler(ctx context.Context, payload any) (any, error) {
	in, ok := payload.(SearchPayload)
	if !ok {
		return nil, fmt.Errorf("search_in_file payload must be SearchPayload, got %T", payload)
	}

	re, err := regexp.Compile(in.Pattern)
	if err != nil {
		return nil, fmt.Errorf("compile pattern %q: %w", in.Pattern, err)
	}

	f, err := os.Open(in.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", in.Path, err)
	}
	defer f.Close()

	res := SearchResult{Path: in.Path, Pattern: in.Pattern}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		if lineNo%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		lineNo++

		if re.Match(scanner.Bytes()) {
			res.Matches = append(res.Matches, Match{Line: lineNo, Text: scanner.Text()})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", in.Path, err)
	}
	return res, nil
}
