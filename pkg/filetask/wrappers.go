package filetask

import (
	"context"

	"github.com/filetools/taskpool/pkg/pool"
)

// HashFiles hashes every path over the pool, chunked at the pool's
// worker count. Output order matches input order; the first failure
// aborts the whole call.
func HashFiles(ctx context.Context, p *pool.Pool, paths []string) ([]HashResult, error) {
	return pool.Map[string, HashResult](ctx, p, paths, TypeHashFile, func(path string) any {
		return path
	}, 0)
}

// CompressFiles gzips every path next to the original
func CompressFiles(ctx context.Context, p *pool.Pool, paths []string) ([]CompressResult, error) {
	return pool.Map[string, CompressResult](ctx, p, paths, TypeCompressFile, func(path string) any {
		return CompressPayload{Path: path}
	}, 0)
}

// AnalyzeCodeFiles computes source metrics for every path
func AnalyzeCodeFiles(ctx context.Context, p *pool.Pool, paths []string) ([]AnalyzeResult, error) {
	return pool.Map[string, AnalyzeResult](ctx, p, paths, TypeAnalyzeCode, func(path string) any {
		return path
	}, 0)
}

// SearchInFiles finds lines matching pattern in every path
func SearchInFiles(ctx context.Context, p *pool.Pool, paths []string, pattern string) ([]SearchResult, error) {
	return pool.Map[string, SearchResult](ctx, p, paths, TypeSearchInFile, func(path string) any {
		return SearchPayload{Path: path, Pattern: pattern}
	}, 0)
}
