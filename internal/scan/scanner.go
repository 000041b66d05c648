// Package scan computes structural hashes for files and directory trees.
package scan

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sync/errgroup"

	"github.com/ZacharyZcR/pehashng/internal/config"
	"github.com/ZacharyZcR/pehashng/internal/pe"
)

// Result is the outcome for one file. Exactly one of Info and Err is set.
type Result struct {
	Path string
	Info *pe.Info
	Err  error
}

// Scanner hashes files with a bounded number of workers.
type Scanner struct {
	logger    log.Logger
	backend   pe.Backend
	workers   int
	recursive bool
	skipNonPE bool
}

// New creates a scanner from validated settings.
func New(cfg config.Config, logger log.Logger) *Scanner {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &Scanner{
		logger:    logger,
		backend:   cfg.ParsedBackend(),
		workers:   workers,
		recursive: cfg.Recursive,
		skipNonPE: cfg.SkipNonPE,
	}
}

// HashFile opens one file and returns its digest and breakdown.
// Malformed input yields a *pe.FormatError.
func (s *Scanner) HashFile(path string) (*pe.Info, error) {
	start := time.Now()

	img, err := pe.Open(path, s.backend)
	if err != nil {
		return nil, err
	}
	defer func() { _ = img.Close() }()

	info := pe.NewAnalyzer(img).Analyze()
	level.Debug(s.logger).Log("msg", "computed pehashng", "path", path, "digest", info.Digest, "sections", len(info.Sections), "duration", time.Since(start))
	return info, nil
}

// HashAll hashes every file named by paths, walking directories. Results keep
// the order in which files were found. Failures are logged and recorded in
// the result rather than aborting the run; only a cancelled context or an
// unreadable directory stops it.
func (s *Scanner) HashAll(ctx context.Context, paths []string) ([]Result, error) {
	files, err := s.Expand(paths)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(files))
	var g errgroup.Group
	g.SetLimit(s.workers)

	for i, path := range files {
		if ctx.Err() != nil {
			break
		}
		i, path := i, path
		g.Go(func() error {
			info, err := s.HashFile(path)
			if err != nil {
				level.Warn(s.logger).Log("msg", "failed to compute pehashng", "path", path, "err", err)
			}
			results[i] = Result{Path: path, Info: info, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// Expand turns the given paths into the list of files to hash. Directories
// contribute their regular files, descending only when recursive is set.
// Named files are always kept; files found in directories are dropped when
// they do not look like executables and skipNonPE is set.
func (s *Scanner) Expand(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		stat, err := os.Stat(path)
		if err != nil {
			// Left to HashFile, which reports it per file.
			files = append(files, path)
			continue
		}
		if !stat.IsDir() {
			files = append(files, path)
			continue
		}

		found, err := s.walk(path)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	return files, nil
}

func (s *Scanner) walk(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && !s.recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if s.skipNonPE {
			ok, err := pe.SniffFile(path)
			if err != nil {
				return err
			}
			if !ok {
				level.Debug(s.logger).Log("msg", "skipping non-PE file", "path", path)
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("遍历目录失败 %s: %w", root, err)
	}
	return files, nil
}

// Comparison is the outcome of comparing two files.
type Comparison struct {
	A     *pe.Info
	B     *pe.Info
	Equal bool
}

// Compare hashes two files and reports whether their digests match.
func (s *Scanner) Compare(a, b string) (*Comparison, error) {
	infoA, err := s.HashFile(a)
	if err != nil {
		return nil, err
	}
	infoB, err := s.HashFile(b)
	if err != nil {
		return nil, err
	}
	return &Comparison{A: infoA, B: infoB, Equal: infoA.Digest == infoB.Digest}, nil
}

// Failed counts results with an error.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}
