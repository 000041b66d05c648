// Package main provides the pehashng CLI tool.
package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/ZacharyZcR/pehashng/internal/cli"
	"github.com/ZacharyZcR/pehashng/internal/config"
	"github.com/ZacharyZcR/pehashng/internal/scan"
)

var version = "dev"

var (
	// errDifferent and errFailures carry an exit status only; the details are
	// already printed or logged.
	errDifferent = errors.New("结构哈希不同")
	errFailures  = errors.New("部分文件无法计算结构哈希")
)

type options struct {
	configFile string
	backend    string
	workers    int
	format     string
	verbose    bool
	strict     bool
	recursive  bool
	skipNonPE  bool

	paths   []string
	compare struct {
		a, b string
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var opts options

	app := kingpin.New("pehashng", "计算PE文件的结构哈希 (pehashng)。").UsageWriter(stdout).ErrorWriter(stderr)
	app.Version("pehashng " + version)
	app.HelpFlag.Short('h')
	app.Flag("config", "YAML配置文件").Short('c').StringVar(&opts.configFile)
	app.Flag("backend", "PE解析后端 (debugpe, saferwall)").StringVar(&opts.backend)
	app.Flag("workers", "并发数（默认: CPU核心数）").IntVar(&opts.workers)
	app.Flag("format", "输出格式 (text, json, yaml)").Short('f').EnumVar(&opts.format, config.FormatText, config.FormatJSON, config.FormatYAML)
	app.Flag("verbose", "详细模式：显示归一化字段并输出调试日志").Short('v').BoolVar(&opts.verbose)
	app.Flag("strict", "有文件解析失败时以状态码1退出").BoolVar(&opts.strict)

	hashCmd := app.Command("hash", "计算文件或目录中PE文件的结构哈希。").Default()
	hashCmd.Flag("recursive", "递归遍历子目录").Short('r').BoolVar(&opts.recursive)
	hashCmd.Flag("skip-non-pe", "遍历目录时跳过非PE文件").BoolVar(&opts.skipNonPE)
	hashCmd.Arg("path", "文件或目录").Required().StringsVar(&opts.paths)

	compareCmd := app.Command("compare", "比较两个文件的结构哈希。")
	compareCmd.Arg("a", "第一个文件").Required().StringVar(&opts.compare.a)
	compareCmd.Arg("b", "第二个文件").Required().StringVar(&opts.compare.b)

	parsedCmd, err := app.Parse(args)
	if err != nil {
		return checkError(err, stderr)
	}

	cfg, err := opts.config()
	if err != nil {
		return checkError(err, stderr)
	}

	logger := log.NewLogfmtLogger(log.NewSyncWriter(stderr))
	if !cfg.Verbose {
		logger = level.NewFilter(logger, level.AllowInfo())
	}

	scanner := scan.New(cfg, logger)
	reporter := cli.NewReporter(stdout, cfg.Format)
	reporter.SetVerbose(cfg.Verbose)

	switch parsedCmd {
	case hashCmd.FullCommand():
		return checkError(hash(ctx, scanner, reporter, cfg, opts.paths), stderr)
	case compareCmd.FullCommand():
		return checkError(compare(scanner, reporter, opts.compare.a, opts.compare.b), stderr)
	}
	return 0
}

// config layers the flags given on the command line over the config file.
func (o *options) config() (config.Config, error) {
	cfg := config.Default()
	if o.configFile != "" {
		loaded, err := config.Load(o.configFile)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	if o.backend != "" {
		cfg.Backend = o.backend
	}
	if o.workers != 0 {
		cfg.Workers = o.workers
	}
	if o.format != "" {
		cfg.Format = o.format
	}
	cfg.Verbose = cfg.Verbose || o.verbose
	cfg.Strict = cfg.Strict || o.strict
	cfg.Recursive = cfg.Recursive || o.recursive
	cfg.SkipNonPE = cfg.SkipNonPE || o.skipNonPE

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func hash(ctx context.Context, s *scan.Scanner, r *cli.Reporter, cfg config.Config, paths []string) error {
	results, err := s.HashAll(ctx, paths)
	if err != nil {
		return err
	}
	if err := r.PrintResults(results); err != nil {
		return err
	}
	if cfg.Strict && scan.Failed(results) > 0 {
		return errFailures
	}
	return nil
}

func compare(s *scan.Scanner, r *cli.Reporter, a, b string) error {
	cmp, err := s.Compare(a, b)
	if err != nil {
		return err
	}
	if err := r.PrintComparison(cmp); err != nil {
		return err
	}
	if !cmp.Equal {
		return errDifferent
	}
	return nil
}

func checkError(err error, stderr io.Writer) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errDifferent), errors.Is(err, errFailures):
	default:
		red := color.New(color.FgRed, color.Bold)
		_, _ = red.Fprintf(stderr, "错误: %v\n", err)
	}
	return 1
}
