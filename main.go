package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/any-hub/artifact-cache/internal/cache"
	"github.com/any-hub/artifact-cache/internal/config"
	"github.com/any-hub/artifact-cache/internal/logging"
	"github.com/any-hub/artifact-cache/internal/version"
)

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run 执行 CLI 并返回退出码，方便测试。
func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand()
	root.SetArgs(args)
	root.SetOut(stdOut)
	root.SetErr(stdErr)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stdErr, err.Error())
		return 1
	}
	return 0
}

// cliOptions 汇总全局标志，由各子命令共享。
type cliOptions struct {
	configFlag string
}

func newRootCommand() *cobra.Command {
	opts := &cliOptions{}
	root := &cobra.Command{
		Use:           version.Name,
		Short:         "Python 分发包的本地构件缓存与推测预取工具",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configFlag, "config", "",
		fmt.Sprintf("配置文件路径（默认 ./%s，可被 %s 覆盖）", config.DefaultConfigPath, config.EnvConfigPath))

	root.AddCommand(
		newVersionCommand(),
		newCheckConfigCommand(opts),
		newDirCommand(opts),
		newCleanCommand(opts),
		newPruneCommand(opts),
		newWarmCommand(opts),
		newServeCommand(opts),
	)
	return root
}

// environment 为加载配置与日志后的运行时上下文。
type environment struct {
	configPath string
	cfg        *config.Config
	logger     *logrus.Logger
}

// loadEnvironment 按“配置 → 日志”顺序初始化。
func loadEnvironment(opts *cliOptions) (*environment, error) {
	path := config.ResolvePath(opts.configFlag)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}
	logger, err := logging.InitLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	return &environment{configPath: path, cfg: cfg, logger: logger}, nil
}

// openCache 按配置打开缓存；NoCache 时返回的临时缓存需调用方 Close。
func (e *environment) openCache() (*cache.Cache, error) {
	store, err := e.cfg.OpenCache(cache.Now())
	if err != nil {
		return nil, fmt.Errorf("初始化缓存目录失败: %w", err)
	}
	return store.WithLogger(logging.Component(e.logger, "cache")), nil
}

func (e *environment) closeCache(store *cache.Cache) {
	if err := store.Close(); err != nil {
		e.logger.WithError(err).WithField("action", "close_cache").Warn("临时缓存清理失败")
	}
}
