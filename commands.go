package main

import (
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/any-hub/artifact-cache/internal/cache"
	"github.com/any-hub/artifact-cache/internal/fetch"
	"github.com/any-hub/artifact-cache/internal/logging"
	"github.com/any-hub/artifact-cache/internal/metrics"
	"github.com/any-hub/artifact-cache/internal/resolver"
	"github.com/any-hub/artifact-cache/internal/server"
	"github.com/any-hub/artifact-cache/internal/server/routes"
	"github.com/any-hub/artifact-cache/internal/version"
	"github.com/any-hub/artifact-cache/internal/warm"
)

func newCheckConfigCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "仅校验配置后退出",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			env, err := loadEnvironment(opts)
			if err != nil {
				return err
			}
			fields := logging.BaseFields("check_config", env.configPath)
			fields["cache_dir"] = env.cfg.CacheDir
			fields["index_url"] = env.cfg.IndexURL
			fields["result"] = "ok"
			env.logger.WithFields(fields).Info("配置校验通过")
			return nil
		},
	}
}

func newDirCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dir",
		Short: "输出缓存根目录",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			env, err := loadEnvironment(opts)
			if err != nil {
				return err
			}
			store, err := env.openCache()
			if err != nil {
				return err
			}
			defer env.closeCache(store)
			fmt.Fprintln(stdOut, store.Root())
			return nil
		},
	}
}

func newCleanCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clean [package...]",
		Short: "清空缓存，或只删除指定包的条目",
		RunE: func(_ *cobra.Command, args []string) error {
			env, err := loadEnvironment(opts)
			if err != nil {
				return err
			}
			store, err := env.openCache()
			if err != nil {
				return err
			}
			defer env.closeCache(store)

			if len(args) == 0 {
				removal, err := store.Clear()
				if err != nil {
					return fmt.Errorf("清空缓存失败: %w", err)
				}
				report(env, "clear", store, removal)
				return nil
			}

			var total cache.Removal
			for _, name := range args {
				removal, err := store.Remove(name)
				if err != nil {
					return fmt.Errorf("删除 %s 的缓存失败: %w", name, err)
				}
				if removal.IsEmpty() {
					fmt.Fprintf(stdOut, "No cache entries found for %s\n", name)
				}
				total.Add(removal)
			}
			report(env, "remove", store, total)
			return nil
		},
	}
}

func newPruneCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "删除不再被引用的缓存条目",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			env, err := loadEnvironment(opts)
			if err != nil {
				return err
			}
			store, err := env.openCache()
			if err != nil {
				return err
			}
			defer env.closeCache(store)

			removal, err := store.Prune()
			if err != nil {
				return fmt.Errorf("清理缓存失败: %w", err)
			}
			report(env, "prune", store, removal)
			return nil
		},
	}
}

// report 打印删除量汇总并记录结构化日志。
func report(env *environment, action string, store *cache.Cache, removal cache.Removal) {
	if removal.IsEmpty() {
		fmt.Fprintln(stdOut, "Nothing to remove")
	} else {
		fmt.Fprintf(stdOut, "Removed %d files, %d directories (%d bytes)\n",
			removal.NumFiles, removal.NumDirs, removal.TotalBytes)
	}
	env.logger.WithFields(logging.CacheFields(action, store.Root(), removal.NumFiles, removal.NumDirs, removal.TotalBytes)).
		Info("缓存维护完成")
}

func newWarmCommand(opts *cliOptions) *cobra.Command {
	var depth int
	cmd := &cobra.Command{
		Use:   "warm <package...>",
		Short: "模拟解析回溯，预取各包的最新若干个 wheel",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment(opts)
			if err != nil {
				return err
			}
			store, err := env.openCache()
			if err != nil {
				return err
			}
			defer env.closeCache(store)

			cfg := env.cfg
			registry := fetch.NewHTTPRegistry(fetch.RegistryOptions{
				IndexURL:       cfg.IndexURL,
				Client:         fetch.NewUpstreamClient(cfg.UpstreamTimeout.DurationValue()),
				MaxRetries:     cfg.MaxRetries,
				InitialBackoff: cfg.InitialBackoff.DurationValue(),
				Logger:         logging.Component(env.logger, "registry"),
			})
			index := resolver.NewInMemoryIndex()
			sink := resolver.NewRequestSink(cfg.RequestBuffer)
			m := metrics.New()
			fetchPool := fetch.NewPool(store, registry, index, fetch.PoolOptions{
				Concurrency: cfg.Concurrency,
				Offline:     cfg.Offline,
				Logger:      logging.Component(env.logger, "fetch"),
				Metrics:     m,
			})

			ctx := cmd.Context()
			poolDone := make(chan error, 1)
			go func() { poolDone <- fetchPool.Run(ctx, sink) }()

			warmer := warm.New(index, sink,
				resolver.NewSelector(cfg.Resolution()),
				resolver.NewBatchPrefetcher(logging.Component(env.logger, "prefetch"), m),
				warm.Options{Depth: depth, Logger: logging.Component(env.logger, "warm")})
			reports, warmErr := warmer.Warm(ctx, args)

			// 关闭后 pool 会处理完已入队的请求再返回。
			sink.Close()
			poolErr := <-poolDone

			encoder := json.NewEncoder(stdOut)
			for _, r := range reports {
				if err := encoder.Encode(r); err != nil {
					return err
				}
			}
			if warmErr != nil {
				return fmt.Errorf("预热失败: %w", warmErr)
			}
			if poolErr != nil {
				return fmt.Errorf("下载任务中断: %w", poolErr)
			}
			fields := logrus.Fields{
				"action":   "warm",
				"packages": len(reports),
				"dists":    index.Distributions.Len(),
			}
			for name, value := range m.Summary() {
				fields[name] = value
			}
			env.logger.WithFields(fields).Info("缓存预热完成")
			return nil
		},
	}
	cmd.Flags().IntVar(&depth, "depth", warm.DefaultDepth, "每个包最多尝试的版本数")
	return cmd
}

func newServeCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "启动缓存维护 HTTP 服务",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := loadEnvironment(opts)
			if err != nil {
				return err
			}
			store, err := env.openCache()
			if err != nil {
				return err
			}
			defer env.closeCache(store)

			port := env.cfg.ListenPort
			app, err := server.NewApp(server.AppOptions{Logger: env.logger, ListenPort: port})
			if err != nil {
				return err
			}
			m := metrics.New()
			routes.RegisterCacheRoutes(app, store, m, logging.Component(env.logger, "admin"))
			routes.RegisterMetricsRoute(app, m)

			fields := logging.BaseFields("startup", env.configPath)
			fields["cache_dir"] = store.Root()
			fields["listen_port"] = port
			fields["version"] = version.Full()
			env.logger.WithFields(fields).Info("配置加载完成")

			go func() {
				<-cmd.Context().Done()
				_ = app.Shutdown()
			}()

			env.logger.WithFields(logrus.Fields{
				"action": "listen",
				"port":   port,
			}).Info("Fiber 服务启动")
			if err := app.Listen(fmt.Sprintf(":%d", port)); err != nil {
				return fmt.Errorf("HTTP 服务启动失败: %w", err)
			}
			return nil
		},
	}
}
