package routes

import (
	"os"
	"path"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/artifact-cache/internal/cache"
	"github.com/any-hub/artifact-cache/internal/logging"
	"github.com/any-hub/artifact-cache/internal/metrics"
	"github.com/any-hub/artifact-cache/internal/server"
)

// RegisterCacheRoutes 暴露 /-/cache 系列维护接口：状态查询、prune、按包清理、新鲜度诊断。
func RegisterCacheRoutes(app *fiber.App, store *cache.Cache, m *metrics.Metrics, logger logrus.FieldLogger) {
	if app == nil || store == nil {
		return
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	app.Get("/-/cache", func(c fiber.Ctx) error {
		return c.JSON(describeCache(store))
	})

	app.Post("/-/cache/prune", func(c fiber.Ctx) error {
		removal, err := store.Prune()
		if err != nil {
			return err
		}
		observe(logger, m, "prune", store.Root(), server.RequestID(c), removal)
		return c.JSON(removal)
	})

	app.Delete("/-/cache", func(c fiber.Ctx) error {
		removal, err := store.Clear()
		if err != nil {
			return err
		}
		observe(logger, m, "clear", store.Root(), server.RequestID(c), removal)
		return c.JSON(removal)
	})

	app.Delete("/-/cache/packages/:name?", func(c fiber.Ctx) error {
		name := strings.TrimSpace(c.Params("name"))
		if name == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "package_name_required"})
		}
		removal, err := store.Remove(name)
		if err != nil {
			return err
		}
		observe(logger, m, "remove", store.Root(), server.RequestID(c), removal)
		return c.JSON(removal)
	})

	app.Get("/-/cache/freshness/:bucket/*", func(c fiber.Ctx) error {
		bucket, ok := cache.ParseBucket(c.Params("bucket"))
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "bucket_not_found"})
		}
		rel := strings.Trim(path.Clean("/"+c.Params("*")), "/")
		if rel == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "entry_path_required"})
		}
		entry := store.Entry(bucket, path.Dir(rel), path.Base(rel))
		freshness, err := store.Freshness(entry, c.Query("package"))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"bucket":    bucket.String(),
			"path":      entry.Path(),
			"freshness": freshness.String(),
		})
	})
}

type bucketPayload struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
}

type cachePayload struct {
	Root      string          `json:"root"`
	Temporary bool            `json:"temporary"`
	Refresh   string          `json:"refresh"`
	Buckets   []bucketPayload `json:"buckets"`
}

func describeCache(store *cache.Cache) cachePayload {
	payload := cachePayload{
		Root:      store.Root(),
		Temporary: store.IsTemporary(),
		Refresh:   store.Refresh().String(),
	}
	for _, b := range cache.AllBuckets() {
		dir := store.Bucket(b)
		_, err := os.Stat(dir)
		payload.Buckets = append(payload.Buckets, bucketPayload{
			Name:   b.String(),
			Path:   dir,
			Exists: err == nil,
		})
	}
	return payload
}

func observe(logger logrus.FieldLogger, m *metrics.Metrics, op, root, requestID string, removal cache.Removal) {
	m.ObserveRemoval(op, removal.NumFiles, removal.TotalBytes)
	logger.WithFields(logging.CacheFields(op, root, removal.NumFiles, removal.NumDirs, removal.TotalBytes)).
		WithField("request_id", requestID).
		Info("缓存维护完成")
}
