package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/artifact-cache/internal/cache"
	"github.com/any-hub/artifact-cache/internal/resolver"
	"github.com/any-hub/artifact-cache/internal/version"
)

// DefaultIndexURL 为 PyPI 主站。
const DefaultIndexURL = "https://pypi.org"

// ErrPackageNotFound 表示索引中不存在该包（HTTP 404），不会重试。
var ErrPackageNotFound = errors.New("package not found in index")

// Registry 抽象包索引：拉取版本表与下载分发包。
type Registry interface {
	Versions(ctx context.Context, name string) (*resolver.VersionMap, error)
	Download(ctx context.Context, dist *resolver.Dist, dir string) error
}

// HTTPRegistry 基于 PyPI JSON API 实现 Registry。
type HTTPRegistry struct {
	indexURL       string
	client         *http.Client
	maxRetries     int
	initialBackoff time.Duration
	logger         logrus.FieldLogger
}

// RegistryOptions 控制 HTTPRegistry 的重试与超时。
type RegistryOptions struct {
	IndexURL       string
	Client         *http.Client
	MaxRetries     int
	InitialBackoff time.Duration
	Logger         logrus.FieldLogger
}

// NewHTTPRegistry 创建 HTTPRegistry，零值字段使用默认值。
func NewHTTPRegistry(opts RegistryOptions) *HTTPRegistry {
	if opts.IndexURL == "" {
		opts.IndexURL = DefaultIndexURL
	}
	if opts.Client == nil {
		opts.Client = NewUpstreamClient(0)
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 200 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &HTTPRegistry{
		indexURL:       strings.TrimRight(opts.IndexURL, "/"),
		client:         opts.Client,
		maxRetries:     opts.MaxRetries,
		initialBackoff: opts.InitialBackoff,
		logger:         opts.Logger,
	}
}

type pypiProject struct {
	Info struct {
		Name string `json:"name"`
	} `json:"info"`
	Releases map[string][]pypiFile `json:"releases"`
}

type pypiFile struct {
	Filename    string `json:"filename"`
	URL         string `json:"url"`
	PackageType string `json:"packagetype"`
	Yanked      bool   `json:"yanked"`
}

// Versions 拉取 {IndexURL}/pypi/{name}/json 并构造版本表。无法解析的版本号被跳过，
// 同一版本优先选择 wheel。
func (r *HTTPRegistry) Versions(ctx context.Context, name string) (*resolver.VersionMap, error) {
	name = cache.NormalizePackageName(name)
	endpoint := fmt.Sprintf("%s/pypi/%s/json", r.indexURL, url.PathEscape(name))

	var project pypiProject
	err := r.do(ctx, endpoint, func(body io.Reader) error {
		project = pypiProject{}
		return json.NewDecoder(body).Decode(&project)
	})
	if err != nil {
		return nil, err
	}

	vm := resolver.NewVersionMap()
	var skipped []string
	for raw, files := range project.Releases {
		v, err := resolver.ParseVersion(raw)
		if err != nil {
			skipped = append(skipped, raw)
			continue
		}
		file, ok := pickFile(files)
		if !ok {
			continue
		}
		kind := resolver.DistKindSource
		if file.PackageType == "bdist_wheel" {
			kind = resolver.DistKindWheel
		}
		vm.Insert(&resolver.Dist{
			Name:     name,
			Version:  v,
			Filename: file.Filename,
			URL:      file.URL,
			Kind:     kind,
			Yanked:   file.Yanked,
		})
	}
	if len(skipped) > 0 {
		sort.Strings(skipped)
		r.logger.WithFields(logrus.Fields{
			"package":  name,
			"skipped":  len(skipped),
			"versions": skipped,
		}).Debug("跳过无法解析的版本")
	}
	return vm, nil
}

func pickFile(files []pypiFile) (pypiFile, bool) {
	for _, f := range files {
		if f.PackageType == "bdist_wheel" {
			return f, true
		}
	}
	for _, f := range files {
		if f.PackageType == "sdist" {
			return f, true
		}
	}
	return pypiFile{}, false
}

// Download 将 dist.URL 下载到 dir/dist.Filename。
func (r *HTTPRegistry) Download(ctx context.Context, dist *resolver.Dist, dir string) error {
	if dist.URL == "" || dist.Filename == "" {
		return fmt.Errorf("download %s: missing url or filename", dist.PackageID())
	}
	target := filepath.Join(dir, filepath.Base(dist.Filename))
	return r.do(ctx, dist.URL, func(body io.Reader) error {
		f, err := os.Create(target)
		if err != nil {
			return err
		}
		if _, err := io.Copy(f, body); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	})
}

// do 执行带重试的 GET：404 与上下文取消不重试，其余错误按指数退避重试 MaxRetries 次。
func (r *HTTPRegistry) do(ctx context.Context, endpoint string, consume func(io.Reader) error) error {
	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("User-Agent", version.UserAgent())
			req.Header.Set("Accept", "application/json")

			resp, err := r.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			switch {
			case resp.StatusCode == http.StatusNotFound:
				return retry.Unrecoverable(fmt.Errorf("%s: %w", endpoint, ErrPackageNotFound))
			case resp.StatusCode >= 400:
				return fmt.Errorf("%s: upstream status %d", endpoint, resp.StatusCode)
			}
			return consume(resp.Body)
		},
		retry.Attempts(uint(r.maxRetries)+1),
		retry.Delay(r.initialBackoff),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return retry.IsRecoverable(err) && ctx.Err() == nil
		}),
		retry.OnRetry(func(n uint, err error) {
			r.logger.WithFields(logrus.Fields{
				"url":     endpoint,
				"attempt": n + 1,
				"error":   err.Error(),
			}).Warn("上游请求失败，准备重试")
		}),
		retry.Context(ctx),
	)
}
