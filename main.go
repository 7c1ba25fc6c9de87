package main

import (
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/sxg-gateway/sxg-gateway/internal/config"
	"github.com/sxg-gateway/sxg-gateway/internal/fetch"
	"github.com/sxg-gateway/sxg-gateway/internal/logging"
	"github.com/sxg-gateway/sxg-gateway/internal/proxy"
	"github.com/sxg-gateway/sxg-gateway/internal/server"
	"github.com/sxg-gateway/sxg-gateway/internal/server/routes"
	"github.com/sxg-gateway/sxg-gateway/internal/storage"
	"github.com/sxg-gateway/sxg-gateway/internal/sxg"
	"github.com/sxg-gateway/sxg-gateway/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	backend     string
	bindAddr    string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}
	applyCLIOverrides(cfg, opts)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stdErr, "配置校验失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["backend"] = cfg.Backend
		fields["html_host"] = cfg.Signing.HtmlHost
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// 启动顺序遵循“配置 → 签名工作器 → 共享客户端 → 存储 → Fiber server”，
	// 三个进程级单例（工作器、HTTPS 客户端、反代客户端）初始化后全程只读。
	worker, err := sxg.New(cfg.Signing)
	if err != nil {
		fmt.Fprintf(stdErr, "加载证书材料失败: %v\n", err)
		return 1
	}

	backendURL, err := url.Parse(cfg.Backend)
	if err != nil {
		fmt.Fprintf(stdErr, "解析后端地址失败: %v\n", err)
		return 1
	}

	store, err := storage.NewFileStore(cfg.Global.StoragePath)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化存储目录失败: %v\n", err)
		return 1
	}

	httpClient := server.NewUpstreamClient(cfg)
	fetcher := fetch.NewHTTPSFetcher(httpClient)
	proxyClient := fetch.NewReverseProxy(httpClient)
	dispatcher := proxy.NewHandler(worker, backendURL, fetcher, proxyClient, store, logger)

	fields := logging.BaseFields("startup", opts.configPath)
	fields["backend"] = cfg.Backend
	fields["html_host"] = cfg.Signing.HtmlHost
	fields["bind_addr"] = cfg.Global.BindAddr
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(cfg, dispatcher, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("sxg-gateway", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		backend    string
		bindAddr   string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 SXG_GATEWAY_CONFIG 覆盖）")
	fs.StringVar(&backend, "backend", "", "后端 origin（scheme://host[:port]），覆盖配置文件中的 Backend")
	fs.StringVar(&bindAddr, "bind-addr", "", "监听地址（ip:port），覆盖配置文件中的 BindAddr")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("SXG_GATEWAY_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		backend:     backend,
		bindAddr:    bindAddr,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

// applyCLIOverrides 让 -backend/-bind-addr 优先于配置文件。
func applyCLIOverrides(cfg *config.Config, opts cliOptions) {
	if opts.backend != "" {
		cfg.Backend = opts.backend
	}
	if opts.bindAddr != "" {
		cfg.Global.BindAddr = opts.bindAddr
	}
}

func startHTTPServer(cfg *config.Config, dispatcher server.Dispatcher, logger *logrus.Logger) error {
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Dispatcher: dispatcher,
	})
	if err != nil {
		return err
	}
	routes.RegisterDiagnosticsRoutes(app)

	logger.WithFields(logrus.Fields{
		"action":    "listen",
		"bind_addr": cfg.Global.BindAddr,
	}).Info("Fiber 服务启动")

	return app.Listen(cfg.Global.BindAddr)
}
