// Command server boots the web-proxy-api request orchestration engine:
// config, logging, the token-file cache, credential pools, provider
// adapters, the model registry, the dispatcher, and the gin HTTP surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jellyfish-p/web-proxy-api/internal/api"
	"github.com/jellyfish-p/web-proxy-api/internal/config"
	"github.com/jellyfish-p/web-proxy-api/internal/credpool"
	"github.com/jellyfish-p/web-proxy-api/internal/credrepo"
	"github.com/jellyfish-p/web-proxy-api/internal/dispatcher"
	"github.com/jellyfish-p/web-proxy-api/internal/executor/deepseek"
	"github.com/jellyfish-p/web-proxy-api/internal/executor/grok"
	"github.com/jellyfish-p/web-proxy-api/internal/executor/reserved"
	"github.com/jellyfish-p/web-proxy-api/internal/logging"
	"github.com/jellyfish-p/web-proxy-api/internal/proxypool"
	"github.com/jellyfish-p/web-proxy-api/internal/registry"
	"github.com/jellyfish-p/web-proxy-api/internal/tokencache"
)

var (
	configFile = flag.String("config", "config.yaml", "path to config.yaml")
	logLevel   = flag.String("log-level", "info", "log level: debug, info, warn, error")
	logFile    = flag.String("log-file", "", "optional log file path (rotated via lumberjack)")
	addr       = flag.String("addr", ":8787", "listen address")
	wasmPath   = flag.String("wasm-path", "", "path to the DeepSeek PoW WASM module (overrides config)")
)

func main() {
	flag.Parse()

	logging.Setup(logging.Options{Level: *logLevel, FilePath: *logFile})

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	cache := tokencache.New("accounts")
	pool := credpool.New()
	reg := registry.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.ProjectEnabled("deepseek") {
		registerDeepSeek(cfg, pool, cache, reg, *wasmPath)
	}
	var grokProxy *proxypool.Pool
	if cfg.ProjectEnabled("grok") {
		grokProxy = registerGrok(ctx, cfg, cache, reg)
	}
	reg.Register("claude", reserved.Claude().AsExecutor())
	reg.Register("kimi", reserved.Kimi().AsExecutor())

	disp := dispatcher.New(reg)
	ingress := api.NewIngressHandlers(cfg, disp, reg)
	mgmt := api.NewManagementHandlers(cfg, cache, grokProxy)
	media := api.NewMediaHandlers("data/temp")
	router := api.NewRouter(ingress, mgmt, media)

	srv := &http.Server{Addr: *addr, Handler: router}

	go func() {
		log.Infof("listening on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	waitForShutdown(srv, cancel)
}

func registerDeepSeek(cfg *config.Config, pool *credpool.Selector, cache *tokencache.Cache, reg *registry.Registry, wasmOverride string) {
	path := cfg.DeepSeek.WasmPath
	if wasmOverride != "" {
		path = wasmOverride
	}
	wasmBytes, err := os.ReadFile(path)
	if err != nil {
		log.Errorf("deepseek: read wasm module %s: %v (deepseek adapter disabled)", path, err)
		return
	}

	repo := credrepo.NewFileRepo(cache, "deepseek")
	adapter, err := deepseek.New(cfg.DeepSeek, pool, repo, wasmBytes, cfg.HasKey)
	if err != nil {
		log.Errorf("deepseek: init adapter: %v (deepseek adapter disabled)", err)
		return
	}

	names, err := repo.List()
	if err != nil {
		log.Warnf("deepseek: list credentials: %v", err)
	}
	adapter.RegisterCredentials(names)

	reg.Register("deepseek", adapter.AsExecutor())
	log.Infof("deepseek adapter registered with %d credential(s)", len(names))
}

func registerGrok(ctx context.Context, cfg *config.Config, cache *tokencache.Cache, reg *registry.Registry) *proxypool.Pool {
	repo := credrepo.NewSingleFileRepo(cache, "grok", "token.json")
	store := grok.NewStore(repo)
	adapter := grok.New(cfg.Grok, store)

	adapter.StartRefresher(ctx)
	reg.Register("grok", adapter.AsExecutor())
	log.Info("grok adapter registered")
	return adapter.ProxyPool()
}

func waitForShutdown(srv *http.Server, cancelBackground context.CancelFunc) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("shutting down")
	cancelBackground()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("server shutdown: %v", err)
	}
	fmt.Println("shutdown complete")
}
