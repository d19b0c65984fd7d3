package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-logr/logr"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
	klog "k8s.io/klog/v2"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/kmirror-dev/kmirror/internal/cluster"
	"github.com/kmirror-dev/kmirror/internal/ui"
	"github.com/kmirror-dev/kmirror/pkg/appconfig"
	"github.com/kmirror-dev/kmirror/pkg/kubeconfig"
	"github.com/kmirror-dev/kmirror/pkg/mirror"
	"github.com/kmirror-dev/kmirror/pkg/resources"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version information")
		help        = flag.Bool("help", false, "Show help information")
		contextName = flag.String("context", "", "Cluster context to connect to (default: kubeconfig current-context)")
		verbosity   = flag.Int("v", 0, "Log verbosity")
	)
	flag.Parse()

	if *help {
		showHelp()
		return
	}
	if *showVersion {
		showVersionInfo()
		return
	}

	if err := run(*contextName, *verbosity); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the live client, the mirror engine, and the TUI together. The TUI
// owns stdout, so all logging goes to a rotating file under ~/.kmirror.
func run(contextName string, verbosity int) error {
	logger, err := setupLogging(verbosity)
	if err != nil {
		return err
	}
	logger.Info("starting", "version", version)

	cfg, err := appconfig.Load()
	if err != nil {
		logger.Error(err, "loading config, continuing with defaults")
	}

	kube := kubeconfig.NewManager()
	if err := kube.Discover(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := cluster.NewPool(10 * time.Minute)
	pool.Start()
	defer pool.Stop()

	kinds := resources.NewKinds()
	client := resources.NewLive(kube, pool, kinds, logger)
	defer client.Close()

	engine := mirror.New(client, kinds, mirror.Options{Logger: logger})
	defer engine.Close()
	go engine.Run(ctx)

	app := ui.NewApp(ctx, engine, client, kinds, cfg, logger)
	if contextName == "" {
		contextName = kube.CurrentContext()
	}
	app.SetInitialContext(contextName)

	return ui.Run(ctx, app)
}

// setupLogging routes controller-runtime and klog (client-go) through one
// zap logger writing to a size-capped, rotated file.
func setupLogging(verbosity int) (logr.Logger, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return logr.Logger{}, err
	}
	dir := filepath.Join(home, ".kmirror")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return logr.Logger{}, err
	}
	sink := &lumberjack.Logger{
		Filename:   filepath.Join(dir, "kmirror.log"),
		MaxSize:    10, // MB
		MaxBackups: 3,
	}
	logger := zap.New(
		zap.WriteTo(sink),
		zap.Level(zapcore.Level(-verbosity)),
	)
	ctrl.SetLogger(logger)
	klog.SetLogger(logger)
	return logger, nil
}

func showHelp() {
	fmt.Println("kmirror - a live terminal mirror of Kubernetes resources")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  kmirror [flags]")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  -context    Cluster context to connect to")
	fmt.Println("  -v          Log verbosity")
	fmt.Println("  -version    Show version information")
	fmt.Println("  -help       Show this help message")
	fmt.Println()
	fmt.Println("Key Bindings:")
	fmt.Println("  F2 / k      Resource kind selector")
	fmt.Println("  n           Namespace scope")
	fmt.Println("  F9 / c      Cluster context selector")
	fmt.Println("  F3 / v      View resource YAML")
	fmt.Println("  F8 / d      Delete resource")
	fmt.Println("  s           Scale resource")
	fmt.Println("  r           Re-subscribe current kind")
	fmt.Println("  F10 / q     Quit")
	fmt.Println()
	fmt.Println("Navigation:")
	fmt.Println("  ↑/↓         Move selection")
	fmt.Println("  PgUp/PgDn   Page")
	fmt.Println("  Home/End    Jump to first/last")
}

func showVersionInfo() {
	fmt.Printf("kmirror version %s\n", version)
	fmt.Printf("Commit: %s\n", commit)
	fmt.Printf("Date: %s\n", date)
}
