package testlog

import (
	"io"
	"os"

	"github.com/go-logr/logr"
	klog "k8s.io/klog/v2"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
)

// Setup configures controller-runtime and klog to share one logr and returns
// it for test subjects that take a logger. Output is discarded unless DEBUG
// is set, in which case a dev-mode zap logger writes to stderr.
func Setup() logr.Logger {
	logger := zap.New(zap.UseDevMode(true))
	if os.Getenv("DEBUG") == "" {
		logger = zap.New(zap.WriteTo(io.Discard))
	}
	ctrl.SetLogger(logger)
	// klog is what client-go logs through; point it at the same sink
	klog.SetLogger(ctrl.Log)
	return logger
}
