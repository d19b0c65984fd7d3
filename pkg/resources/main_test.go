package resources

import (
	"os"
	"testing"

	"github.com/kmirror-dev/kmirror/internal/testlog"
)

func TestMain(m *testing.M) {
	testlog.Setup()
	os.Exit(m.Run())
}
