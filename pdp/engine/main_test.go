// pdp/engine/main_test.go
package engine_test

import (
	"os"
	"testing"

	logger "github.com/sentra-labs/sentra/logging"
)

func TestMain(m *testing.M) {
	logger.InitLogger(os.TempDir())
	defer logger.Sync()
	os.Exit(m.Run())
}
