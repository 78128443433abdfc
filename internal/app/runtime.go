package app

import (
	"os"
	"sync"
	"sync/atomic"
)

// testModeEnv short-circuits the binaries' main functions under `go test`,
// where no Postgres or Redis is available. The testing package sets it.
const testModeEnv = "VERSA_TEST_MODE"

var (
	testModeFlag atomic.Bool
	testModeOnce sync.Once
)

func detectTestMode() {
	testModeFlag.Store(os.Getenv(testModeEnv) == "1")
}

// InTestMode reports whether startup side effects should be skipped.
func InTestMode() bool {
	testModeOnce.Do(detectTestMode)
	return testModeFlag.Load()
}

// RefreshTestMode re-reads the flag after the environment changes.
func RefreshTestMode() {
	detectTestMode()
}
