package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

// ensureTestMode flags the process as a test run so app.InTestMode holds
// and no main function tries to reach Postgres or Redis. Test packages
// blank-import this package to get the init side effect.
func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("VERSA_TEST_MODE", "1")
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
