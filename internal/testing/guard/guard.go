// Package guard enables test mode for binaries when imported from tests.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("WATEROPS_TEST_MODE") == "" {
			_ = os.Setenv("WATEROPS_TEST_MODE", "1")
		}
	})
}
