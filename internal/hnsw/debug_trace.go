//go:build hnswdebug

package hnsw

import "github.com/velesdb/veles/internal/obslog"

func init() {
	TraceHook = func(counter string) {
		obslog.Infof("hnsw: safety counter incremented: %s", counter)
	}
}
