//go:build gops
// +build gops

package diagnostics

import (
	"net/http"
	_ "net/http/pprof"
	"os"
	"runtime"
	"strconv"

	log "github.com/apex/log"
	"github.com/google/gops/agent"
)

func init() {
	ctx := log.WithField("context", "diagnostics")

	if err := agent.Listen(agent.Options{}); err != nil {
		ctx.Fatal(err.Error())
	}

	pprofRequired := false

	if vals := os.Getenv("BLOCK_PROFILE_RATE"); vals != "" {
		val, err := strconv.Atoi(vals)

		if err != nil {
			ctx.Fatalf("Invalid value for block profile rate: %s", vals)
		}

		runtime.SetBlockProfileRate(val)
		pprofRequired = true
		ctx.Info("Block profiling enabled")
	}

	if vals := os.Getenv("MUTEX_PROFILE_FRACTION"); vals != "" {
		val, err := strconv.Atoi(vals)

		if err != nil {
			ctx.Fatalf("Invalid value for mutex profile fraction: %s", vals)
		}

		runtime.SetMutexProfileFraction(val)
		pprofRequired = true
		ctx.Info("Mutex profiling enabled")
	}

	// Block and mutex profiles are not supported by gops
	if pprofRequired {
		addr := os.Getenv("PPROF_ADDR")

		if addr == "" {
			addr = "localhost:6060"
		}

		go func() {
			ctx.Infof("Serving pprof at %s", addr)
			http.ListenAndServe(addr, nil) // nolint:errcheck,gosec
		}()
	}
}
