// Command jstimersdemo evaluates a JS file in an embedded runtime and
// prints its console output, exercising setTimeout/setInterval/
// setImmediate against the real timer scheduler described in spec.md —
// the worked example the root Engine/pool are built to support.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	jstimers "github.com/cryguy/jstimers"
	"github.com/cryguy/jstimers/internal/core"
	"github.com/cryguy/jstimers/internal/inspector"
)

func main() {
	scriptPath := flag.String("script", "", "path to a JS file to run")
	timeoutMS := flag.Int("timeout", 5000, "execution timeout in milliseconds")
	inspectAddr := flag.String("inspect", "", "if set, serve the inspector WebSocket bridge on this address (e.g. :9229)")
	flag.Parse()

	if *scriptPath == "" {
		fmt.Fprintln(os.Stderr, "usage: jstimersdemo -script <file.js> [-timeout ms] [-inspect addr]")
		os.Exit(2)
	}

	source, err := os.ReadFile(*scriptPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reading %s: %v\n", *scriptPath, err)
		os.Exit(1)
	}

	cfg := core.DefaultConfig()
	cfg.ExecutionTimeoutMS = *timeoutMS
	cfg.PoolSize = 1

	var bridge *inspector.Bridge
	if *inspectAddr != "" {
		bridge = &inspector.Bridge{}
		go func() {
			if err := http.ListenAndServe(*inspectAddr, bridge); err != nil {
				fmt.Fprintf(os.Stderr, "inspector bridge: %v\n", err)
			}
		}()
		fmt.Fprintf(os.Stderr, "inspector bridge listening on %s\n", *inspectAddr)
	}

	engine, err := jstimers.NewEngine(cfg, bridge)
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Shutdown()

	result := engine.Run(string(source))
	for _, entry := range result.Logs {
		fmt.Printf("[%s] %s\n", entry.Level, entry.Message)
	}

	if result.TimedOut {
		fmt.Fprintf(os.Stderr, "execution timed out after %v\n", result.Duration)
		os.Exit(1)
	}
	if result.Error != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", result.Error)
		os.Exit(1)
	}
}
