// Command innosupps runs the job API and workers.
//
//	innosupps serve            # HTTP API, plus workers with --with-worker
//	innosupps worker           # workers and sweeps only
//	innosupps migrate          # apply store migrations
//	innosupps enqueue FN       # queue one job
//	innosupps stats            # print queue counts
//	innosupps token            # mint a bearer token for local use
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
