// Command riskcast generates audited shipping-risk decisions and verifies
// the audit ledger behind them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "riskcast:", err)
		stop()
		os.Exit(1)
	}
}
