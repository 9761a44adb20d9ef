package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "riskcast",
		Short: "Decision intelligence for shipping disruption risk",
		Long: `riskcast turns a risk signal, observed reality and a customer's shipments
into a decision answering what is happening, when, how severe it is, why,
what to do, how confident the system is and what waiting costs.

Every attempt is recorded in a hash-chained audit ledger. Configuration is
read from RISKCAST_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newDecideCmd(), newVerifyCmd(), newMigrateCmd())
	return root
}
