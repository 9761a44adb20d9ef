package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"riskcast/internal/orchestrator"
	"riskcast/internal/platform/config"
)

func newDecideCmd() *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "decide [--input request.json]",
		Short: "Generate decisions for one request or a JSON array of requests",
		Long: `Reads a request {"signal":..., "reality":..., "context":...} or an array of
them from --input (default stdin), runs each decision attempt and writes the
results as JSON to stdout. Arrays are processed concurrently up to
RISKCAST_BATCH_LIMIT attempts at a time.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := readInput(cmd.InOrStdin(), input)
			if err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.close()

			return a.runWithStream(cmd.Context(), func(ctx context.Context) error {
				return a.decide(ctx, raw, cmd.OutOrStdout())
			})
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "request file (default stdin)")
	return cmd
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

type batchItem struct {
	Result *orchestrator.Result `json:"result,omitempty"`
	Error  string               `json:"error,omitempty"`
}

func (a *app) decide(ctx context.Context, raw []byte, out io.Writer) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var reqs []orchestrator.Request
		if err := json.Unmarshal(trimmed, &reqs); err != nil {
			return fmt.Errorf("decoding requests: %w", err)
		}
		results := a.service.GenerateBatch(ctx, reqs, a.cfg.Engine.BatchLimit)
		items := make([]batchItem, len(results))
		failed := 0
		for i, r := range results {
			items[i].Result = r.Result
			if r.Err != nil {
				items[i].Error = r.Err.Error()
				failed++
			}
		}
		if err := enc.Encode(items); err != nil {
			return err
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d attempts failed", failed, len(results))
		}
		return nil
	}

	var req orchestrator.Request
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return fmt.Errorf("decoding request: %w", err)
	}
	res, err := a.service.Generate(ctx, req)
	if err != nil {
		return err
	}
	return enc.Encode(res)
}
