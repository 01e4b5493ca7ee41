package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/vinayprograms/taskagent/internal/llm"
)

// catalogTimeout bounds the catwalk catalog fetch.
const catalogTimeout = 30 * time.Second

// runModels prints the model catalog, optionally filtered to one
// provider.
func runModels(cmd ModelsCmd) error {
	ctx, cancel := context.WithTimeout(context.Background(), catalogTimeout)
	defer cancel()

	models, err := llm.ListAllModels(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PROVIDER\tMODEL\tCONTEXT\t$/1M IN\t$/1M OUT")

	count := 0
	for _, m := range models {
		if cmd.Provider != "" && m.Provider != cmd.Provider {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\t%.2f\n",
			m.Provider, m.ID, m.ContextWindow, m.CostPer1MIn, m.CostPer1MOut)
		count++
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if count == 0 && cmd.Provider != "" {
		return fmt.Errorf("no models found for provider %q", cmd.Provider)
	}
	return nil
}
