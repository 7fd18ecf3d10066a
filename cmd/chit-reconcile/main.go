// chit-reconcile compares each chit's paid count, gold weight and embedded
// payment history with its payment rows, optionally rebuilding the drifted
// ones.
//
// Usage:
//
//	go run ./cmd/chit-reconcile --business-id shop-1 [--repair]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mmdatafocus/jewelry_pos/config"
	"github.com/mmdatafocus/jewelry_pos/utils"
	"github.com/mmdatafocus/jewelry_pos/workflow"
)

func main() {
	businessID := flag.String("business-id", "", "Required: business id")
	repair := flag.Bool("repair", false, "Rebuild drifted chits from their payments")
	flag.Parse()

	if strings.TrimSpace(*businessID) == "" {
		fmt.Fprintln(os.Stderr, "--business-id is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := config.GetLogger()

	ctx := utils.SessionContext(context.Background(), *businessID, 0, "Reconcile")
	drifts, err := workflow.ReconcileChits(ctx, logger, *businessID, *repair)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reconcile failed: %v\n", err)
		os.Exit(1)
	}
	for _, d := range drifts {
		state := "drift"
		if d.Repaired {
			state = "repaired"
		}
		fmt.Printf("%s %s\n", state, d)
	}
	fmt.Printf("%d chits drifted\n", len(drifts))
	if len(drifts) > 0 && !*repair {
		os.Exit(3)
	}
}
