package call

import (
	"context"
	"fmt"
	"github.com/spf13/cobra"
	"strings"
	"time"
)

var (
	echoCmd = &cobra.Command{
		Use:   "echo [value...]",
		Short: "Sends the values to the echo service, one call per value",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return callConcurrently(cmd.Context(), args, rpcClient.Echo)
		},
	}
	delayCmd = &cobra.Command{
		Use:   "delay [value...]",
		Short: "Sends the values to the delay service, responses may complete in any order",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return callConcurrently(cmd.Context(), args, rpcClient.Delay)
		},
	}
)

type result struct {
	value    string
	err      error
	duration time.Duration
}

// callConcurrently issues one call per value on the shared connection
// and prints the results in argument order
func callConcurrently(ctx context.Context, values []string, call func(context.Context, []byte) ([]byte, error)) error {
	if ctx == nil {
		ctx = context.Background()
	}

	results := make([]chan result, len(values))
	for i, v := range values {
		results[i] = make(chan result, 1)
		go func(v string, out chan<- result) {
			start := time.Now()
			resp, err := call(ctx, []byte(v))
			out <- result{value: string(resp), err: err, duration: time.Since(start)}
		}(v, results[i])
	}

	var failed []string
	for i, ch := range results {
		r := <-ch
		if r.err != nil {
			fmt.Printf("%-20s error: %v\n", values[i], r.err)
			failed = append(failed, values[i])
			continue
		}
		fmt.Printf("%-20s -> %s (%s)\n", values[i], r.value, r.duration)
	}

	if len(failed) > 0 {
		return fmt.Errorf("%d of %d calls failed: %s", len(failed), len(values), strings.Join(failed, ", "))
	}
	return nil
}
