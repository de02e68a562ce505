package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gitlab.com/dirk.krummacker/location-contacts/pkg/client"
)

var (
	baseURL  string
	timeout  time.Duration
	interval time.Duration
)

var rootCmd = &cobra.Command{
	Use:          "wait-until-available",
	Short:        "Poll the service health check until it answers with 200",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		return waitUntilAvailable(ctx, client.New(baseURL, ""), interval)
	},
}

func init() {
	rootCmd.Flags().StringVar(&baseURL, "url", "http://localhost:8080", "base URL of the service")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "give up after this long")
	rootCmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "pause between attempts")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func waitUntilAvailable(ctx context.Context, c *client.Client, interval time.Duration) error {
	var waited time.Duration
	for {
		err := c.Healthy(ctx)
		if err == nil {
			fmt.Println("service is available")
			return nil
		}
		fmt.Println(err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("service not available after %v: %w", waited, err)
		case <-time.After(interval):
		}
		waited += interval
		fmt.Printf("Waiting %v\n", waited)
	}
}
