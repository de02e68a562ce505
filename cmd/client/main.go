package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gitlab.com/dirk.krummacker/location-contacts/pkg/client"
	"gitlab.com/dirk.krummacker/location-contacts/pkg/model"
)

var (
	serviceURL string
	token      string
	sizes      []int
)

var rootCmd = &cobra.Command{
	Use:   "client",
	Short: "Talk to the contacts service",
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure the response times of the contacts service",
	Long: `Creates, reads, updates, searches and deletes contacts in loops of growing size and prints
the mean duration of each request type in microseconds.

Usage example on the command line:
  > go run main.go bench --url http://localhost:8080 --token eyJhbGciOi...`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return bench(cmd.Context(), client.New(serviceURL, token))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serviceURL, "url", "http://localhost:8080", "base URL of the service")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("CONTACTS_TOKEN"), "bearer token of the user")
	benchCmd.Flags().IntSliceVar(&sizes, "sizes", []int{100, 500, 1000, 5000}, "number of requests per round")
	rootCmd.AddCommand(benchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func ptr[T any](v T) *T {
	return &v
}

// randomContact places a contact somewhere within a few kilometers of Fullerton.
func randomContact() model.NewContact {
	return model.NewContact{
		FirstName:    ptr("Marcus"),
		LastName:     ptr("Antonius"),
		PhoneNumber:  ptr("+39 999 777 555"),
		Latitude:     ptr(33.8703 + (rand.Float64()-0.5)*0.1),
		Longitude:    ptr(-117.9243 + (rand.Float64()-0.5)*0.1),
		LocationName: ptr("Forum Romanum"),
	}
}

func bench(ctx context.Context, c *client.Client) error {
	fmt.Println()
	fmt.Println("  Elements      POST     PATCH       GET      LIST      NEAR    DELETE ")
	fmt.Println("-----------------------------------------------------------------------")
	for _, loops := range sizes {
		fmt.Printf("%10d", loops)

		ids := make([]string, 0, loops)
		var duration time.Duration
		for i := 0; i < loops; i++ {
			before := time.Now()
			contact, err := c.CreateContact(ctx, randomContact())
			if err != nil {
				return err
			}
			duration += time.Since(before)
			ids = append(ids, contact.Id)
		}
		printMean(duration, loops)

		err := callInLoop(ids, func(id string) error {
			_, err := c.UpdateContact(ctx, id, model.ContactPatch{Notes: ptr("updated by the benchmark")})
			return err
		})
		if err != nil {
			return err
		}
		err = callInLoop(ids, func(id string) error {
			_, err := c.GetContact(ctx, id)
			return err
		})
		if err != nil {
			return err
		}
		err = callTimes(10, func() error {
			_, err := c.ListContacts(ctx)
			return err
		})
		if err != nil {
			return err
		}
		err = callTimes(10, func() error {
			_, err := c.ListNear(ctx, 33.8703, -117.9243, 0)
			return err
		})
		if err != nil {
			return err
		}
		err = callInLoop(ids, func(id string) error {
			return c.DeleteContact(ctx, id)
		})
		if err != nil {
			return err
		}
		fmt.Println()
	}
	return nil
}

// callInLoop calls f once per id, in random order.
func callInLoop(ids []string, f func(id string) error) error {
	shuffled := make([]string, len(ids))
	copy(shuffled, ids)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	var duration time.Duration
	for _, id := range shuffled {
		before := time.Now()
		if err := f(id); err != nil {
			return err
		}
		duration += time.Since(before)
	}
	printMean(duration, len(shuffled))
	return nil
}

func callTimes(n int, f func() error) error {
	var duration time.Duration
	for i := 0; i < n; i++ {
		before := time.Now()
		if err := f(); err != nil {
			return err
		}
		duration += time.Since(before)
	}
	printMean(duration, n)
	return nil
}

func printMean(total time.Duration, n int) {
	if n == 0 {
		fmt.Printf("%10s", "-")
		return
	}
	fmt.Printf("%10d", total.Microseconds()/int64(n))
}
