package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gitlab.com/dirk.krummacker/location-contacts/internal/config"
	"gitlab.com/dirk.krummacker/location-contacts/internal/service"
	"gitlab.com/dirk.krummacker/location-contacts/internal/store"
)

var (
	configFile string
	sampleUser string
)

var rootCmd = &cobra.Command{
	Use:   "migration",
	Short: "Manage the contacts database",
	Long: `Creates the contacts schema and loads sample data.

Usage examples on the command line:
  > DBHOST=localhost:3306 DBUSER=dirk DBPWD=bullo92 go run main.go up
  > DBHOST=localhost:3306 DBUSER=dirk DBPWD=bullo92 go run main.go sample --user user_2abc`,
	SilenceUsage: true,
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Create the contacts table and its indexes if they do not exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		contacts, closeDB, err := openStore()
		if err != nil {
			return err
		}
		defer closeDB()
		if err := contacts.InitializeSchema(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("schema is up to date")
		return nil
	},
}

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Insert the demo contacts for a user, skipping those already present",
	RunE: func(cmd *cobra.Command, args []string) error {
		contacts, closeDB, err := openStore()
		if err != nil {
			return err
		}
		defer closeDB()
		if err := contacts.InitializeSchema(cmd.Context()); err != nil {
			return err
		}
		inserted, err := insertSamples(cmd.Context(), contacts, sampleUser)
		if err != nil {
			return err
		}
		fmt.Printf("inserted %d of %d sample contacts for %s\n", inserted, len(sampleContacts), sampleUser)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file")
	sampleCmd.Flags().StringVar(&sampleUser, "user", "user_demo123", "id of the user who owns the sample contacts")
	rootCmd.AddCommand(upCmd, sampleCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func openStore() (*store.ContactStore, func(), error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}
	db, err := service.CreateDatabase(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return store.New(db), func() { db.Close() }, nil
}
