/*
Copyright 2024

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sammedchougule/stocker-ingest/export"
	"github.com/sammedchougule/stocker-ingest/feed"
	"github.com/sammedchougule/stocker-ingest/ingest"
	"github.com/sammedchougule/stocker-ingest/store"
)

var cfgFile string

// rootCmd runs one ingestion cycle: fetch the feed, normalize, upsert into
// the quote tables, optionally export snapshots to parquet.
var rootCmd = &cobra.Command{
	Use:   "stocker-ingest",
	Short: "Ingest the stock quote feed into the stocker database",
	Long: `Fetch the external quote feed, normalize it into reference,
snapshot and historical records, and upsert them into the stocker database.
Re-running against the same feed is idempotent.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		feedURL := viper.GetString("feed.url")
		if feedURL == "" {
			log.Fatal().Msg("feed.url must be configured")
		}
		client := feed.NewClient(feedURL, viper.GetDuration("feed.timeout"))

		var gateway ingest.Gateway
		if dsn := viper.GetString("database.url"); dsn != "" {
			st, err := store.New(ctx, dsn, store.Config{})
			if err != nil {
				log.Fatal().Err(err).Msg("could not connect to database")
			}
			defer st.Close()
			gateway = st
		} else {
			log.Warn().Msg("database.url not set; running a dry-run cycle")
		}

		opts := []ingest.Option{}
		if fn := viper.GetString("parquet_file"); fn != "" {
			opts = append(opts, ingest.WithSnapshotSink(func(records []store.SnapshotRecord) error {
				return export.SaveToParquet(records, fn)
			}))
		}

		orch := ingest.New(client, gateway, opts...)
		report := orch.RunCycle(ctx)

		out, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(out))

		if report.Outcome == ingest.OutcomeFailed {
			os.Exit(1)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	cobra.OnInitialize(initLog)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is stocker-ingest.toml)")
	rootCmd.PersistentFlags().Bool("log.json", false, "print logs as json to stderr")
	viper.BindPFlag("log.json", rootCmd.PersistentFlags().Lookup("log.json"))

	rootCmd.PersistentFlags().String("feed-url", "", "URL of the quote feed endpoint")
	viper.BindPFlag("feed.url", rootCmd.PersistentFlags().Lookup("feed-url"))

	rootCmd.PersistentFlags().Duration("feed-timeout", 0, "timeout for one feed request (default 30s)")
	viper.BindPFlag("feed.timeout", rootCmd.PersistentFlags().Lookup("feed-timeout"))

	rootCmd.PersistentFlags().StringP("database-url", "d", "", "DSN for database connection")
	viper.BindPFlag("database.url", rootCmd.PersistentFlags().Lookup("database-url"))

	// Local flags
	rootCmd.Flags().String("parquet-file", "", "save snapshot records to parquet")
	viper.BindPFlag("parquet_file", rootCmd.Flags().Lookup("parquet-file"))
}

func initLog() {
	if !viper.GetBool("log.json") {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".stocker-ingest" (without extension).
		viper.AddConfigPath("/etc/stocker-ingest/")
		viper.AddConfigPath(fmt.Sprintf("%s/.stocker-ingest", home))
		viper.AddConfigPath(".")
		viper.SetConfigType("toml")
		viper.SetConfigName("stocker-ingest")
	}

	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		log.Debug().Str("ConfigFile", viper.ConfigFileUsed()).Msg("Loaded config file")
	} else {
		log.Error().Err(err).Msg("error reading config file")
	}
}
