package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gravelight-studio/summer/database"
)

var sqlFile string

var sqlCmd = &cobra.Command{
	Use:   "sql",
	Short: "Execute a SQL file against the datasource",
	Long: `Execute a SQL file against the jdbc.* datasource, one statement per
line. Blank lines and lines starting with -- are skipped.`,
	RunE: runSQL,
}

func init() {
	rootCmd.AddCommand(sqlCmd)
	sqlCmd.Flags().StringVar(&sqlFile, "file", "", "SQL file to execute (required)")
	_ = sqlCmd.MarkFlagRequired("file")
}

func runSQL(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{
		Driver:   cfg.JDBC.Driver,
		URL:      cfg.JDBC.URL,
		Username: cfg.JDBC.Username,
		Password: cfg.JDBC.Password,
		MaxConns: cfg.JDBC.MaxConns,
	}, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := db.ExecFile(ctx, sqlFile)
	if err != nil {
		return err
	}

	fmt.Printf("Executed %d statements from %s\n", n, sqlFile)
	return nil
}
