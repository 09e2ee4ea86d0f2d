package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/gravelight-studio/summer/build"
	"github.com/gravelight-studio/summer/router"
)

var (
	openapiOut   string
	openapiTitle string
)

var openapiCmd = &cobra.Command{
	Use:   "openapi",
	Short: "Generate an OpenAPI document from the route table",
	RunE:  runOpenAPI,
}

func init() {
	rootCmd.AddCommand(openapiCmd)
	openapiCmd.Flags().StringVar(&openapiOut, "out", "", "Output file (default: stdout)")
	openapiCmd.Flags().StringVar(&openapiTitle, "title", "", "Document title")
}

func runOpenAPI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		return err
	}
	defer logger.Sync()

	actions, err := router.ScanControllers(cfg.App.ControllerPath, logger)
	if err != nil {
		return err
	}

	gen := build.NewOpenAPIGenerator(build.Config{
		Actions:     actions,
		Title:       openapiTitle,
		Version:     version,
		ContextPath: cfg.Server.ContextPath,
		Logger:      logger,
	})

	if openapiOut == "" {
		return gen.Write(os.Stdout)
	}
	return gen.WriteFile(openapiOut)
}
