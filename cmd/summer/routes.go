package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gravelight-studio/summer/router"
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Print the route table",
	Long: `Scan app.controller_path for @summer annotations, validate them and
print every route with its action and middleware.`,
	RunE: runRoutes,
}

func init() {
	rootCmd.AddCommand(routesCmd)
}

func runRoutes(cmd *cobra.Command, args []string) error {
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

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METHOD\tPATH\tACTION\tAUTH\tRATELIMIT\tCORS\tTIMEOUT")
	for _, a := range actions {
		ratelimit, cors, timeout := "-", "-", "-"
		if a.RateLimit != nil {
			ratelimit = a.RateLimit.Raw
		}
		if a.CORS != nil {
			cors = strings.Join(a.CORS.AllowedOrigins, ",")
		}
		if a.Timeout > 0 {
			timeout = a.Timeout.String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			a.Route.Method, cfg.Server.ContextPath+a.Route.Path, a.Key(),
			a.Auth.Type, ratelimit, cors, timeout)
	}
	return w.Flush()
}
