// Command docctl is the operator CLI for the docflow API.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

// cli carries the resolved settings shared by every subcommand.
type cli struct {
	configFile string
	settings   settings
	client     *client
	ui         *ui
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, newUI(os.Stdout, os.Stderr, outputText).err("[ERROR]"), err)
		os.Exit(1)
	}
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	c := &cli{}
	var (
		baseURL string
		output  string
	)

	root := &cobra.Command{
		Use:           "docctl",
		Short:         "docflow CLI",
		Long:          "docctl submits document batches to docflow and follows their progress.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadSettings(configPath(c.configFile))
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("base-url") {
				cfg.BaseURL = baseURL
			} else if v := strings.TrimSpace(os.Getenv(envBaseURL)); v != "" {
				cfg.BaseURL = v
			}
			if flags.Changed("output") {
				cfg.Output = output
			}

			switch cfg.Output {
			case "":
				cfg.Output = outputText
			case outputText, outputJSON, outputYAML:
			default:
				return fmt.Errorf("unknown output format %q", cfg.Output)
			}

			c.settings = cfg
			c.client = newClient(cfg.BaseURL, cfg.Timeout)
			c.ui = newUI(out, errOut, cfg.Output)
			return nil
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().StringVar(&c.configFile, "config", "", "Config file (default $DOCCTL_CONFIG or the user config dir)")
	root.PersistentFlags().StringVar(&baseURL, "base-url", defaultBaseURL, "docflow base URL")
	root.PersistentFlags().StringVarP(&output, "output", "o", outputText, "Output format: text, json or yaml")

	root.AddCommand(
		c.batchCmd("process", "/process/docx", "Normalize word documents"),
		c.batchCmd("embed", "/embed", "Index documents for search"),
		c.statusCmd(),
		c.waitCmd(),
		c.searchCmd(),
		c.downloadCmd(),
		c.configCmd(),
	)
	return root
}
