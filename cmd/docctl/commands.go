package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/phrazzld/docflow/internal/api"
)

// errTaskFailed makes the exit status reflect a FAILED task.
var errTaskFailed = errors.New("task failed")

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid document id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *cli) batchCmd(name, path, short string) *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:     name + " <id>...",
		Short:   short,
		Example: "docctl " + name + " 12 13 14 --wait",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}

			var taskID string
			err = c.ui.spin("Submitting batch...", func() error {
				taskID, err = c.client.submit(cmd.Context(), path, ids)
				return err
			})
			if err != nil {
				return err
			}

			if !wait {
				return c.ui.render(api.TaskAcceptedResponse{TaskID: taskID}, func(w io.Writer) {
					fmt.Fprintf(w, "%s task %s accepted\n", c.ui.ok("[OK]"), taskID)
				})
			}
			return c.follow(cmd.Context(), taskID, len(ids))
		},
	}
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait for the task to finish")
	return cmd
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <task-id>",
		Short: "Show the status of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var st api.TaskStatusResponse
			err := c.ui.spin("Fetching task...", func() error {
				var err error
				st, err = c.client.status(cmd.Context(), args[0])
				return err
			})
			if err != nil {
				return err
			}
			return c.ui.printStatus(st)
		},
	}
}

func (c *cli) waitCmd() *cobra.Command {
	var total int

	cmd := &cobra.Command{
		Use:   "wait <task-id>",
		Short: "Poll a task until it completes or fails",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.follow(cmd.Context(), args[0], total)
		},
	}
	cmd.Flags().IntVar(&total, "items", 0, "Number of items in the batch, for the progress bar")
	return cmd
}

// follow polls taskID until it leaves PROCESSING and prints the final status.
func (c *cli) follow(ctx context.Context, taskID string, total int) error {
	bar := c.ui.progress(total, "Processing")
	ticker := time.NewTicker(c.settings.PollInterval)
	defer ticker.Stop()

	for {
		st, err := c.client.status(ctx, taskID)
		if err != nil {
			return err
		}
		_ = bar.Set(len(st.Results))

		if st.Status != "PROCESSING" {
			_ = bar.Finish()
			if err := c.ui.printStatus(st); err != nil {
				return err
			}
			if st.Status == "FAILED" {
				return fmt.Errorf("%w: %s", errTaskFailed, st.Message)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *cli) searchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a similarity search over embedded documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw json.RawMessage
			err := c.ui.spin("Searching...", func() error {
				var err error
				raw, err = c.client.search(cmd.Context(), args[0], limit)
				return err
			})
			if err != nil {
				return err
			}

			var v any
			if err := json.Unmarshal(raw, &v); err != nil {
				return fmt.Errorf("failed to decode search results: %w", err)
			}
			return c.ui.render(v, func(w io.Writer) {
				fmt.Fprintln(w, string(raw))
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of results")
	return cmd
}

func (c *cli) downloadCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "download <id>...",
		Short: "Download documents as a zip archive",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}

			dir := "."
			if outPath != "" {
				dir = filepath.Dir(outPath)
			}
			tmp, err := os.CreateTemp(dir, ".docctl-*.zip")
			if err != nil {
				return err
			}
			defer func() { _ = os.Remove(tmp.Name()) }()

			var name string
			err = c.ui.spin("Downloading archive...", func() error {
				name, err = c.client.downloadBatch(cmd.Context(), ids, tmp)
				return err
			})
			if closeErr := tmp.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				return err
			}

			target := outPath
			if target == "" {
				target = filepath.Base(name)
			}
			if target == "" || target == "." || target == "/" {
				target = "docflow.zip"
			}
			if err := os.Rename(tmp.Name(), target); err != nil {
				return err
			}

			return c.ui.render(map[string]string{"file": target}, func(w io.Writer) {
				fmt.Fprintf(w, "%s saved %s\n", c.ui.ok("[OK]"), target)
			})
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "f", "", "Destination file (default: name chosen by the server)")
	return cmd
}

func (c *cli) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or save CLI settings",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		RunE: func(_ *cobra.Command, _ []string) error {
			return c.ui.render(c.settings, func(w io.Writer) {
				fmt.Fprintf(w, "%s %s\n", c.ui.dim("baseUrl:"), c.settings.BaseURL)
				fmt.Fprintf(w, "%s %s\n", c.ui.dim("output:"), c.settings.Output)
				fmt.Fprintf(w, "%s %s\n", c.ui.dim("timeout:"), c.settings.Timeout)
				fmt.Fprintf(w, "%s %s\n", c.ui.dim("pollInterval:"), c.settings.PollInterval)
			})
		},
	}

	save := &cobra.Command{
		Use:   "save",
		Short: "Write the effective settings to the config file",
		RunE: func(_ *cobra.Command, _ []string) error {
			path := configPath(c.configFile)
			if err := saveSettings(c.settings, path); err != nil {
				return err
			}
			fmt.Fprintf(c.ui.out, "%s wrote %s\n", c.ui.ok("[OK]"), path)
			return nil
		},
	}

	cmd.AddCommand(show, save)
	return cmd
}
