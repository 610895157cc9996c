package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/maildeskhq/maildesk/internal/config"
	"github.com/maildeskhq/maildesk/internal/extract"
	"github.com/maildeskhq/maildesk/internal/pipeline"
	"github.com/maildeskhq/maildesk/pkg/models"
)

func buildRunCmd() *cobra.Command {
	var (
		configFile string
		mode       string
		itemID     string
	)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the processing pipeline once and wait for it to finish",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ctx := cmd.Context()
			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			done := make(chan models.PipelineEvent, 1)
			unsubscribe := a.bus.Subscribe(func(e models.PipelineEvent) {
				switch e.Type {
				case models.EventProgress:
					if e.Run != nil && e.Item != nil {
						fmt.Fprintf(cmd.OutOrStdout(), "[%d/%d] %s\n", e.Run.Processed, e.Run.Total, e.Item.ID)
					}
				case models.EventComplete, models.EventFatal:
					select {
					case done <- e:
					default:
					}
				}
			})
			defer unsubscribe()

			var job models.Job
			if itemID != "" {
				job, err = a.pipeline.StartSingle(ctx, itemID)
			} else {
				job, err = a.pipeline.StartBatch(ctx, models.JobMode(mode))
			}
			if err != nil {
				if errors.Is(err, pipeline.ErrItemNotFound) {
					return fmt.Errorf("item %q not found", itemID)
				}
				return err
			}
			if !job.Running {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to process")
				return nil
			}

			select {
			case e := <-done:
				if e.Type == models.EventFatal {
					return fmt.Errorf("run failed: %s", e.Error)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "done: %d processed, %d failed\n", e.Run.Processed, e.Run.Failed)
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}

	runCmd.Flags().StringVarP(&configFile, "config", "c", "", "path to config file")
	runCmd.Flags().StringVar(&mode, "mode", string(models.JobModeBatch), "run mode (batch or recalculate)")
	runCmd.Flags().StringVar(&itemID, "item", "", "process a single item by id")
	return runCmd
}

func buildStatusCmd() *cobra.Command {
	var addr string

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the pipeline status of a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := &http.Client{Timeout: 10 * time.Second}
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, addr+"/api/pipeline/status", nil)
			if err != nil {
				return err
			}
			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("query %s: %w", addr, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
				return fmt.Errorf("server returned %s: %s", resp.Status, body)
			}

			var job models.Job
			if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
				return fmt.Errorf("decode status: %w", err)
			}

			out := cmd.OutOrStdout()
			if !job.Running {
				fmt.Fprintln(out, "pipeline idle")
				return nil
			}
			fmt.Fprintf(out, "pipeline running (mode %s)\n", job.Mode)
			fmt.Fprintf(out, "  progress: %d/%d, %d failed\n", job.Processed, job.Total, job.Failed)
			if job.CurrentItemID != "" {
				fmt.Fprintf(out, "  current item: %s\n", job.CurrentItemID)
			}
			fmt.Fprintf(out, "  started: %s\n", job.StartedAt.Format(time.RFC3339))
			return nil
		},
	}

	statusCmd.Flags().StringVar(&addr, "addr", "http://localhost:8080", "server address")
	return statusCmd
}

func buildExtractCmd() *cobra.Command {
	extractCmd := &cobra.Command{
		Use:   "extract [file]",
		Short: "Run the fact extractor over a text file or stdin and print the result",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if len(args) == 1 {
				data, err = os.ReadFile(args[0])
			} else {
				data, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}

			result := extract.Parse(string(data))
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
	return extractCmd
}

func buildConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration helpers",
	}

	schemaCmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the configuration JSON schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := config.JSONSchema()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(schema))
			return nil
		},
	}

	var configFile string
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Parse the configuration file and report errors",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath(configFile)
			if path == "" {
				path = "maildesk.yaml"
			}
			if _, err := config.Load(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", path)
			return nil
		},
	}
	validateCmd.Flags().StringVarP(&configFile, "config", "c", "", "path to config file")

	configCmd.AddCommand(schemaCmd, validateCmd)
	return configCmd
}
