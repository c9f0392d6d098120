package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"toolgate/internal/domain"
	"toolgate/internal/infra/audit"
)

func newAuditCommand(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit ledger",
	}
	cmd.AddCommand(newAuditListCommand(opts))
	cmd.AddCommand(newAuditShowCommand(opts))
	cmd.AddCommand(newAuditPendingCommand(opts))
	return cmd
}

func openAuditStore(opts *cliOptions) (*audit.BoltStore, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	if cfg.Audit.Path == "" {
		return nil, exitWith(2, "config: audit.path is required")
	}
	store, err := audit.OpenBoltStore(cfg.Audit.Path)
	if err != nil {
		return nil, exitWith(2, err.Error())
	}
	return store, nil
}

func newAuditListCommand(opts *cliOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent audit records, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openAuditStore(opts)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printRecords(records, opts.jsonOutput)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum records to print")
	return cmd
}

func newAuditShowCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <record-id>",
		Short: "Show one audit record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openAuditStore(opts)
			if err != nil {
				return err
			}
			defer store.Close()

			record, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				if domain.CodeOf(err) == domain.CodeNotFound {
					return exitWith(3, fmt.Sprintf("audit record %s not found", args[0]))
				}
				return err
			}
			if opts.jsonOutput {
				return writeJSON(record)
			}
			return writeYAML(record)
		},
	}
}

func newAuditPendingCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List records still open, likely from in-flight or crashed calls",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openAuditStore(opts)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.ListPending(cmd.Context())
			if err != nil {
				return err
			}
			return printRecords(records, opts.jsonOutput)
		},
	}
}

func printRecords(records []domain.AuditRecord, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(records)
	}
	if len(records) == 0 {
		fmt.Println("no audit records")
		return nil
	}
	for _, record := range records {
		errText := ""
		if record.Error != "" {
			errText = " error=" + record.Error
		}
		fmt.Printf("%s  %-8s %-12s %-24s user=%s %s%s\n",
			record.CreatedAt.Format(time.RFC3339),
			record.Status,
			record.Action,
			record.ToolName,
			record.UserID,
			record.ID,
			errText)
	}
	return nil
}
