package main

import (
	"errors"
	"strings"

	"github.com/hyperjump/insurepal/internal/cli"
	"github.com/hyperjump/insurepal/internal/client"
	"github.com/hyperjump/insurepal/internal/tui"
	"github.com/spf13/cobra"
)

// buildQuestion joins the remaining arguments so multi-word questions work
// with or without quotes.
func buildQuestion(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// failed reports whether a result string from UploadAndQuery is a failure message.
func failed(result string) bool {
	return result == client.MsgNoDocument ||
		strings.HasPrefix(result, client.UploadFailedPfx) ||
		strings.HasPrefix(result, client.QueryFailedPfx)
}

func newUICmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ui",
		Short: "Open the interactive query form",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			backend, err := opts.backendURL()
			if err != nil {
				return err
			}
			return tui.Run(client.New(backend))
		},
	}
}

func newAskCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <file> <question>",
		Short: "Upload a document and ask one question about it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.ParseOutputFormat(opts.output)
			if err != nil {
				return err
			}
			backend, err := opts.backendURL()
			if err != nil {
				return err
			}
			question := buildQuestion(args[1:])
			result := client.New(backend).UploadAndQuery(cmd.Context(), args[0], question)
			if failed(result) {
				return errors.New(result)
			}
			return cli.WriteAnswer(cmd.OutOrStdout(), question, result, format)
		},
	}
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show server, ledger and vector store status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := cli.ParseOutputFormat(opts.output)
			if err != nil {
				return err
			}
			backend, err := opts.backendURL()
			if err != nil {
				return err
			}
			status, err := client.New(backend).Status(cmd.Context())
			if err != nil {
				return err
			}
			return cli.WriteStatus(cmd.OutOrStdout(), status, format)
		},
	}
}

func newDocumentsCmd(opts *rootOptions) *cobra.Command {
	var (
		namespace     string
		offset, limit int
	)
	cmd := &cobra.Command{
		Use:   "documents",
		Short: "List uploaded documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := cli.ParseOutputFormat(opts.output)
			if err != nil {
				return err
			}
			backend, err := opts.backendURL()
			if err != nil {
				return err
			}
			docs, err := client.New(backend).Documents(cmd.Context(), namespace, offset, limit)
			if err != nil {
				return err
			}
			return cli.WriteDocuments(cmd.OutOrStdout(), docs, format)
		},
	}
	cmd.Flags().StringVar(&namespace, "namespace", "", "namespace to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of documents to skip")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of documents")
	return cmd
}
