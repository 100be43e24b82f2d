package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hospitaldata/explorer/internal/auth"
	"github.com/hospitaldata/explorer/internal/explorer"
	"github.com/hospitaldata/explorer/internal/explorer/service"
	"github.com/hospitaldata/explorer/pkg/logger"
	"github.com/spf13/cobra"
)

var (
	updateClear []string

	aggKind    string
	aggGroupBy string
	aggField   string
	aggValue   string
	aggOrder   string

	tokenSecret  string
	tokenSubject string
	tokenTTL     time.Duration
)

var collectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "List the browsable collections",
	Args:  cobra.NoArgs,
	RunE: withService(func(ctx context.Context, cmd *cobra.Command, svc service.Service, args []string) error {
		for _, name := range svc.Collections(ctx) {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	}),
}

var attributesCmd = &cobra.Command{
	Use:   "attributes <collection>",
	Short: "List the attribute names of a collection",
	Args:  cobra.ExactArgs(1),
	RunE: withService(func(ctx context.Context, cmd *cobra.Command, svc service.Service, args []string) error {
		attrs, err := svc.ListAttributes(ctx, args[0])
		if err != nil {
			return failure(err, explorer.MsgQueryFailed)
		}
		for _, a := range attrs {
			fmt.Fprintln(cmd.OutOrStdout(), a)
		}
		return nil
	}),
}

var findCmd = &cobra.Command{
	Use:   "find <collection> [field=value...]",
	Short: "Find documents whose fields equal the given values",
	Args:  cobra.MinimumNArgs(1),
	RunE: withService(func(ctx context.Context, cmd *cobra.Command, svc service.Service, args []string) error {
		query, err := parseAssignments(args[1:])
		if err != nil {
			return err
		}
		docs, err := svc.Find(ctx, args[0], query)
		if err != nil {
			return failure(err, explorer.MsgQueryFailed)
		}
		printTable(cmd.OutOrStdout(), "Query Result:", explorer.NewTable(docs))
		return nil
	}),
}

var insertCmd = &cobra.Command{
	Use:   "insert <collection> field=value...",
	Short: "Insert one document",
	Args:  cobra.MinimumNArgs(1),
	RunE: withService(func(ctx context.Context, cmd *cobra.Command, svc service.Service, args []string) error {
		fields, err := parseAssignments(args[1:])
		if err != nil {
			return err
		}
		res, err := svc.Insert(ctx, args[0], fields)
		if err != nil || !res.Acknowledged {
			return failure(err, explorer.MsgInsertFailed)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (_id %s)\n", explorer.MsgInserted, res.ID)
		return nil
	}),
}

var deleteCmd = &cobra.Command{
	Use:   "delete <collection> <id>",
	Short: "Delete the document with the given _id",
	Args:  cobra.ExactArgs(2),
	RunE: withService(func(ctx context.Context, cmd *cobra.Command, svc service.Service, args []string) error {
		ok, err := svc.Delete(ctx, args[0], args[1])
		if err != nil || !ok {
			return failure(err, explorer.MsgDeleteFailed)
		}
		fmt.Fprintln(cmd.OutOrStdout(), explorer.MsgDeleted)
		return nil
	}),
}

var updateCmd = &cobra.Command{
	Use:   "update <collection> <id> [field=value...]",
	Short: "Set fields on the document with the given _id",
	Long: `Set fields on the document with the given _id. Assignments with an empty
value leave the field unchanged; use --clear to set a field to the empty string.`,
	Args: cobra.MinimumNArgs(2),
	RunE: withService(func(ctx context.Context, cmd *cobra.Command, svc service.Service, args []string) error {
		fields, err := parseAssignments(args[2:])
		if err != nil {
			return err
		}
		ok, err := svc.Update(ctx, args[0], args[1], explorer.UpdateRequest{Fields: fields, Clear: updateClear})
		if err != nil || !ok {
			return failure(err, explorer.MsgUpdateFailed)
		}
		fmt.Fprintln(cmd.OutOrStdout(), explorer.MsgUpdated)
		return nil
	}),
}

var aggregateCmd = &cobra.Command{
	Use:   "aggregate <collection>",
	Short: "Run a count, sum, average, match or sort aggregation",
	Args:  cobra.ExactArgs(1),
	RunE: withService(func(ctx context.Context, cmd *cobra.Command, svc service.Service, args []string) error {
		rows, err := svc.Aggregate(ctx, args[0], explorer.AggregateRequest{
			Kind:    explorer.AggregateKind(aggKind),
			GroupBy: aggGroupBy,
			Field:   aggField,
			Value:   aggValue,
			Order:   aggOrder,
		})
		if err != nil {
			return failure(err, explorer.MsgQueryFailed)
		}
		printTable(cmd.OutOrStdout(), "Aggregation Result:", explorer.NewTable(rows))
		return nil
	}),
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an HS256 bearer token for the mutating API routes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		secret := tokenSecret
		if secret == "" {
			secret = os.Getenv("JWT_SECRET")
		}
		tok, err := auth.IssueToken(secret, tokenSubject, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	updateCmd.Flags().StringSliceVar(&updateClear, "clear", nil, "Fields to set to the empty string")

	aggregateCmd.Flags().StringVar(&aggKind, "kind", string(explorer.AggregateCount), "count|sum|average|match|sort")
	aggregateCmd.Flags().StringVar(&aggGroupBy, "group-by", "", "Field to group by (count, sum, average)")
	aggregateCmd.Flags().StringVar(&aggField, "field", "", "Field to sum, average, match or sort by")
	aggregateCmd.Flags().StringVar(&aggValue, "value", "", "Value to match")
	aggregateCmd.Flags().StringVar(&aggOrder, "order", "asc", "Sort order: asc|desc")

	tokenCmd.Flags().StringVar(&tokenSecret, "secret", "", "Signing secret (default: JWT_SECRET)")
	tokenCmd.Flags().StringVar(&tokenSubject, "sub", "explorer-cli", "Token subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "Token lifetime")

	rootCmd.AddCommand(collectionsCmd, attributesCmd, findCmd, insertCmd, deleteCmd, updateCmd, aggregateCmd, tokenCmd)
}

type serviceRunE func(ctx context.Context, cmd *cobra.Command, svc service.Service, args []string) error

// withService opens the store for the duration of one command.
func withService(run serviceRunE) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		svc, closeFn, err := openService(ctx)
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		defer closeFn()
		return run(ctx, cmd, svc, args)
	}
}

// failure maps an operation error to what the user sees: malformed
// identifiers verbatim, everything else as the generic message.
func failure(err error, msg string) error {
	if errors.Is(err, explorer.ErrInvalidIdentifier) {
		return err
	}
	if err != nil {
		logger.Debugf("%s: %v", msg, err)
	}
	return errors.New(msg)
}

// parseAssignments turns field=value arguments into a map. The value may be empty.
func parseAssignments(args []string) (map[string]string, error) {
	out := make(map[string]string, len(args))
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("expected field=value, got %q", a)
		}
		out[k] = v
	}
	return out, nil
}
