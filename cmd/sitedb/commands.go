package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/olmmcc/sitedb/internal/store"
)

func newTablesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List the allowlisted tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tables := a.store.Tables()
			rs := make(store.ResultSet, 0, len(tables))
			for _, t := range tables {
				rs = append(rs, store.Row{store.NewString(t)})
			}
			return a.render([]string{"table"}, rs)
		},
	}
}

func newColumnsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "columns <table>",
		Short: "Describe the columns of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, err := a.store.Columns(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.render(columnHeaders[a.store.Dialect().Name], rs)
		},
	}
}

func newAllCmd(a *app) *cobra.Command {
	var ordered bool
	cmd := &cobra.Command{
		Use:   "all <table>",
		Short: "Print every row of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rs, err := a.store.GetAll(ctx, args[0], ordered)
			if err != nil {
				return err
			}
			return a.render(a.header(ctx, args[0], ""), rs)
		},
	}
	cmd.Flags().BoolVar(&ordered, "order", false, "sort rows by ascending id")
	return cmd
}

func newLikeCmd(a *app) *cobra.Command {
	var columns string
	cmd := &cobra.Command{
		Use:   "like <table> <column> <pattern>",
		Short: "Print rows whose column matches a LIKE pattern",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var (
				rs  store.ResultSet
				err error
			)
			if columns == "" {
				rs, err = a.store.GetLike(ctx, args[0], args[1], args[2])
			} else {
				rs, err = a.store.GetSomeLike(ctx, args[0], columns, args[1], args[2])
			}
			if err != nil {
				return err
			}
			return a.render(a.header(ctx, args[0], columns), rs)
		},
	}
	cmd.Flags().StringVar(&columns, "columns", "", "comma-separated `columns` to print instead of all")
	return cmd
}

func newSomeCmd(a *app) *cobra.Command {
	var where, like, null string
	cmd := &cobra.Command{
		Use:   "some <table> <columns>",
		Short: "Print selected columns of a table",
		Long: "Print selected columns of every row, of rows whose --where column " +
			"matches --like, or of rows whose --null column is NULL.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			table, columns := args[0], args[1]
			var (
				rs  store.ResultSet
				err error
			)
			switch {
			case null != "":
				rs, err = a.store.GetSomeNull(ctx, table, columns, null)
			case where != "":
				rs, err = a.store.GetSomeLike(ctx, table, columns, where, like)
			default:
				rs, err = a.store.GetSome(ctx, table, columns)
			}
			if err != nil {
				return err
			}
			return a.render(a.header(ctx, table, columns), rs)
		},
	}
	cmd.Flags().StringVar(&where, "where", "", "`column` to match against --like")
	cmd.Flags().StringVar(&like, "like", "", "LIKE `pattern` for --where")
	cmd.Flags().StringVar(&null, "null", "", "only rows where `column` is NULL")
	cmd.MarkFlagsRequiredTogether("where", "like")
	cmd.MarkFlagsMutuallyExclusive("where", "null")
	return cmd
}

func newExistsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "exists <table> <column> <pattern>",
		Short: "Report whether any row's column matches a LIKE pattern",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			found, err := a.store.Exists(cmd.Context(), args[0], args[1], args[2])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.stdout, found)
			return err
		},
	}
}

func newInsertCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "insert <table> <column=value>...",
		Short: "Insert one row; an empty value is stored as NULL",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			columns, values, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}
			res, err := a.store.Insert(cmd.Context(), args[0], columns, values)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(a.stdout, "%d rows inserted (last insert id %d)\n", res.RowsAffected, res.LastInsertID)
			return err
		},
	}
}

// parseAssignments splits column=value arguments. Only the first "=" splits,
// so values may contain "=".
func parseAssignments(args []string) (columns, values []string, err error) {
	columns = make([]string, 0, len(args))
	values = make([]string, 0, len(args))
	for _, arg := range args {
		column, value, ok := strings.Cut(arg, "=")
		if !ok || strings.TrimSpace(column) == "" {
			return nil, nil, fmt.Errorf("invalid assignment %q: want column=value", arg)
		}
		columns = append(columns, strings.TrimSpace(column))
		values = append(values, value)
	}
	return columns, values, nil
}

func newUpdateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "update <table> <where-column> <where-value> <column> <value>",
		Short: "Set one column on rows whose where-column equals where-value",
		Args:  cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.store.Update(cmd.Context(), args[0], args[1], args[2], args[3], args[4])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(a.stdout, "%d rows updated\n", n)
			return err
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <table> <where-column> <where-value>",
		Short: "Delete rows whose where-column equals where-value",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.store.Delete(cmd.Context(), args[0], args[1], args[2])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(a.stdout, "%d rows deleted\n", n)
			return err
		},
	}
}

func newMaxIDCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "max-id <table>",
		Short: "Print the largest id in a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.store.MaxID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.stdout, id)
			return err
		},
	}
}

func newMinIDCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "min-id <table>",
		Short: "Print the smallest id in a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.store.MinID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.stdout, id)
			return err
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the version number of sitedb",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNoSetup: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "sitedb %s (commit %s, built %s)\n", version, commit, date)
			return err
		},
	}
}
