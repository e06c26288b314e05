package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"expenselog/internal/core"
	"expenselog/internal/log"
	"expenselog/internal/report"
	"expenselog/internal/services"
	"expenselog/internal/store"
	"expenselog/internal/store/csvfile"
)

const (
	formatCSV  = "csv"
	formatXLSX = "xlsx"
)

// fileFormat returns flag when set, otherwise guesses from the extension.
func fileFormat(flag, path string) (string, error) {
	f := strings.ToLower(flag)
	if f == "" {
		if strings.EqualFold(filepath.Ext(path), ".xlsx") {
			return formatXLSX, nil
		}
		return formatCSV, nil
	}
	if f != formatCSV && f != formatXLSX {
		return "", fmt.Errorf("unknown format %q: use csv or xlsx", flag)
	}
	return f, nil
}

func newImportCmd(e *env) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Append the rows of a CSV or XLSX file to the table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := fileFormat(format, args[0])
			if err != nil {
				return err
			}
			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()

			var rows []core.Row
			if f == formatXLSX {
				rows, err = report.ReadRows(file)
			} else {
				rows, err = csvfile.ReadRows(file)
			}
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			res, err := e.svc.Import(cmd.Context(), rows)
			if errors.Is(err, core.ErrNoValidRecords) {
				return fmt.Errorf("nothing to import: no row of %s is valid", args[0])
			}
			if err != nil {
				return fmt.Errorf("import: %w", err)
			}
			e.logger.Info("Imported records",
				log.NewFields().WithOperation(log.OpImport).WithWrite(res.Saved, res.Dropped, res.Total).ToSlice()...)

			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d row(s), skipped %d, table now has %d\n", res.Saved, res.Dropped, res.Total)
			warn(cmd, res)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "csv or xlsx (default: from the file extension)")
	return needsBackend(cmd)
}

func newExportCmd(e *env) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "export FILE",
		Short: "Write the table to a CSV file or an XLSX workbook with charts",
		Long:  "Write the table to FILE. Use - for standard output.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := fileFormat(format, args[0])
			if err != nil {
				return err
			}
			rows, err := e.svc.Rows(cmd.Context())
			if err != nil {
				return fmt.Errorf("load records: %w", err)
			}

			write := func(w io.Writer) error { return e.write(cmd, w, f, rows) }
			if args[0] == "-" {
				err = write(cmd.OutOrStdout())
			} else {
				var file *os.File
				if file, err = os.Create(args[0]); err != nil {
					return err
				}
				err = writeAndClose(file, write)
			}
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			e.logger.Info("Exported records",
				log.FieldOperation, log.OpExport,
				log.FieldRecords, len(rows),
				"format", f)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "csv or xlsx (default: from the file extension)")
	return needsBackend(cmd)
}

// writeAndClose runs write against wc and always closes it. A close error is
// returned when the write itself succeeded.
func writeAndClose(wc io.WriteCloser, write func(io.Writer) error) error {
	err := write(wc)
	if cerr := wc.Close(); err == nil {
		err = cerr
	}
	return err
}

func (e *env) write(cmd *cobra.Command, w io.Writer, format string, rows []core.Row) error {
	if format == formatCSV {
		return csvfile.WriteRows(w, rows)
	}
	sum, err := e.svc.Summary(cmd.Context(), e.today(), services.PeriodAll)
	if err != nil {
		return fmt.Errorf("load summary: %w", err)
	}
	return report.WriteWorkbook(w, rows, sum)
}

func newMirrorCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Copy the whole table between the backend and its mirror",
	}
	run := func(name string, op func(*cobra.Command) (int, error)) *cobra.Command {
		return needsBackend(&cobra.Command{
			Use:  name,
			Args: cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if e.res.Mirror == nil {
					return errors.New("no mirror configured: set MIRROR_TO")
				}
				n, err := op(cmd)
				if err != nil {
					return fmt.Errorf("mirror %s: %w", name, err)
				}
				e.logger.Info("Mirror copy done",
					log.FieldOperation, log.OpMirror,
					"direction", name,
					log.FieldRecords, n)
				fmt.Fprintf(cmd.OutOrStdout(), "Copied %d row(s)\n", n)
				return nil
			},
		})
	}
	push := run("push", func(cmd *cobra.Command) (int, error) { return e.res.Mirror.Push(cmd.Context()) })
	push.Short = "Overwrite the mirror with the local table"
	pull := run("pull", func(cmd *cobra.Command) (int, error) { return e.res.Mirror.Pull(cmd.Context()) })
	pull.Short = "Overwrite the local table with the mirror"
	cmd.AddCommand(push, pull)
	return cmd
}

func newCategoriesCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List or add categories",
	}
	list := needsBackend(&cobra.Command{
		Use:   "list",
		Short: "Print the category list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cats, err := e.svc.Categories(cmd.Context())
			if err != nil {
				return err
			}
			for _, c := range cats {
				fmt.Fprintln(cmd.OutOrStdout(), c)
			}
			return nil
		},
	})
	add := needsBackend(&cobra.Command{
		Use:   "add NAME",
		Short: "Add a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := e.svc.AddCategory(cmd.Context(), args[0])
			if errors.Is(err, store.ErrDuplicateCategory) {
				return fmt.Errorf("category %q already exists", args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", core.NormalizeCategory(args[0]))
			return nil
		},
	})
	cmd.AddCommand(list, add)
	return cmd
}

func warn(cmd *cobra.Command, res services.Result) {
	if res.Warning != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", res.Warning)
	}
}
