package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/stdutil/dashhttp"
	"github.com/stdutil/dashhttp/notify"
)

// printNotifier writes user notifications to w
type printNotifier struct {
	w io.Writer
}

func (p printNotifier) Error(msg string) {
	fmt.Fprintf(p.w, "error: %s\n", msg)
}

func newRequestCommand(load loader) *cobra.Command {
	var (
		widgetFile string
		globalFile string
		token      string
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "request",
		Short: "Assemble and send the request of a widget",
		Long: `Reads the widget request configuration and the dashboard-wide configuration
from JSON files ("-" reads stdin) and sends the assembled call. The response body
is written to stdout. With --dry-run the assembled call is printed instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				target dashhttp.RequestConfig
				global dashhttp.GlobalRequestConfig
			)
			if err := readJSON(cmd.InOrStdin(), widgetFile, &target); err != nil {
				return fmt.Errorf("widget: %w", err)
			}
			if globalFile != "" {
				if err := readJSON(cmd.InOrStdin(), globalFile, &global); err != nil {
					return fmt.Errorf("global: %w", err)
				}
			}
			if token == "" {
				token = os.Getenv("DASHHTTP_TOKEN")
			}

			a, err := load()
			if err != nil {
				return err
			}
			defer closeApp(a)

			asm := a.Assembler(printNotifier{w: cmd.ErrOrStderr()}, a.Store(token))
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")

			if dryRun {
				req, err := asm.Build(cmd.Context(), &target, &global)
				if err != nil {
					return err
				}
				if req == nil {
					fmt.Fprintln(cmd.ErrOrStderr(), "no request is due")
					return nil
				}
				return enc.Encode(a.Describe(req))
			}

			resp, err := asm.Customize(cmd.Context(), &target, &global)
			if err != nil {
				var se *dashhttp.StatusError
				if errors.As(err, &se) {
					_, _ = cmd.OutOrStdout().Write(se.Body)
				}
				return err
			}
			if resp == nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "no request is due")
				return nil
			}
			_, err = cmd.OutOrStdout().Write(resp.Body)
			return err
		},
	}
	cmd.Flags().StringVarP(&widgetFile, "widget", "w", "", "Widget request configuration JSON file")
	cmd.Flags().StringVarP(&globalFile, "global", "g", "", "Dashboard request configuration JSON file")
	cmd.Flags().StringVar(&token, "token", "", "Session JWT for the jwt session backend, defaults to $DASHHTTP_TOKEN")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the assembled request without sending it")
	_ = cmd.MarkFlagRequired("widget")
	return cmd
}

func readJSON(stdin io.Reader, path string, v any) error {
	var (
		b   []byte
		err error
	)
	if path == "-" {
		b, err = io.ReadAll(stdin)
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

var _ notify.Notifier = printNotifier{}
