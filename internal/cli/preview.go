package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func previewCmd(opts *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Evaluate instances and print the rendered report without sending it",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case "card", "email", "text":
			default:
				return fmt.Errorf("unknown format %q: want card, email or text", format)
			}

			ctx := cmd.Context()
			a, err := opts.app(ctx)
			if err != nil {
				return err
			}
			defer a.Log.Sync()

			_, rendered, err := a.Module.Preview(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch format {
			case "email":
				fmt.Fprintln(out, rendered.Email.HTML)
			case "text":
				fmt.Fprintf(out, "Subject: %s\n\n%s", rendered.Subject, rendered.Email.Text)
			default:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rendered.Cards)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "card", "output format: card, email or text")
	return cmd
}
