package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nhle/roundmail/internal/model"
	"github.com/nhle/roundmail/internal/people"
	"github.com/nhle/roundmail/internal/roundcube"
	"github.com/nhle/roundmail/internal/term"
	"github.com/nhle/roundmail/internal/theme"
	"github.com/nhle/roundmail/internal/ui"
)

func (r *root) searchCmd() *cobra.Command {
	var pick bool

	cmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Look up contacts through the address book autocomplete",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			typed := args[0]

			return r.withEnv(cmd.Context(), true, func(e *env) error {
				var result *model.SearchResult
				err := ui.WithSpinner(cmd.Context(), r.spinnerOut(), "Searching", func(ctx context.Context) error {
					var err error
					result, err = e.client.Search(ctx, typed)
					return err
				})
				if err != nil {
					return err
				}
				if result == nil && len([]rune(typed)) < roundcube.MinSearchLength {
					term.Debugf("Search terms shorter than %d characters are not sent.", roundcube.MinSearchLength)
				}

				result = people.WithTypedAddress(result, typed)

				if pick && r.opts.Interactive {
					chosen, err := ui.PickRecipients(result)
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(cmd.OutOrStdout(), people.FormatRecipients(chosen))
					return err
				}

				if result == nil {
					result = &model.SearchResult{Query: typed, Results: []model.SearchResultItem{}}
				}
				return r.render(cmd.OutOrStdout(), result, func(w io.Writer) error {
					return writeSearch(w, result)
				})
			})
		},
	}

	cmd.Flags().BoolVar(&pick, "pick", false, "choose recipients and print them as an address list")
	return cmd
}

func writeSearch(w io.Writer, result *model.SearchResult) error {
	if len(result.Results) == 0 {
		_, err := fmt.Fprintln(w, theme.HelpStyle.Render("No contacts found."))
		return err
	}
	for _, item := range result.Results {
		addr := people.Address(item)
		if addr == "" {
			addr = "-"
		}
		fmt.Fprintf(w, "%-40s %-30s %s\n", item.Label(), addr, theme.HelpStyle.Render(item.Type))
	}
	return nil
}
