package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"gentree/application/commands"
	"gentree/domain/core/entities"
	"gentree/infrastructure/di"
	"gentree/pkg/auth"
)

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write the tree snapshot as JSON to a file or stdout.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTree(cmd, func(c *di.Container, out io.Writer) error {
				data, err := c.Tree.ExportSnapshot()
				if err != nil {
					return fmt.Errorf("export: %w", err)
				}
				if len(args) == 0 {
					_, err = fmt.Fprintln(out, string(data))
					return err
				}
				if err := os.WriteFile(args[0], data, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", args[0], err)
				}
				fmt.Fprintf(out, "Exported %d persons to %s\n", c.Tree.Stats().Persons, args[0])
				return nil
			})
		},
	}
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the stored tree with a snapshot file.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			return withTree(cmd, func(c *di.Container, out io.Writer) error {
				if err := c.CommandBus.Send(cmd.Context(), commands.ImportTreeCommand{Data: data}); err != nil {
					return err
				}
				st := c.Tree.Stats()
				fmt.Fprintf(out, "Imported %d persons (%d parent links, %d spouse links)\n",
					st.Persons, st.ParentChildEdges, st.SpouseEdges)
				return nil
			})
		},
	}
}

func newListCmd() *cobra.Command {
	var (
		query  string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List persons, optionally filtered by name.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTree(cmd, func(c *di.Container, out io.Writer) error {
				persons := c.Tree.Persons()
				if query != "" {
					persons = c.Tree.SearchPersons(query)
				}
				return printPersons(out, persons, asJSON)
			})
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "case-insensitive name filter")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func newRootsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "roots",
		Short: "List persons without recorded parents.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTree(cmd, func(c *di.Container, out io.Writer) error {
				return printPersons(out, c.Tree.RootCandidates(), asJSON)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print tree counts.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTree(cmd, func(c *di.Container, out io.Writer) error {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(c.Tree.Stats())
			})
		},
	}
}

func newTokenCmd() *cobra.Command {
	var (
		userID string
		roles  []string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign an API access token with the configured secret.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			token, err := auth.GenerateToken(cfg.JWTSecret, cfg.JWTIssuer, userID, roles, ttl)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user ID placed in the token")
	cmd.Flags().StringSliceVar(&roles, "roles", nil, "comma separated roles")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func printPersons(out io.Writer, persons []entities.Person, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(persons)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tDATES\tPARENTS\tSPOUSES")
	for _, p := range persons {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n",
			p.ID,
			entities.DisplayName(p),
			entities.FormatDisplayDates(p.BirthDateISO, p.DeathDateISO),
			len(p.ParentIDs),
			len(p.SpouseIDs),
		)
	}
	return tw.Flush()
}
