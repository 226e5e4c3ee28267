package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/boddenberg/crm-farol-bfa/internal/domain"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newTablesCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "tables [table]",
		Short: "List the whitelisted datasets, or the clientes of one dataset",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				names, err := a.admin.AllClientes(ctx, args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(out, names)
				}
				for _, n := range names {
					fmt.Fprintln(out, n)
				}
				return nil
			}

			tables, err := a.admin.AllTables(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(out, tables)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TABLE\tDISPLAY NAME")
			for _, t := range tables {
				fmt.Fprintf(tw, "%s\t%s\n", t.TableName, t.DisplayName)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func newUsersCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "users",
		Short: "List user profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := a.admin.AllUsers(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, users)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "USER ID\tEMAIL\tROLE\tACTIVE\tDEFAULT\tALLOWED")
			for _, u := range users {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\t%s\n",
					u.UserID, deref(u.Email), u.Role, u.IsActive, deref(u.DefaultTable), strings.Join(u.AllowedTables, ","))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func newInviteCmd(a *app) *cobra.Command {
	var req domain.CreateUserRequest
	var role string

	cmd := &cobra.Command{
		Use:   "invite <email>",
		Short: "Invite a user by e-mail and create its profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Email = args[0]
			req.Role = domain.Role(role)

			resp, err := a.admin.ProvisionUser(cmd.Context(), &req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "invited %s (%s): tables=%s default=%s\n",
				resp.Email, resp.UserID, strings.Join(resp.AllowedTables, ","), resp.DefaultTable)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", string(domain.RoleCliente), "superadmin, gestor, admin or cliente")
	cmd.Flags().StringVar(&req.Nome, "nome", "", "display name")
	cmd.Flags().StringVar(&req.Telefone, "telefone", "", "phone number")
	cmd.Flags().StringSliceVar(&req.Orgs, "org", nil, "organization (repeatable, the first one is the primary)")
	cmd.Flags().StringSliceVar(&req.AllowedTables, "table", nil, "dataset to allow (repeatable)")
	cmd.Flags().StringVar(&req.DefaultTable, "default-table", "", "default dataset")
	return cmd
}

func newSetActiveCmd(a *app) *cobra.Command {
	var active bool

	cmd := &cobra.Command{
		Use:   "set-active <user-id>",
		Short: "Enable or disable a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := uuid.Parse(args[0]); err != nil {
				return fmt.Errorf("invalid user id %q: %w", args[0], err)
			}
			if err := a.admin.UpdateActive(cmd.Context(), args[0], active); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is_active=%t\n", args[0], active)
			return nil
		},
	}
	cmd.Flags().BoolVar(&active, "active", true, "new value of is_active")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
