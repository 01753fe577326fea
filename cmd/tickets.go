package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/dealdesk/internal/crm"
)

var (
	ticketsOwner string
	ticketsLimit int
	ownersEmail  string
)

var ticketsCmd = &cobra.Command{
	Use:   "tickets",
	Short: "Query tickets",
}

var ticketsSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "List tickets, optionally for one owner",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context(), "api")
		if err != nil {
			return err
		}
		defer env.Close()

		tickets, err := env.Service.SearchTickets(cmd.Context(), crm.TicketSearchOptions{
			OwnerID: ticketsOwner,
			Limit:   ticketsLimit,
		})
		if err != nil {
			return eris.Wrap(err, "search tickets")
		}
		return newPrinter(cmd.OutOrStdout()).Print(tickets)
	},
}

var ticketStagesCmd = &cobra.Command{
	Use:   "stages",
	Short: "List ticket stages of the default ticket pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context(), "api")
		if err != nil {
			return err
		}
		defer env.Close()

		return newPrinter(cmd.OutOrStdout()).Print(env.Service.TicketStages(cmd.Context()))
	},
}

var ownersCmd = &cobra.Command{
	Use:   "owners",
	Short: "List HubSpot owners, or resolve one with --email",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context(), "api")
		if err != nil {
			return err
		}
		defer env.Close()

		p := newPrinter(cmd.OutOrStdout())
		if ownersEmail != "" {
			id := env.Service.FindOwnerIDByEmail(cmd.Context(), ownersEmail)
			if id == "" {
				return eris.Errorf("no owner with email %s", ownersEmail)
			}
			return p.Print(map[string]string{"id": id, "email": ownersEmail})
		}
		return p.Print(env.Service.Owners(cmd.Context()))
	},
}

func init() {
	ticketsSearchCmd.Flags().StringVar(&ticketsOwner, "owner", "", "owner id to filter by")
	ticketsSearchCmd.Flags().IntVar(&ticketsLimit, "limit", 100, "page size")
	ownersCmd.Flags().StringVar(&ownersEmail, "email", "", "print only the owner id for this email")

	ticketsCmd.AddCommand(ticketsSearchCmd, ticketStagesCmd)
	rootCmd.AddCommand(ticketsCmd, ownersCmd)
}
