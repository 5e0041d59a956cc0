package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	clientsCmd = &cobra.Command{
		Use:   "clients",
		Short: "Inspect and manage registered clients",
	}

	clientsListCmd = &cobra.Command{
		Use:   "list",
		Short: "List all registered clients",
		RunE:  runClientsList,
	}

	clientsDeactivateCmd = &cobra.Command{
		Use:   "deactivate <client_id>",
		Short: "Deactivate a client, freeing active capacity",
		Long: `Clears the is_active flag on a client record. The record itself stays
in the vault and its name remains reserved.`,
		Args: cobra.ExactArgs(1),
		RunE: runClientsDeactivate,
	}
)

func init() {
	clientsCmd.AddCommand(clientsListCmd)
	clientsCmd.AddCommand(clientsDeactivateCmd)
}

func runClientsList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}

	clients, err := st.Clients().ListClients(cmd.Context())
	if err != nil {
		return fmt.Errorf("reading vault: %w", err)
	}
	if len(clients) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No registered clients.")
		return nil
	}

	ids := make([]string, 0, len(clients))
	for id := range clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CLIENT ID\tNAME\tACTIVE\tSCOPES\tCREATED")
	for _, id := range ids {
		c := clients[id]
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\n",
			c.ClientID,
			c.ClientName,
			c.IsActive,
			strings.Join(c.AllowedScopes, ","),
			c.CreatedAt.Format(time.RFC3339),
		)
	}
	return w.Flush()
}

func runClientsDeactivate(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}

	clientID := args[0]
	if err := st.Clients().DeactivateClient(cmd.Context(), clientID); err != nil {
		return fmt.Errorf("deactivating client: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Client %s deactivated.\n", clientID)
	return nil
}
