package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/comanda-app/api/internal/client"
	"github.com/comanda-app/api/internal/session"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	loginEmail    string
	loginPassword string

	ordersStatus string
	ordersType   string
	ordersLimit  int

	payMethod string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		password := loginPassword
		if password == "" {
			password = os.Getenv("COMANDA_PASSWORD")
		}

		s, err := a.manager.SignIn(cmd.Context(), loginEmail, password)
		if err != nil {
			return fmt.Errorf("sign in: %w", err)
		}
		route, _, err := a.manager.Landing(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s (%s)\ncompany: %s\nlanding: %s\n",
			s.Profile.Name, s.Profile.Role, s.Profile.CompanyID, route)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Revoke and forget the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		if err := a.manager.SignOut(cmd.Context(), ""); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "signed out")
		return nil
	},
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Show the signed-in profile as the API sees it",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		cur, err := a.requireSession(ctx)
		if err != nil {
			return err
		}

		remote, err := a.api.Session(ctx)
		if err != nil {
			return a.apiError(ctx, err)
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "user:    %s (%s)\n", remote.Email, remote.UserID)
		fmt.Fprintf(w, "profile: %s, role %s\n", remote.Profile.Name, remote.Profile.Role)
		fmt.Fprintf(w, "company: %s\n", remote.Profile.CompanyID)
		fmt.Fprintf(w, "landing: %s\n", remote.Landing)
		fmt.Fprintf(w, "expires: %s\n", cur.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
		return nil
	},
}

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "List orders of your company",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		cur, err := a.requireSession(ctx)
		if err != nil {
			return err
		}

		orders, err := a.api.ListOrders(ctx, cur.Profile.CompanyID, client.OrderFilter{
			Status: ordersStatus,
			Type:   ordersType,
			Limit:  ordersLimit,
		})
		if err != nil {
			return a.apiError(ctx, err)
		}
		printOrders(cmd.OutOrStdout(), orders)
		return nil
	},
}

var orderStatusCmd = &cobra.Command{
	Use:   "status <order-id> <status>",
	Short: "Move an order to a new status (preparando, saiu_entrega, entregue, cancelado)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		orderID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid order id %q", args[0])
		}
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		cur, err := a.requireSession(ctx)
		if err != nil {
			return err
		}

		res, err := a.api.UpdateOrderStatus(ctx, cur.Profile.CompanyID, orderID, args[1])
		if err != nil {
			return a.apiError(ctx, err)
		}
		printTransition(cmd.OutOrStdout(), res)
		return nil
	},
}

var payCmd = &cobra.Command{
	Use:   "pay <order-id>",
	Short: "Finalize payment of a delivered order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		orderID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid order id %q", args[0])
		}
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		cur, err := a.requireSession(ctx)
		if err != nil {
			return err
		}

		res, err := a.api.Pay(ctx, cur.Profile.CompanyID, orderID, payMethod)
		if err != nil {
			return a.apiError(ctx, err)
		}
		printTransition(cmd.OutOrStdout(), res)
		return nil
	},
}

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List tables and their status",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		cur, err := a.requireSession(ctx)
		if err != nil {
			return err
		}

		tables, err := a.api.ListTables(ctx, cur.Profile.CompanyID)
		if err != nil {
			return a.apiError(ctx, err)
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NUMBER\tCAPACITY\tSTATUS\tID")
		for _, t := range tables {
			fmt.Fprintf(tw, "%d\t%d\t%s\t%s\n", t.Number, t.Capacity, t.Status, t.ID)
		}
		return tw.Flush()
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow realtime order and table events",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		cur, err := a.requireSession(ctx)
		if err != nil {
			return err
		}

		go session.NewRefresher(a.manager, refreshInterval, refreshThreshold).Run(ctx)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "watching company %s, ctrl-c to stop\n", cur.Profile.CompanyID)
		err = a.api.Watch(ctx, cur.Profile.CompanyID, func(ev client.Event) {
			a.log.Debug("realtime event", zap.String("type", ev.Type))
			fmt.Fprintf(out, "%s\t%s\n", ev.Type, ev.Payload)
		})
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return a.apiError(ctx, err)
		}
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginEmail, "email", "e", "", "Account email")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Account password (or COMANDA_PASSWORD)")
	_ = loginCmd.MarkFlagRequired("email")

	ordersCmd.Flags().StringVar(&ordersStatus, "status", "", "Only orders in this status")
	ordersCmd.Flags().StringVar(&ordersType, "type", "", "Only local or delivery orders")
	ordersCmd.Flags().IntVar(&ordersLimit, "limit", 50, "Maximum number of orders")

	payCmd.Flags().StringVarP(&payMethod, "method", "m", "", "Payment method: dinheiro, pix, credito, debito, cartao or vale")
}

func printOrders(w io.Writer, orders []client.Order) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tSTATUS\tTOTAL\tPAID\tCUSTOMER\tCREATED")
	for _, o := range orders {
		paid := "no"
		if o.Paid {
			paid = "yes"
			if o.PaymentMethod != nil {
				paid = *o.PaymentMethod
			}
		}
		customer := "-"
		if o.CustomerName != nil && strings.TrimSpace(*o.CustomerName) != "" {
			customer = *o.CustomerName
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			o.ID, o.OrderType, o.Status, o.TotalAmount.StringFixed(2), paid, customer,
			o.CreatedAt.Local().Format("02/01 15:04"))
	}
	tw.Flush()
}

func printTransition(w io.Writer, res *client.TransitionResult) {
	fmt.Fprintf(w, "order %s: %s", res.Order.ID, res.Order.Status)
	if res.Order.Paid {
		fmt.Fprint(w, " (paid)")
	}
	fmt.Fprintln(w)
	if res.Table != nil {
		fmt.Fprintf(w, "table %d: %s\n", res.Table.Number, res.Table.Status)
	}
}
