package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"storefront/client"
	"storefront/models"

	"github.com/spf13/cobra"
)

var errSignedOut = errors.New("not signed in, run `storefront shop login` first")

func productIdArg(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid product id %q", arg)
	}
	return id, nil
}

var cartCmd = &cobra.Command{
	Use:   "cart",
	Short: "Show or change the local cart",
	RunE:  runCartList,
}

var cartListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the cart",
	RunE:  runCartList,
}

func runCartList(cmd *cobra.Command, args []string) error {
	s, err := openShopper()
	if err != nil {
		return err
	}
	if isJSON(cmd) {
		return printJSON(cmd, s.cart.Items())
	}
	printCart(cmd.OutOrStdout(), s.cart)
	return nil
}

var cartAddCmd = &cobra.Command{
	Use:   "add [id or slug]",
	Short: "Add a product to the cart",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openShopper()
		if err != nil {
			return err
		}
		qty, _ := cmd.Flags().GetInt("qty")
		p, err := s.api.Product(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !p.InStock {
			return fmt.Errorf("%s is out of stock", p.Name)
		}
		if err = s.cart.Add(client.ItemFromProduct(p, qty)); err != nil {
			return err
		}
		printCart(cmd.OutOrStdout(), s.cart)
		return nil
	},
}

var cartSetCmd = &cobra.Command{
	Use:   "set [product id] [quantity]",
	Short: "Change a cart line's quantity (0 removes it)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openShopper()
		if err != nil {
			return err
		}
		id, err := productIdArg(args[0])
		if err != nil {
			return err
		}
		qty, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid quantity %q", args[1])
		}
		if err = s.cart.SetQuantity(id, qty); err != nil {
			return err
		}
		printCart(cmd.OutOrStdout(), s.cart)
		return nil
	},
}

var cartRemoveCmd = &cobra.Command{
	Use:   "remove [product id]",
	Short: "Remove a product from the cart",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openShopper()
		if err != nil {
			return err
		}
		id, err := productIdArg(args[0])
		if err != nil {
			return err
		}
		if err = s.cart.Remove(id); err != nil {
			return err
		}
		printCart(cmd.OutOrStdout(), s.cart)
		return nil
	},
}

var cartClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Empty the cart",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openShopper()
		if err != nil {
			return err
		}
		return s.cart.Clear()
	},
}

var favoritesCmd = &cobra.Command{
	Use:   "favorites",
	Short: "List favorite products",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openShopper()
		if err != nil {
			return err
		}
		if _, ok := s.api.CurrentUser(); ok {
			prods, err := s.api.Favorites(cmd.Context())
			if err != nil {
				return err
			}
			if isJSON(cmd) {
				return printJSON(cmd, prods)
			}
			printProducts(cmd.OutOrStdout(), prods)
			return nil
		}
		if isJSON(cmd) {
			return printJSON(cmd, s.favorites.Items())
		}
		items := s.favorites.Items()
		if len(items) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), " no favorites")
			return nil
		}
		for _, it := range items {
			fmt.Fprintf(cmd.OutOrStdout(), " #%-6d %-32s %10s\n", it.ProductId, it.Name, formatMoney(it.Price))
		}
		return nil
	},
}

var favoritesToggleCmd = &cobra.Command{
	Use:   "toggle [id or slug]",
	Short: "Add or remove a favorite",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openShopper()
		if err != nil {
			return err
		}
		p, err := s.api.Product(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		id := p.Id
		on, err := s.favorites.Toggle(client.FavoriteFromProduct(p))
		if err != nil {
			return err
		}
		if _, ok := s.api.CurrentUser(); ok {
			if on {
				err = s.api.AddFavorite(cmd.Context(), id)
			} else {
				err = s.api.RemoveFavorite(cmd.Context(), id)
			}
			if err != nil {
				return err
			}
		}
		if on {
			fmt.Fprintf(cmd.OutOrStdout(), "%s added to favorites\n", p.Name)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s removed from favorites\n", p.Name)
		}
		return nil
	},
}

var checkoutCmd = &cobra.Command{
	Use:   "checkout",
	Short: "Place an order for the cart",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openShopper()
		if err != nil {
			return err
		}
		if _, ok := s.api.CurrentUser(); !ok {
			return errSignedOut
		}
		promo, _ := cmd.Flags().GetString("promo")
		if quoteOnly, _ := cmd.Flags().GetBool("quote"); quoteOnly {
			q, err := s.api.Quote(cmd.Context(), models.QuoteRequest{Items: s.cart.OrderItems(), PromoCode: promo})
			if err != nil {
				return err
			}
			if isJSON(cmd) {
				return printJSON(cmd, q)
			}
			printBreakdown(cmd.OutOrStdout(), q.Breakdown)
			return nil
		}

		var addr models.ShippingAddress
		addr.FullName, _ = cmd.Flags().GetString("name")
		addr.Phone, _ = cmd.Flags().GetString("phone")
		addr.Line1, _ = cmd.Flags().GetString("line1")
		addr.Line2, _ = cmd.Flags().GetString("line2")
		addr.City, _ = cmd.Flags().GetString("city")
		addr.PostalCode, _ = cmd.Flags().GetString("postal-code")
		addr.Country, _ = cmd.Flags().GetString("country")
		payment, _ := cmd.Flags().GetString("payment")

		order, err := s.api.Checkout(cmd.Context(), s.cart, s.orders, promo, addr, payment)
		if err != nil {
			return err
		}
		if isJSON(cmd) {
			return printJSON(cmd, order)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "order %s placed (%s)\n", order.Number, order.Status)
		printBreakdown(cmd.OutOrStdout(), orderBreakdown(order))
		return nil
	},
}

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "List your orders",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openShopper()
		if err != nil {
			return err
		}
		local, _ := cmd.Flags().GetBool("local")
		if _, ok := s.api.CurrentUser(); !ok || local {
			if isJSON(cmd) {
				return printJSON(cmd, s.orders.Items())
			}
			for _, o := range s.orders.Items() {
				fmt.Fprintf(cmd.OutOrStdout(), " #%-6d %-20s %-10s %3d items  %s\n",
					o.Id, o.Number, o.Status, o.Items, formatMoney(o.Total))
			}
			return nil
		}
		orders, err := s.api.Orders(cmd.Context())
		if err != nil {
			return err
		}
		if isJSON(cmd) {
			return printJSON(cmd, orders)
		}
		printOrders(cmd.OutOrStdout(), orders)
		return nil
	},
}

var orderCancelCmd = &cobra.Command{
	Use:   "cancel [order id]",
	Short: "Cancel a pending order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openShopper()
		if err != nil {
			return err
		}
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid order id %q", args[0])
		}
		order, err := s.api.CancelOrder(cmd.Context(), id)
		if err != nil {
			return err
		}
		if err = s.orders.Record(order); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "order %s is %s\n", order.Number, order.Status)
		return nil
	},
}
