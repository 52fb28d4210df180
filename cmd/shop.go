package cmd

import (
	"fmt"
	"log"
	"strconv"

	"storefront/client"
	"storefront/models"

	"github.com/spf13/cobra"
)

var shopCmd = &cobra.Command{
	Use:   "shop",
	Short: "Browse and buy from a running storefront API",
}

// shopper is the API client plus the local state it works with.
type shopper struct {
	api       *client.Client
	cart      *client.Cart
	favorites *client.Favorites
	searches  *client.SearchHistory
	orders    *client.OrderHistory
}

func openShopper() (*shopper, error) {
	store := client.NewFileStore(cfg.StateFile)
	s := &shopper{api: client.New(cfg.APIBaseURL, store, nil)}
	var err error
	if s.cart, err = client.OpenCart(store); err != nil {
		return nil, err
	}
	if s.favorites, err = client.OpenFavorites(store); err != nil {
		return nil, err
	}
	if s.searches, err = client.OpenSearchHistory(store); err != nil {
		return nil, err
	}
	if s.orders, err = client.OpenOrderHistory(store); err != nil {
		return nil, err
	}
	return s, nil
}

func init() {
	shopCmd.PersistentFlags().String("format", "table", "Output format: json, table")

	productsCmd.Flags().String("category", "", "Category slug")
	productsCmd.Flags().String("q", "", "Search text")
	productsCmd.Flags().String("min-price", "", "Lowest price")
	productsCmd.Flags().String("max-price", "", "Highest price")
	productsCmd.Flags().Bool("in-stock", false, "Only products in stock")
	productsCmd.Flags().String("sort", "", "Sort: newest, price_asc, price_desc, rating, popular")
	productsCmd.Flags().Int("page", 1, "Page number")
	productsCmd.Flags().Int("limit", 20, "Products per page")

	for _, c := range []*cobra.Command{registerCmd, loginCmd} {
		c.Flags().String("email", "", "Account e-mail")
		c.Flags().String("password", "", "Account password")
		_ = c.MarkFlagRequired("email")
		_ = c.MarkFlagRequired("password")
	}
	registerCmd.Flags().String("name", "", "Display name")
	_ = registerCmd.MarkFlagRequired("name")

	cartAddCmd.Flags().Int("qty", 1, "Quantity")
	cartCmd.AddCommand(cartAddCmd, cartSetCmd, cartRemoveCmd, cartListCmd, cartClearCmd)

	favoritesCmd.AddCommand(favoritesToggleCmd)

	checkoutCmd.Flags().String("promo", "", "Promo code")
	checkoutCmd.Flags().String("name", "", "Recipient full name")
	checkoutCmd.Flags().String("phone", "", "Recipient phone")
	checkoutCmd.Flags().String("line1", "", "Address line 1")
	checkoutCmd.Flags().String("line2", "", "Address line 2")
	checkoutCmd.Flags().String("city", "", "City")
	checkoutCmd.Flags().String("postal-code", "", "Postal code")
	checkoutCmd.Flags().String("country", "", "Country")
	checkoutCmd.Flags().String("payment", "card", "Payment method: card, cash_on_delivery")
	checkoutCmd.Flags().Bool("quote", false, "Only show the price breakdown")

	ordersCmd.Flags().Bool("local", false, "Show orders remembered by this machine only")
	ordersCmd.AddCommand(orderCancelCmd)

	shopCmd.AddCommand(productsCmd, productCmd, categoriesCmd, searchesCmd, registerCmd, loginCmd, logoutCmd,
		cartCmd, favoritesCmd, checkoutCmd, ordersCmd)
	rootCmd.AddCommand(shopCmd)
}

var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "List catalog products",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openShopper()
		if err != nil {
			return err
		}
		q := client.ProductQuery{}
		q.Category, _ = cmd.Flags().GetString("category")
		q.Query, _ = cmd.Flags().GetString("q")
		q.MinPrice, _ = cmd.Flags().GetString("min-price")
		q.MaxPrice, _ = cmd.Flags().GetString("max-price")
		q.InStock, _ = cmd.Flags().GetBool("in-stock")
		q.Sort, _ = cmd.Flags().GetString("sort")
		q.Page, _ = cmd.Flags().GetInt("page")
		q.Limit, _ = cmd.Flags().GetInt("limit")

		page, err := s.api.Products(cmd.Context(), q)
		if err != nil {
			return err
		}
		if err = s.searches.Add(q.Query); err != nil {
			return err
		}
		if isJSON(cmd) {
			return printJSON(cmd, page)
		}
		printProducts(cmd.OutOrStdout(), page.Items)
		fmt.Fprintf(cmd.OutOrStdout(), "\npage %d of %d (%d products)\n", page.Page, page.TotalPages, page.Total)
		return nil
	},
}

var productCmd = &cobra.Command{
	Use:   "product [id or slug]",
	Short: "Show one product and related products",
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
		if isJSON(cmd) {
			return printJSON(cmd, p)
		}
		printProductDetail(cmd.OutOrStdout(), p, s.favorites.Has(p.Id))
		related, err := s.api.RelatedProducts(cmd.Context(), strconv.Itoa(p.Id))
		if err != nil {
			return err
		}
		if len(related) > 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "\nRelated:")
			printProducts(cmd.OutOrStdout(), related)
		}
		return nil
	},
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List categories",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openShopper()
		if err != nil {
			return err
		}
		cats, err := s.api.Categories(cmd.Context())
		if err != nil {
			return err
		}
		if isJSON(cmd) {
			return printJSON(cmd, cats)
		}
		for _, c := range cats {
			fmt.Fprintf(cmd.OutOrStdout(), " %-24s %-24s %d products\n", c.Name, c.Slug, c.ProductCount)
		}
		return nil
	},
}

var searchesCmd = &cobra.Command{
	Use:   "searches",
	Short: "Show recent product searches",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openShopper()
		if err != nil {
			return err
		}
		if isJSON(cmd) {
			return printJSON(cmd, s.searches.Items())
		}
		for i, q := range s.searches.Items() {
			fmt.Fprintf(cmd.OutOrStdout(), " %d. %s\n", i+1, q)
		}
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and sign in",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openShopper()
		if err != nil {
			return err
		}
		var req models.RegisterRequest
		req.Email, _ = cmd.Flags().GetString("email")
		req.Password, _ = cmd.Flags().GetString("password")
		req.Name, _ = cmd.Flags().GetString("name")
		user, err := s.api.Register(cmd.Context(), req)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s\n", user.Email)
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openShopper()
		if err != nil {
			return err
		}
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		user, err := s.api.Login(cmd.Context(), email, password)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s (%s)\n", user.Email, user.Role)
		return s.syncFavorites(cmd)
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openShopper()
		if err != nil {
			return err
		}
		if err = s.api.Logout(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "signed out")
		return nil
	},
}

// syncFavorites merges the account's favorites into the local set and pushes
// local-only ones to the account.
func (s *shopper) syncFavorites(cmd *cobra.Command) error {
	remote, err := s.api.Favorites(cmd.Context())
	if err != nil {
		return err
	}
	onServer := make(map[int]bool, len(remote))
	for _, p := range remote {
		onServer[p.Id] = true
		if err = s.favorites.Add(client.FavoriteFromProduct(p)); err != nil {
			return err
		}
	}
	for _, it := range s.favorites.Items() {
		if onServer[it.ProductId] {
			continue
		}
		if e := s.api.AddFavorite(cmd.Context(), it.ProductId); e != nil {
			log.Printf("syncFavorites[%d]: %v", it.ProductId, e)
		}
	}
	return nil
}
