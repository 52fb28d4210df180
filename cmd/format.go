package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"storefront/client"
	"storefront/entities"
	"storefront/pricing"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func isJSON(cmd *cobra.Command) bool {
	f, _ := cmd.Flags().GetString("format")
	return f == "json"
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatMoney formats an amount with two decimals and thousands separators,
// e.g. "1 234.50".
func formatMoney(d decimal.Decimal) string {
	s := d.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	if d.IsNegative() {
		b.WriteByte('-')
	}
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String() + "." + frac
}

// printProducts prints products in a compact card layout.
func printProducts(w io.Writer, products []entities.Product) {
	if len(products) == 0 {
		fmt.Fprintln(w, " no products")
		return
	}
	for i, p := range products {
		name := p.Name
		if p.IsNew {
			name = "[NEW] " + name
		}
		fmt.Fprintf(w, " %d. %s  (#%d, %s)\n", i+1, name, p.Id, p.Slug)

		priceLine := "    Price: " + formatMoney(p.Price)
		if p.OldPrice.Valid && p.Discount > 0 {
			priceLine += fmt.Sprintf("  (was %s, -%d%%)", formatMoney(p.OldPrice.Decimal), p.Discount)
		}
		if !p.InStock {
			priceLine += "  |  out of stock"
		}
		if p.ReviewCount > 0 {
			priceLine += fmt.Sprintf("  |  %.1f★ (%d)", p.Rating, p.ReviewCount)
		}
		fmt.Fprintln(w, priceLine)
	}
}

func printProductDetail(w io.Writer, p entities.Product, favorite bool) {
	printProducts(w, []entities.Product{p})
	if p.Category != nil {
		fmt.Fprintf(w, "    Category: %s\n", p.Category.Name)
	}
	fmt.Fprintf(w, "    Stock: %d\n", p.Stock)
	if favorite {
		fmt.Fprintln(w, "    In your favorites")
	}
	if p.Description != "" {
		fmt.Fprintf(w, "\n%s\n", p.Description)
	}
}

func printCart(w io.Writer, cart *client.Cart) {
	items := cart.Items()
	if len(items) == 0 {
		fmt.Fprintln(w, " cart is empty")
		return
	}
	for _, it := range items {
		line := pricing.LineTotal(pricing.Item{ProductID: it.ProductId, Price: it.Price, Quantity: it.Quantity})
		fmt.Fprintf(w, " #%-6d %-32s %3d x %10s = %10s\n",
			it.ProductId, it.Name, it.Quantity, formatMoney(it.Price), formatMoney(line))
	}
	fmt.Fprintf(w, " %d items, subtotal %s\n", cart.Count(), formatMoney(cart.Subtotal()))
}

func printBreakdown(w io.Writer, b pricing.Breakdown) {
	fmt.Fprintf(w, "    Subtotal: %10s\n", formatMoney(b.Subtotal))
	shipping := formatMoney(b.Shipping)
	if b.FreeShipping {
		shipping += " (free)"
	}
	fmt.Fprintf(w, "    Shipping: %10s\n", shipping)
	if b.Discount.IsPositive() {
		fmt.Fprintf(w, "    Discount: %10s\n", "-"+formatMoney(b.Discount))
	}
	fmt.Fprintf(w, "    Total:    %10s\n", formatMoney(b.Total))
}

func orderBreakdown(o entities.Order) pricing.Breakdown {
	return pricing.Breakdown{Subtotal: o.Subtotal, Shipping: o.Shipping, Discount: o.Discount, Total: o.Total}
}

func printOrders(w io.Writer, orders []entities.Order) {
	if len(orders) == 0 {
		fmt.Fprintln(w, " no orders yet")
		return
	}
	for _, o := range orders {
		fmt.Fprintf(w, " #%-6d %-20s %-10s %s  %s\n",
			o.Id, o.Number, o.Status, o.CreatedAt.Format("2006-01-02 15:04"), formatMoney(o.Total))
		for _, it := range o.Items {
			fmt.Fprintf(w, "      %3d x %s\n", it.Quantity, it.Name)
		}
	}
}
