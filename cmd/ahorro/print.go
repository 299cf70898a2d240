package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/zombor/ahorro/internal/analytics"
	"github.com/zombor/ahorro/internal/query"
	"github.com/zombor/ahorro/internal/receipt"
)

var (
	boldGreen = color.New(color.FgGreen, color.Bold).SprintFunc()
	boldCyan  = color.New(color.FgCyan, color.Bold).SprintFunc()
	boldRed   = color.New(color.FgRed, color.Bold).SprintFunc()
	faint     = color.New(color.Faint).SprintFunc()
)

func printReceipt(w io.Writer, r receipt.Receipt) {
	fmt.Fprintf(w, "%s %s  %s %s\n", boldGreen("✓"), r.Title, r.Amount.StringFixed(0), r.CurrencyCode)
	fmt.Fprintf(w, "  %s %s · %s · %s\n",
		faint(r.ID),
		r.MerchantName,
		r.Category.Title(),
		r.PurchaseDate.Format("2006-01-02"),
	)
	if len(r.Keywords) > 0 {
		fmt.Fprintf(w, "  %s\n", faint(strings.Join(r.Keywords, ", ")))
	}
}

func printIngestError(w io.Writer, path string, err error) {
	fmt.Fprintf(w, "%s %s: %v\n", boldRed("✗"), path, err)
}

func printAnswer(w io.Writer, res query.Result) {
	fmt.Fprintf(w, "%s %s\n", boldCyan("›"), res.Answer.Text())
	for _, m := range res.Answer.Merchants {
		fmt.Fprintf(w, "  %-24s %3d  %s\n", m.Merchant, m.Count, m.Total.StringFixed(0))
	}
	if len(res.Receipts) == 0 {
		return
	}
	fmt.Fprintln(w)
	for _, r := range res.Receipts {
		fmt.Fprintf(w, "  %s  %-24s %s %s\n",
			faint(r.PurchaseDate.Format("2006-01-02")),
			r.Title,
			r.Amount.StringFixed(0),
			r.CurrencyCode,
		)
	}
}

func printSummary(w io.Writer, s *analytics.Summary, ok bool) {
	if !ok {
		fmt.Fprintln(w, faint("No receipts this month."))
		return
	}

	fmt.Fprintf(w, "%s %s\n", boldCyan("Resumen"), s.Month.Format("2006-01"))
	fmt.Fprintf(w, "  Total:     %s\n", boldGreen(s.TotalSpent.StringFixed(0)))
	fmt.Fprintf(w, "  Impuestos: %s\n", s.TaxPaid.StringFixed(0))
	fmt.Fprintln(w)
	for _, c := range s.Categories {
		fmt.Fprintf(w, "  %-20s %3d  %s\n", c.Title, c.Count, c.Total.StringFixed(0))
	}
}
