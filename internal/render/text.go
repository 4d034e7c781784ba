package render

import (
	"fmt"
	"io"
	"strings"
)

// Text writes the card in a plain terminal layout
func Text(w io.Writer, c *Card) error {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", c.ProductName)
	fmt.Fprintf(&b, "[%s] %s", strings.ToUpper(string(c.Color)), c.Label)
	if c.Short != "" {
		fmt.Fprintf(&b, " - %s", c.Short)
	}
	fmt.Fprintf(&b, " (score %d)\n", c.Score)
	fmt.Fprintf(&b, "Confidence: %d%%\n", c.Confidence)
	if c.UncertaintyNote != "" {
		fmt.Fprintf(&b, "  %s\n", c.UncertaintyNote)
	}
	if c.Explanation != "" {
		fmt.Fprintf(&b, "\n%s\n", c.Explanation)
	}

	if len(c.Cons) > 0 || len(c.Pros) > 0 {
		b.WriteString("\n")
		for _, con := range c.Cons {
			fmt.Fprintf(&b, "  - %s\n", con)
		}
		for _, pro := range c.Pros {
			fmt.Fprintf(&b, "  + %s\n", pro)
		}
	}

	if c.Swap != nil {
		fmt.Fprintf(&b, "\nTry instead: %s", c.Swap.ProductName)
		if c.Swap.Savings != "" {
			fmt.Fprintf(&b, " (%s)", c.Swap.Savings)
		}
		b.WriteString("\n")
		if c.Swap.ReasonWhy != "" {
			fmt.Fprintf(&b, "  %s\n", c.Swap.ReasonWhy)
		}
		fmt.Fprintf(&b, "  %s\n", c.Swap.Link)
	}

	if len(c.FollowUps) > 0 {
		b.WriteString("\nAsk next:\n")
		for _, q := range c.FollowUps {
			fmt.Fprintf(&b, "  ? %s\n", q)
		}
	}

	p := c.Provenance
	b.WriteString("\nSources:\n")
	for i, s := range p.Sources {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, s)
	}
	fmt.Fprintf(&b, "Data quality: %d%%\n", p.DataQuality)
	if p.Flag != "" {
		fmt.Fprintf(&b, "FLAG: %s\n", p.Flag)
	}
	fmt.Fprintf(&b, "Intent: %q | Model: %s\n", p.Intent, p.Model)

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("failed to write card: %w", err)
	}
	return nil
}
