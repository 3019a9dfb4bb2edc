package scraper

import "regexp"

// Discovered is one wallet pulled out of a leaderboard page.
type Discovered struct {
	Address string
	PnL     string
}

var pnlPattern = regexp.MustCompile(`[+-]?\$[\d,]+(?:\.\d+)?[KMB]?`)

// ExtractWallets pulls unique 0x addresses out of raw page HTML, pairing
// each with the first dollar amount that follows it (the row's PnL column).
// Order of first appearance is preserved.
func ExtractWallets(html string) []Discovered {
	matches := addressPattern.FindAllStringIndex(html, -1)
	if matches == nil {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	var wallets []Discovered
	for i, loc := range matches {
		address := html[loc[0]:loc[1]]
		if seen[address] {
			continue
		}
		seen[address] = true

		// PnL sits between this address and the next one in document order.
		end := len(html)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		pnl := pnlPattern.FindString(html[loc[1]:end])

		wallets = append(wallets, Discovered{Address: address, PnL: pnl})
	}
	return wallets
}
