package scraper

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const leaderboardFixture = `
<table>
  <tr>
    <td><a href="/hl/address/0xAb5801a7D398351b8bE11C439e05C5b3259aec9B">0xAb58...9B</a></td>
    <td>+$1,240,500.25</td>
  </tr>
  <tr>
    <td><a href="/hl/address/0x1234567890abcdef1234567890abcdef12345678">0x1234...78</a></td>
    <td>-$98,000</td>
  </tr>
  <tr>
    <td><a href="/hl/address/0xAb5801a7D398351b8bE11C439e05C5b3259aec9B">duplicate row</a></td>
    <td>+$1,240,500.25</td>
  </tr>
</table>`

func TestExtractWallets(t *testing.T) {
	wallets := ExtractWallets(leaderboardFixture)
	require.Len(t, wallets, 2)

	assert.Equal(t, "0xAb5801a7D398351b8bE11C439e05C5b3259aec9B", wallets[0].Address)
	assert.Equal(t, "+$1,240,500.25", wallets[0].PnL)
	assert.Equal(t, "0x1234567890abcdef1234567890abcdef12345678", wallets[1].Address)
	assert.Equal(t, "-$98,000", wallets[1].PnL)
}

func TestExtractWalletsNoMatch(t *testing.T) {
	assert.Nil(t, ExtractWallets("<html>nothing to see</html>"))
	// Too short to be an address.
	assert.Nil(t, ExtractWallets("0xdeadbeef"))
}

func TestExtractWalletsMissingPnL(t *testing.T) {
	html := `<a href="/hl/address/0x1234567890abcdef1234567890abcdef12345678">row</a>`
	wallets := ExtractWallets(html)
	require.Len(t, wallets, 1)
	assert.Empty(t, wallets[0].PnL)
}

func TestExtractWalletsLargePage(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 50; i++ {
		b.WriteString(leaderboardFixture)
	}
	wallets := ExtractWallets(b.String())
	assert.Len(t, wallets, 2)
}
