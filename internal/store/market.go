package store

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Wallet is a discovered high-signal wallet record. These records are
// produced by the discovery scraper and read by the crypto agent.
type Wallet struct {
	Address      string    `json:"address"`
	PnL          string    `json:"pnl"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// SaveWallet records a discovered wallet, refreshing PnL on re-discovery.
func (s *Store) SaveWallet(address, pnl string) error {
	_, err := s.db.Exec(
		`INSERT INTO wallets (address, pnl) VALUES (?, ?)
		 ON CONFLICT(address) DO UPDATE SET pnl = excluded.pnl`,
		address, pnl,
	)
	if err != nil {
		return fmt.Errorf("save wallet: %w", err)
	}
	return nil
}

// WalletCount returns the number of tracked wallets.
func (s *Store) WalletCount() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM wallets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count wallets: %w", err)
	}
	return n, nil
}

// RecentWallets returns the latest discovered wallets, newest first.
func (s *Store) RecentWallets(limit int) ([]Wallet, error) {
	rows, err := s.db.Query(
		`SELECT address, pnl, discovered_at FROM wallets ORDER BY discovered_at DESC, address LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch wallets: %w", err)
	}
	defer rows.Close()

	var wallets []Wallet
	for rows.Next() {
		var w Wallet
		if err := rows.Scan(&w.Address, &w.PnL, &w.DiscoveredAt); err != nil {
			return nil, fmt.Errorf("scan wallet: %w", err)
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

// Position is one open position within a wallet snapshot.
type Position struct {
	Coin          string  `json:"coin"`
	Size          float64 `json:"size"`
	EntryPrice    float64 `json:"entry_price"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	Leverage      int     `json:"leverage"`
}

// Snapshot is one observed wallet state from the websocket feed.
type Snapshot struct {
	Address      string     `json:"address"`
	AccountValue float64    `json:"account_value"`
	Positions    []Position `json:"positions"`
	CreatedAt    time.Time  `json:"created_at"`
}

// snapshotKeepPerWallet bounds unique states retained per wallet.
const snapshotKeepPerWallet = 20

// stateHash fingerprints a snapshot so repeated identical states only touch
// the timestamp of the stored row instead of inserting duplicates.
func stateHash(accountValue float64, positions []Position) string {
	sorted := append([]Position{}, positions...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Coin < sorted[j].Coin })
	data, _ := json.Marshal(struct {
		AccountValue float64    `json:"account_value"`
		Positions    []Position `json:"positions"`
	}{accountValue, sorted})
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

// SaveSnapshot stores a wallet snapshot, deduplicating identical consecutive
// states and pruning old unique states beyond the per-wallet cap.
func (s *Store) SaveSnapshot(snap Snapshot) error {
	hash := stateHash(snap.AccountValue, snap.Positions)

	var lastHash string
	err := s.db.QueryRow(
		`SELECT state_hash FROM snapshots WHERE address = ? ORDER BY updated_at DESC, id DESC LIMIT 1`,
		snap.Address,
	).Scan(&lastHash)
	if err == nil && lastHash == hash {
		// Same state as last time: refresh the timestamp only.
		_, err = s.db.Exec(
			`UPDATE snapshots SET updated_at = CURRENT_TIMESTAMP
			 WHERE address = ? AND state_hash = ?`,
			snap.Address, hash,
		)
		if err != nil {
			return fmt.Errorf("touch snapshot: %w", err)
		}
		return nil
	}

	positions, err := json.Marshal(snap.Positions)
	if err != nil {
		return fmt.Errorf("encode positions: %w", err)
	}
	if _, err := s.db.Exec(
		`INSERT INTO snapshots (address, account_value, positions, state_hash) VALUES (?, ?, ?, ?)`,
		snap.Address, snap.AccountValue, string(positions), hash,
	); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	_, err = s.db.Exec(
		`DELETE FROM snapshots WHERE address = ? AND id NOT IN (
			SELECT id FROM snapshots WHERE address = ? ORDER BY updated_at DESC, id DESC LIMIT ?
		)`,
		snap.Address, snap.Address, snapshotKeepPerWallet,
	)
	if err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}
	return nil
}

// RecentSnapshots returns the latest snapshots across all wallets.
func (s *Store) RecentSnapshots(limit int) ([]Snapshot, error) {
	rows, err := s.db.Query(
		`SELECT address, account_value, positions, created_at FROM snapshots
		 ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		var snap Snapshot
		var positions string
		if err := rows.Scan(&snap.Address, &snap.AccountValue, &positions, &snap.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if err := json.Unmarshal([]byte(positions), &snap.Positions); err != nil {
			return nil, fmt.Errorf("decode positions: %w", err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}
