package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Insight is one digested media item for the knowledge base.
type Insight struct {
	VideoID     string    `json:"video_id"`
	Channel     string    `json:"channel"`
	Title       string    `json:"title"`
	Transcript  string    `json:"transcript"`
	PublishedAt time.Time `json:"published_at"`
}

// SaveInsight stores a digested media item. Existing ids are left untouched.
func (s *Store) SaveInsight(in Insight) error {
	_, err := s.db.Exec(
		`INSERT INTO insights (video_id, channel, title, transcript) VALUES (?, ?, ?, ?)
		 ON CONFLICT(video_id) DO NOTHING`,
		in.VideoID, in.Channel, in.Title, in.Transcript,
	)
	if err != nil {
		return fmt.Errorf("save insight: %w", err)
	}
	return nil
}

// HasInsight reports whether a media item was already digested.
func (s *Store) HasInsight(videoID string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM insights WHERE video_id = ?`, videoID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check insight: %w", err)
	}
	return true, nil
}

// RecentInsights returns the latest digested items, newest first.
func (s *Store) RecentInsights(limit int) ([]Insight, error) {
	rows, err := s.db.Query(
		`SELECT video_id, channel, title, transcript, published_at FROM insights
		 ORDER BY published_at DESC, video_id LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch insights: %w", err)
	}
	defer rows.Close()

	var insights []Insight
	for rows.Next() {
		var in Insight
		if err := rows.Scan(&in.VideoID, &in.Channel, &in.Title, &in.Transcript, &in.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan insight: %w", err)
		}
		insights = append(insights, in)
	}
	return insights, rows.Err()
}
