package monitor

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/vigilcell/vigil/internal/store"
)

const videosPerChannel = 3

var channelIDPattern = regexp.MustCompile(`"channelId":"(UC[\w-]{22})"`)

// MediaDigester discovers recent videos from watched channels and stores
// their transcripts as insights. Already-stored video ids are skipped.
type MediaDigester struct {
	store  *store.Store
	client *http.Client

	baseURL string
}

// NewMediaDigester creates a digester writing into the given store.
func NewMediaDigester(st *store.Store) *MediaDigester {
	return &MediaDigester{
		store:   st,
		client:  &http.Client{Timeout: 20 * time.Second},
		baseURL: "https://www.youtube.com",
	}
}

// Video is one discovered channel upload.
type Video struct {
	ID        string
	Title     string
	Published time.Time
}

// DigestChannel fetches the latest uploads for a channel handle and stores
// transcripts for any video not seen before. Returns the number of new
// insights stored.
func (d *MediaDigester) DigestChannel(ctx context.Context, handle string) (int, error) {
	videos, err := d.LatestVideos(ctx, handle)
	if err != nil {
		return 0, fmt.Errorf("channel %s: %w", handle, err)
	}

	stored := 0
	for _, vid := range videos {
		seen, err := d.store.HasInsight(vid.ID)
		if err != nil {
			return stored, err
		}
		if seen {
			continue
		}

		transcript, err := d.Transcript(ctx, vid.ID)
		if err != nil {
			slog.Warn("No transcript available", "video", vid.ID, "error", err)
			continue
		}

		slog.Info("Digesting new video", "channel", handle, "title", vid.Title)
		if err := d.store.SaveInsight(store.Insight{
			VideoID:    vid.ID,
			Channel:    handle,
			Title:      vid.Title,
			Transcript: transcript,
		}); err != nil {
			return stored, err
		}
		stored++
	}
	return stored, nil
}

// LatestVideos resolves a channel handle to its upload feed and returns the
// newest entries.
func (d *MediaDigester) LatestVideos(ctx context.Context, handle string) ([]Video, error) {
	channelID, err := d.resolveChannelID(ctx, handle)
	if err != nil {
		return nil, err
	}

	body, err := d.get(ctx, d.baseURL+"/feeds/videos.xml?channel_id="+url.QueryEscape(channelID))
	if err != nil {
		return nil, fmt.Errorf("upload feed: %w", err)
	}

	var feed struct {
		Entries []struct {
			VideoID   string `xml:"videoId"`
			Title     string `xml:"title"`
			Published string `xml:"published"`
		} `xml:"entry"`
	}
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("upload feed parse: %w", err)
	}

	var videos []Video
	for i, entry := range feed.Entries {
		if i >= videosPerChannel {
			break
		}
		published, _ := time.Parse(time.RFC3339, entry.Published)
		videos = append(videos, Video{ID: entry.VideoID, Title: entry.Title, Published: published})
	}
	return videos, nil
}

// Transcript fetches the English caption track for a video and flattens it
// into one string.
func (d *MediaDigester) Transcript(ctx context.Context, videoID string) (string, error) {
	body, err := d.get(ctx, "https://video.google.com/timedtext?lang=en&v="+url.QueryEscape(videoID))
	if err != nil {
		return "", err
	}
	if len(body) == 0 {
		return "", fmt.Errorf("no captions for %s", videoID)
	}
	transcript, err := parseTranscript(body)
	if err != nil {
		return "", fmt.Errorf("video %s: %w", videoID, err)
	}
	return transcript, nil
}

// parseTranscript flattens a timedtext caption XML document into one string.
func parseTranscript(body []byte) (string, error) {
	var track struct {
		Texts []struct {
			Content string `xml:",chardata"`
		} `xml:"text"`
	}
	if err := xml.Unmarshal(body, &track); err != nil {
		return "", fmt.Errorf("caption parse: %w", err)
	}
	if len(track.Texts) == 0 {
		return "", fmt.Errorf("empty caption track")
	}
	parts := make([]string, 0, len(track.Texts))
	for _, t := range track.Texts {
		if s := strings.TrimSpace(t.Content); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " "), nil
}

func (d *MediaDigester) resolveChannelID(ctx context.Context, handle string) (string, error) {
	if strings.HasPrefix(handle, "UC") && len(handle) == 24 {
		return handle, nil
	}
	body, err := d.get(ctx, d.baseURL+"/@"+url.PathEscape(handle))
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", handle, err)
	}
	m := channelIDPattern.FindSubmatch(body)
	if m == nil {
		return "", fmt.Errorf("resolve %s: channel id not found", handle)
	}
	return string(m[1]), nil
}

func (d *MediaDigester) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", walletUserAgents[0])
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
