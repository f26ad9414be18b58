package podcast

import (
	"context"
	"fmt"
	"time"

	podcastfeed "github.com/eduncan911/podcast"

	"github.com/audiobrew/web/domain"
)

const (
	feedTitle       = "AudioBrew"
	feedDescription = "Podcasts brewed from your AudioBrew emails."
)

var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
}

// Feed renders the user's podcasts as an RSS document. Podcasts without a
// real audio file are left out.
func (uc *UseCase) Feed(ctx context.Context, userID, feedURL string) (string, error) {
	podcasts, err := uc.List(ctx, userID)
	if err != nil {
		return "", err
	}
	return RenderFeed(podcasts, feedURL, uc.clock.Now())
}

// RenderFeed builds the RSS document for podcasts.
func RenderFeed(podcasts []domain.Podcast, feedURL string, now time.Time) (string, error) {
	var latest *time.Time
	for i := range podcasts {
		if t, ok := parseCreatedAt(podcasts[i].CreatedAt); ok && (latest == nil || t.After(*latest)) {
			latest = &t
		}
	}
	if latest == nil {
		latest = &now
	}

	feed := podcastfeed.New(feedTitle, feedURL, feedDescription, latest, &now)
	feed.Generator = feedTitle

	for i := range podcasts {
		p := podcasts[i]
		if !p.HasAudio() {
			continue
		}
		title := p.Title
		if title == "" {
			title = "Untitled podcast"
		}
		item := podcastfeed.Item{
			Title:       title,
			Description: fmt.Sprintf("Generated from %d emails.", p.SourceEmails),
		}
		if t, ok := parseCreatedAt(p.CreatedAt); ok {
			item.AddPubDate(&t)
		}
		if p.Duration > 0 {
			item.AddDuration(int64(p.Duration))
		}
		item.AddEnclosure(p.AudioURL, podcastfeed.MP3, 0)
		if _, err := feed.AddItem(item); err != nil {
			return "", err
		}
	}
	return feed.String(), nil
}

func parseCreatedAt(value string) (time.Time, bool) {
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
