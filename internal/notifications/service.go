package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"podhaul/internal/config"
)

const userAgent = "podhaul/0.1.0"

// Service defines the notification surface exposed to the pipeline.
type Service interface {
	RunStarted(ctx context.Context, source string, pending int) error
	RunCompleted(ctx context.Context, source string, downloaded, noMedia, failed int, bytes int64, duration time.Duration) error
	EpisodeFailed(ctx context.Context, episodeTitle string, cause error) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy. Without a topic
// it returns a do-nothing sink, so callers never need a nil check.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return disabled{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		topicURL:   topic,
		httpClient: &http.Client{Timeout: timeout},
		runs:       cfg.Notifications.Runs,
		errors:     cfg.Notifications.Errors,
	}
}

// message maps onto ntfy's publish API: the body is the notification text,
// everything else travels in headers.
type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	topicURL   string
	httpClient *http.Client
	runs       bool
	errors     bool
}

func (n *ntfyService) RunStarted(ctx context.Context, source string, pending int) error {
	if !n.runs {
		return nil
	}
	return n.publish(ctx, message{
		title: "Podhaul - Run Started",
		body:  fmt.Sprintf("Processing %d pending episodes from %s", pending, source),
		tags:  []string{"podhaul", "run", "started"},
	})
}

func (n *ntfyService) RunCompleted(ctx context.Context, source string, downloaded, noMedia, failed int, bytes int64, duration time.Duration) error {
	if !n.runs {
		return nil
	}
	duration = max(duration, 0).Round(time.Second)

	title := "Podhaul - Run Complete"
	text := fmt.Sprintf("✅ %d downloaded (%s) in %s from %s", downloaded, humanBytes(bytes), duration, source)
	if failed > 0 {
		title = "Podhaul - Run Complete (with errors)"
		text = fmt.Sprintf("%d downloaded, %d failed (%s) in %s from %s", downloaded, failed, humanBytes(bytes), duration, source)
	}
	if noMedia > 0 {
		text += fmt.Sprintf("\n%d episodes had no media", noMedia)
	}

	return n.publish(ctx, message{
		title: title,
		body:  text,
		tags:  []string{"podhaul", "run", "completed"},
	})
}

func (n *ntfyService) EpisodeFailed(ctx context.Context, episodeTitle string, cause error) error {
	if !n.errors {
		return nil
	}
	episodeTitle = strings.TrimSpace(episodeTitle)
	if episodeTitle == "" {
		episodeTitle = "unknown episode"
	}
	detail := "unknown"
	if cause != nil {
		detail = strings.TrimSpace(cause.Error())
	}

	return n.publish(ctx, message{
		title:    "Podhaul - Episode Failed",
		body:     fmt.Sprintf("❌ %s: %s", episodeTitle, detail),
		tags:     []string{"podhaul", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.publish(ctx, message{
		title:    "Podhaul - Test",
		body:     "Notification system test",
		tags:     []string{"podhaul", "test"},
		priority: "low",
	})
}

func (n *ntfyService) publish(ctx context.Context, msg message) error {
	if n == nil || n.httpClient == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.topicURL, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("create ntfy request: %w", err)
	}
	for name, value := range map[string]string{
		"User-Agent":   userAgent,
		"Content-Type": "text/plain; charset=utf-8",
		"Title":        msg.title,
		"Tags":         strings.Join(msg.tags, ","),
		"Priority":     msg.priority,
	} {
		if value != "" {
			req.Header.Set(name, value)
		}
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post to ntfy: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

type disabled struct{}

func (disabled) RunStarted(context.Context, string, int) error { return nil }

func (disabled) RunCompleted(context.Context, string, int, int, int, int64, time.Duration) error {
	return nil
}

func (disabled) EpisodeFailed(context.Context, string, error) error { return nil }

func (disabled) TestNotification(context.Context) error { return nil }
