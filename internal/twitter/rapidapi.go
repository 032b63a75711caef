package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultBaseURL = "https://twttrapi.p.rapidapi.com"
	rapidAPIHost   = "twttrapi.p.rapidapi.com"

	// createdAtLayout is the timestamp format twitter uses in legacy payloads.
	createdAtLayout = "Mon Jan 02 15:04:05 -0700 2006"
)

// RapidAPIClient implements DataSource against the twttrapi RapidAPI service.
type RapidAPIClient struct {
	baseURL    string
	apiKey     string
	httpClient *resty.Client
	logger     *log.Logger
}

// RapidAPIOption configures RapidAPIClient.
type RapidAPIOption func(*RapidAPIClient)

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) RapidAPIOption {
	return func(c *RapidAPIClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom resty client.
func WithHTTPClient(client *resty.Client) RapidAPIOption {
	return func(c *RapidAPIClient) {
		c.httpClient = client
	}
}

// NewRapidAPIClient creates a twttrapi client authenticated with the given
// RapidAPI key.
func NewRapidAPIClient(apiKey string, logger *log.Logger, opts ...RapidAPIOption) *RapidAPIClient {
	c := &RapidAPIClient{
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		httpClient: resty.New().SetRetryCount(3).SetTimeout(30 * time.Second),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RecentTweets fetches the user timeline of a handle. Entries that do not
// carry a parseable tweet (ads, modules, cursors) are skipped. Account
// counters are taken from the first entry that carries them.
func (c *RapidAPIClient) RecentTweets(ctx context.Context, handle string) ([]RecentTweet, *AccountStats, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("x-rapidapi-host", rapidAPIHost).
		SetHeader("x-rapidapi-key", c.apiKey).
		SetQueryParam("username", handle).
		Get(c.baseURL + "/user-tweets")
	if err != nil {
		return nil, nil, fmt.Errorf("fetch timeline for %s: %w", handle, err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, nil, fmt.Errorf("timeline request for %s: unexpected status %d", handle, resp.StatusCode())
	}

	var payload timelinePayload
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, nil, fmt.Errorf("decode timeline for %s: %w", handle, err)
	}

	var tweets []RecentTweet
	var stats *AccountStats
	for _, instruction := range payload.Data.UserResult.Result.TimelineResponse.Timeline.Instructions {
		if instruction.TypeName != "TimelineAddEntries" {
			continue
		}
		for _, entry := range instruction.Entries {
			tweet, err := parseEntry(entry)
			if err != nil {
				c.logger.Printf("[twitter] skipping entry for %s: %v", handle, err)
				continue
			}
			tweets = append(tweets, tweet)
			if stats == nil {
				stats = entryStats(entry)
			}
		}
	}

	return tweets, stats, nil
}

// entryStats pulls the author counters embedded in a timeline entry.
// Returns nil when the entry carries none.
func entryStats(entry timelineEntry) *AccountStats {
	result := entry.Content.Content.TweetResult.Result
	if result == nil {
		return nil
	}
	legacy := result.Core.UserResult.Result.Legacy
	if legacy.FollowersCount == 0 && legacy.StatusesCount == 0 {
		return nil
	}
	return &AccountStats{
		FollowerCount: legacy.FollowersCount,
		TweetCount:    legacy.StatusesCount,
	}
}

// parseEntry extracts a RecentTweet from one timeline entry.
func parseEntry(entry timelineEntry) (RecentTweet, error) {
	result := entry.Content.Content.TweetResult.Result
	if result == nil {
		return RecentTweet{}, fmt.Errorf("no tweet result")
	}

	id := result.Core.UserResult.Result.Legacy.IDStr
	if id == "" {
		return RecentTweet{}, fmt.Errorf("missing tweet id")
	}

	content := result.Legacy.FullText
	if content == "" {
		content = result.Core.UserResult.Result.Legacy.Description
	}
	if content == "" {
		return RecentTweet{}, fmt.Errorf("missing tweet text")
	}

	postedAt, err := time.Parse(createdAtLayout, result.Legacy.CreatedAt)
	if err != nil {
		return RecentTweet{}, fmt.Errorf("parse created_at %q: %w", result.Legacy.CreatedAt, err)
	}

	return RecentTweet{
		ExternalID: id,
		Content:    content,
		PostedAt:   postedAt.UnixMilli(),
	}, nil
}

// timelinePayload mirrors the deeply nested twttrapi response shape.
type timelinePayload struct {
	Data struct {
		UserResult struct {
			Result struct {
				TimelineResponse struct {
					Timeline struct {
						Instructions []timelineInstruction `json:"instructions"`
					} `json:"timeline"`
				} `json:"timeline_response"`
			} `json:"result"`
		} `json:"user_result"`
	} `json:"data"`
}

type timelineInstruction struct {
	TypeName string          `json:"__typename"`
	Entries  []timelineEntry `json:"entries"`
}

type timelineEntry struct {
	Content struct {
		Content struct {
			TweetResult struct {
				Result *tweetResult `json:"result"`
			} `json:"tweetResult"`
		} `json:"content"`
	} `json:"content"`
}

type tweetResult struct {
	Legacy struct {
		FullText  string `json:"full_text"`
		CreatedAt string `json:"created_at"`
	} `json:"legacy"`
	Core struct {
		UserResult struct {
			Result struct {
				Legacy struct {
					IDStr          string `json:"id_str"`
					Description    string `json:"description"`
					FollowersCount int64  `json:"followers_count"`
					StatusesCount  int64  `json:"statuses_count"`
				} `json:"legacy"`
			} `json:"result"`
		} `json:"user_result"`
	} `json:"core"`
}
