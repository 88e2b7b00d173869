package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/ai-blog-cms/internal/adapter/observability"
	"github.com/fairyhunter13/ai-blog-cms/internal/domain"
)

const visitDedupTTL = 24 * time.Hour

// VisitDeduper is the slice of the Redis client used for unique-view keys.
type VisitDeduper interface {
	SetNX(ctx domain.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// Visit is one page view as seen by the HTTP layer.
type Visit struct {
	Path      string `json:"path" validate:"required,max=2048"`
	Slug      string `json:"slug" validate:"max=200"`
	PostID    *int64 `json:"postId,omitempty"`
	Referrer  string `json:"referrer" validate:"max=2048"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
	Country   string `json:"-"`
	City      string `json:"-"`
}

// TrackResult reports what a Track call recorded.
type TrackResult struct {
	PostID *int64 `json:"postId,omitempty"`
	Unique bool   `json:"unique"`
}

// TrackingService records visitors and per-post view counters.
type TrackingService struct {
	Visitors domain.VisitorRepository
	Posts    domain.PostRepository
	Dedup    VisitDeduper
	Salt     string

	now func() time.Time
}

func NewTrackingService(v domain.VisitorRepository, p domain.PostRepository, dedup VisitDeduper, salt string) TrackingService {
	return TrackingService{Visitors: v, Posts: p, Dedup: dedup, Salt: salt, now: time.Now}
}

// HashIP returns the salted SHA-256 of ip in hex. Raw addresses are never stored.
func (s TrackingService) HashIP(ip string) string {
	h := sha256.Sum256([]byte(s.Salt + "|" + ip))
	return hex.EncodeToString(h[:])
}

// Track stores a visitor row and, when the visit resolves to a post, bumps
// its view counters. A view is unique once per post, IP hash and UTC day.
func (s TrackingService) Track(ctx domain.Context, v Visit) (TrackResult, error) {
	if strings.TrimSpace(v.Path) == "" {
		return TrackResult{}, fmt.Errorf("op=usecase.Track: %w: path required", domain.ErrInvalidArgument)
	}
	now := time.Now().UTC()
	if s.now != nil {
		now = s.now().UTC()
	}
	ipHash := s.HashIP(v.IP)

	postID := v.PostID
	if postID == nil && v.Slug != "" && s.Posts != nil {
		p, err := s.Posts.GetBySlug(ctx, v.Slug)
		switch {
		case err == nil:
			postID = &p.ID
		case !errors.Is(err, domain.ErrNotFound):
			return TrackResult{}, fmt.Errorf("op=usecase.Track: %w", err)
		}
	}

	res := TrackResult{PostID: postID}
	if postID != nil {
		unique, err := s.firstViewToday(ctx, *postID, ipHash, now)
		if err != nil {
			return TrackResult{}, fmt.Errorf("op=usecase.Track: %w", err)
		}
		res.Unique = unique
	}

	err := s.Visitors.Insert(ctx, domain.Visitor{
		ID:        uuid.NewString(),
		IPHash:    ipHash,
		Path:      v.Path,
		PostID:    postID,
		UserAgent: v.UserAgent,
		Referrer:  v.Referrer,
		Country:   v.Country,
		City:      v.City,
		VisitedAt: now,
	})
	if err != nil {
		return TrackResult{}, fmt.Errorf("op=usecase.Track: %w", err)
	}
	if postID != nil {
		if err := s.Visitors.IncrementViews(ctx, *postID, res.Unique, now); err != nil {
			return TrackResult{}, fmt.Errorf("op=usecase.Track: %w", err)
		}
	}
	return res, nil
}

// firstViewToday claims the day's dedup key in Redis. Without Redis, or when
// Redis errors, it asks the visitor table; that check runs before the new
// row is inserted.
func (s TrackingService) firstViewToday(ctx domain.Context, postID int64, ipHash string, now time.Time) (bool, error) {
	if s.Dedup != nil {
		key := fmt.Sprintf("visit:%d:%s:%s", postID, ipHash, now.Format("2006-01-02"))
		ok, err := s.Dedup.SetNX(ctx, key, 1, visitDedupTTL).Result()
		if err == nil {
			return ok, nil
		}
		observability.LoggerFromContext(ctx).Warn("visit dedup via redis failed, using database", "error", err)
	}
	seen, err := s.Visitors.SeenToday(ctx, postID, ipHash, now)
	if err != nil {
		return false, err
	}
	return !seen, nil
}
