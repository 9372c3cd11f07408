package points

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrNotFound = errors.New("ledger not found")

const (
	badgeTier1Threshold = 7
	badgeTier2Threshold = 21
	badgeTier3Threshold = 60
)

// Ledger is one kid's running score: lifetime points, total credited
// completions, current daily streak, and earned badge tier.
type Ledger struct {
	KidID           string `json:"kid_id"`
	Points          int    `json:"points"`
	CompletionCount int    `json:"completion_count"`
	Streak          int    `json:"streak"`
	// LastCountedDate is the calendar day (YYYY-MM-DD, in the award
	// instant's location) of the last streak-counted completion. Guards
	// against double counting when the boundary sweep runs more than once
	// before midnight.
	LastCountedDate string `json:"last_counted_date,omitempty"`
	BadgeTier       int    `json:"badge_tier"`
}

type Repo interface {
	Get(ctx context.Context, kidID string) (Ledger, error)
	Put(ctx context.Context, l Ledger) error
}

type MemoryRepo struct {
	mu      sync.RWMutex
	ledgers map[string]Ledger
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{ledgers: map[string]Ledger{}}
}

func (r *MemoryRepo) Get(_ context.Context, kidID string) (Ledger, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.ledgers[kidID]
	if !ok {
		return Ledger{}, ErrNotFound
	}
	return l, nil
}

func (r *MemoryRepo) Put(_ context.Context, l Ledger) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ledgers[l.KidID] = l
	return nil
}

// AwardResult describes what a single credited completion changed.
type AwardResult struct {
	Points      int  `json:"points"`
	BonusPoints int  `json:"bonus_points"`
	Counted     bool `json:"counted"`
	Streak      int  `json:"streak"`
	NewTier     int  `json:"new_tier"`
	TierUp      bool `json:"tier_up"`
}

// Evaluator credits approvals against kid ledgers. It is invoked
// fire-and-forget on approved transitions; a failed award never blocks the
// approval itself.
type Evaluator struct {
	Repo Repo
}

func NewEvaluator(repo Repo) *Evaluator {
	return &Evaluator{Repo: repo}
}

// Award credits pts to kidID at the given instant. Base points accrue on
// every call; the streak and completion count advance at most once per
// calendar day of the award instant, so re-approvals and repeated boundary
// passes within one day cannot inflate them.
func (e *Evaluator) Award(ctx context.Context, kidID string, pts int, at time.Time) (AwardResult, error) {
	l, err := e.Repo.Get(ctx, kidID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return AwardResult{}, err
		}
		l = Ledger{KidID: kidID}
	}

	// day buckets follow the award instant's own location, never the host
	// timezone, so repeated awards bucket the same on every machine
	today := at.Format("2006-01-02")
	yesterday := at.AddDate(0, 0, -1).Format("2006-01-02")

	counted := false
	if l.LastCountedDate != today {
		l.CompletionCount++
		counted = true
		if l.LastCountedDate == yesterday && l.Streak > 0 {
			l.Streak++
		} else {
			l.Streak = 1
		}
		l.LastCountedDate = today
	}

	newTier := tierForCount(l.CompletionCount)
	tierUp := newTier > l.BadgeTier

	bonus := 0
	if tierUp {
		switch newTier {
		case 1:
			bonus += 2
		case 2:
			bonus += 4
		case 3:
			bonus += 8
		}
		l.BadgeTier = newTier
	}
	if counted && l.Streak > 0 && l.Streak%7 == 0 {
		bonus++
	}

	l.Points += pts + bonus
	if err := e.Repo.Put(ctx, l); err != nil {
		return AwardResult{}, err
	}

	return AwardResult{
		Points:      pts,
		BonusPoints: bonus,
		Counted:     counted,
		Streak:      l.Streak,
		NewTier:     newTier,
		TierUp:      tierUp,
	}, nil
}

func tierForCount(count int) int {
	switch {
	case count >= badgeTier3Threshold:
		return 3
	case count >= badgeTier2Threshold:
		return 2
	case count >= badgeTier1Threshold:
		return 1
	default:
		return 0
	}
}
