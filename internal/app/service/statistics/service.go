package statistics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/fatflowers/fplcoach/internal/models"
	"github.com/fatflowers/fplcoach/pkg/apperr"
	"github.com/fatflowers/fplcoach/pkg/types"
)

type StatisticType string

const (
	StatisticTypeUsersPerPlan          StatisticType = "users_per_plan"
	StatisticTypeClaimsPerStatus       StatisticType = "claims_per_status"
	StatisticTypeVerifiedBonusTotal    StatisticType = "verified_bonus_total"
	StatisticTypeMessagesUsedThisMonth StatisticType = "messages_used_this_month"
	StatisticTypeDailySignups          StatisticType = "daily_signups"
)

var StatisticTypes = []StatisticType{
	StatisticTypeUsersPerPlan,
	StatisticTypeClaimsPerStatus,
	StatisticTypeVerifiedBonusTotal,
	StatisticTypeMessagesUsedThisMonth,
	StatisticTypeDailySignups,
}

const (
	defaultDays = 30
	maxDays     = 365
)

type StatisticDataItem struct {
	ID StatisticType `json:"id"`
}

type StatisticRequest struct {
	DataItems []*StatisticDataItem `json:"data_items"`
	// Days bounds daily series; defaults to 30.
	Days int `json:"days"`
}

type StatisticResponseDataItem struct {
	Date   string `json:"date,omitempty"`
	Label  string `json:"label,omitempty"`
	Value  int64  `json:"value"`
	Value2 int64  `json:"value2,omitempty"`
}

type StatisticResponse struct {
	DataItems map[StatisticType][]StatisticResponseDataItem `json:"data_items"`
}

// Service computes the admin overview counters.
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

func New(db *gorm.DB) *Service { return &Service{db: db, now: time.Now} }

func (s *Service) getUsersPerPlan(ctx context.Context, _ *StatisticRequest) ([]StatisticResponseDataItem, error) {
	var results []StatisticResponseDataItem
	err := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Select("plan as label, COUNT(*) as value").
		Group("plan").
		Order("plan").
		Scan(&results).Error
	return results, err
}

// value2 is the sum of promised rewards in each status.
func (s *Service) getClaimsPerStatus(ctx context.Context, _ *StatisticRequest) ([]StatisticResponseDataItem, error) {
	var results []StatisticResponseDataItem
	err := s.db.WithContext(ctx).Model(&models.SocialAction{}).
		Select("status as label, COUNT(*) as value, COALESCE(SUM(reward_messages), 0) as value2").
		Group("status").
		Order("status").
		Scan(&results).Error
	return results, err
}

func (s *Service) getVerifiedBonusTotal(ctx context.Context, _ *StatisticRequest) ([]StatisticResponseDataItem, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&models.SocialAction{}).
		Select("COALESCE(SUM(reward_messages), 0)").
		Where("status = ?", types.ClaimStatusVerified).
		Scan(&total).Error
	if err != nil {
		return nil, err
	}
	return []StatisticResponseDataItem{{Value: total}}, nil
}

// value2 is the summed limit of the month.
func (s *Service) getMessagesUsedThisMonth(ctx context.Context, _ *StatisticRequest) ([]StatisticResponseDataItem, error) {
	now := s.now()
	var results []StatisticResponseDataItem
	err := s.db.WithContext(ctx).Model(&models.UsageTracking{}).
		Select("COALESCE(SUM(messages_used), 0) as value, COALESCE(SUM(messages_limit), 0) as value2").
		Where("month = ? AND year = ?", int(now.Month()), now.Year()).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}
	for i := range results {
		results[i].Date = now.Format("2006-01")
	}
	return results, nil
}

// Days are bucketed in UTC in Go so the query stays portable across dialects.
func (s *Service) getDailySignups(ctx context.Context, request *StatisticRequest) ([]StatisticResponseDataItem, error) {
	days := request.Days
	if days <= 0 {
		days = defaultDays
	}
	days = min(days, maxDays)
	today := s.now().UTC().Truncate(24 * time.Hour)
	since := today.AddDate(0, 0, -(days - 1))

	var created []time.Time
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("created_at >= ?", since).Pluck("created_at", &created).Error; err != nil {
		return nil, err
	}
	counts := lo.CountValuesBy(created, func(t time.Time) string { return t.UTC().Format(time.DateOnly) })

	results := make([]StatisticResponseDataItem, 0, days)
	for d := today; !d.Before(since); d = d.AddDate(0, 0, -1) {
		key := d.Format(time.DateOnly)
		results = append(results, StatisticResponseDataItem{Date: key, Value: int64(counts[key])})
	}
	return results, nil
}

func (s *Service) getStatistic(ctx context.Context, request *StatisticRequest, dataItem *StatisticDataItem) ([]StatisticResponseDataItem, error) {
	switch dataItem.ID {
	case StatisticTypeUsersPerPlan:
		return s.getUsersPerPlan(ctx, request)
	case StatisticTypeClaimsPerStatus:
		return s.getClaimsPerStatus(ctx, request)
	case StatisticTypeVerifiedBonusTotal:
		return s.getVerifiedBonusTotal(ctx, request)
	case StatisticTypeMessagesUsedThisMonth:
		return s.getMessagesUsedThisMonth(ctx, request)
	case StatisticTypeDailySignups:
		return s.getDailySignups(ctx, request)
	default:
		return nil, apperr.Validation("invalid data item id: %s", dataItem.ID)
	}
}

// GetStatistic computes the requested data items concurrently. An empty
// request computes all of them.
func (s *Service) GetStatistic(ctx context.Context, request *StatisticRequest) (*StatisticResponse, error) {
	if request == nil {
		request = &StatisticRequest{}
	}
	if len(request.DataItems) == 0 {
		request.DataItems = lo.Map(StatisticTypes, func(t StatisticType, _ int) *StatisticDataItem { return &StatisticDataItem{ID: t} })
	}

	var wg sync.WaitGroup
	errChan := make(chan error, len(request.DataItems))
	resChan := make(chan *lo.Entry[StatisticType, []StatisticResponseDataItem], len(request.DataItems))

	for _, item := range request.DataItems {
		wg.Add(1)
		go func(di *StatisticDataItem) {
			defer wg.Done()
			res, err := s.getStatistic(ctx, request, di)
			if err != nil {
				errChan <- fmt.Errorf("statistic %s: %w", di.ID, err)
				return
			}
			resChan <- &lo.Entry[StatisticType, []StatisticResponseDataItem]{Key: di.ID, Value: res}
		}(item)
	}

	go func() { wg.Wait(); close(errChan); close(resChan) }()

	results := make(map[StatisticType][]StatisticResponseDataItem)
	for i := 0; i < len(request.DataItems); i++ {
		select {
		case err := <-errChan:
			if err != nil {
				return nil, err
			}
		case entry := <-resChan:
			results[entry.Key] = entry.Value
		}
	}
	return &StatisticResponse{DataItems: results}, nil
}
