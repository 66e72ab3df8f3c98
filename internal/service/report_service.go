package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"medmarket/internal/domain"
	"medmarket/internal/repository"
)

// ReportPeriod окно агрегации отчёта о продажах
type ReportPeriod string

const (
	PeriodDaily   ReportPeriod = "daily"
	PeriodWeekly  ReportPeriod = "weekly"
	PeriodMonthly ReportPeriod = "monthly"
)

// SalesBucket агрегат одного временного ведра
type SalesBucket struct {
	Period        string          `json:"period"`
	Revenue       decimal.Decimal `json:"revenue"`
	OrderCount    int64           `json:"orders"`
	AvgOrderValue decimal.Decimal `json:"avg_order_value"`
}

// SalesReport отчёт продавца: вёдра плюс сводные итоги
type SalesReport struct {
	Period        ReportPeriod    `json:"period"`
	Buckets       []SalesBucket   `json:"buckets"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	TotalOrders   int64           `json:"total_orders"`
	AvgOrderValue decimal.Decimal `json:"avg_order_value"`
}

// ReportService чистая агрегация над множеством заказов: пересчитывается
// по требованию из снимка истории, ничего не кэширует
type ReportService struct {
	orders repository.OrderRepository
}

func NewReportService(orders repository.OrderRepository) *ReportService {
	return &ReportService{orders: orders}
}

// SalesReport выручка, число заказов и средний чек по вёдрам. В выручку
// входят только Accepted и Completed заказы; Pending и Rejected не
// учитываются ни в одном ведре.
func (s *ReportService) SalesReport(ctx context.Context, sellerID string, period ReportPeriod) (*SalesReport, error) {
	if sellerID == "" {
		return nil, ErrInvalidInput
	}
	switch period {
	case PeriodDaily, PeriodWeekly, PeriodMonthly:
	default:
		return nil, ErrInvalidInput
	}

	orders, err := s.orders.List(ctx, repository.OrderFilter{SellerID: sellerID})
	if err != nil {
		return nil, err
	}

	type agg struct {
		revenue decimal.Decimal
		count   int64
	}
	buckets := make(map[string]*agg)
	total := agg{revenue: decimal.Zero}
	for _, o := range orders {
		if o.Status != domain.OrderStatusAccepted && o.Status != domain.OrderStatusCompleted {
			continue
		}
		label := bucketLabel(o.CreatedAt, period)
		b, ok := buckets[label]
		if !ok {
			b = &agg{revenue: decimal.Zero}
			buckets[label] = b
		}
		b.revenue = b.revenue.Add(o.TotalAmount)
		b.count++
		total.revenue = total.revenue.Add(o.TotalAmount)
		total.count++
	}

	report := &SalesReport{
		Period:       period,
		Buckets:      make([]SalesBucket, 0, len(buckets)),
		TotalRevenue: total.revenue,
		TotalOrders:  total.count,
	}
	for label, b := range buckets {
		report.Buckets = append(report.Buckets, SalesBucket{
			Period:        label,
			Revenue:       b.revenue,
			OrderCount:    b.count,
			AvgOrderValue: safeAvg(b.revenue, b.count),
		})
	}
	sort.Slice(report.Buckets, func(i, j int) bool { return report.Buckets[i].Period < report.Buckets[j].Period })
	report.AvgOrderValue = safeAvg(total.revenue, total.count)
	return report, nil
}

// safeAvg средний чек; ноль заказов — ноль, а не деление на ноль
func safeAvg(revenue decimal.Decimal, count int64) decimal.Decimal {
	if count == 0 {
		return decimal.Zero
	}
	return revenue.Div(decimal.NewFromInt(count)).Round(2)
}

// bucketLabel метка ведра: день, ISO-неделя или месяц по createdAt
func bucketLabel(t time.Time, period ReportPeriod) string {
	t = t.UTC()
	switch period {
	case PeriodWeekly:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	case PeriodMonthly:
		return t.Format("2006-01")
	default:
		return t.Format("2006-01-02")
	}
}
