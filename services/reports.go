package services

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"go-ecommerce-delivery/models"
	"go-ecommerce-delivery/store"
	"go-ecommerce-delivery/utils"

	"github.com/shopspring/decimal"
)

// Summary is the admin dashboard headline
type Summary struct {
	TotalOrders            int64   `json:"totalOrders"`
	TotalCustomers         int64   `json:"totalCustomers"`
	ActiveDeliveryPartners int64   `json:"activeDeliveryPartners"`
	RevenueToday           float64 `json:"revenueToday"`
}

// SalesPoint is one bucket of the sales chart
type SalesPoint struct {
	Period  string  `json:"period"`
	Orders  int64   `json:"orders"`
	Revenue float64 `json:"revenue"`
}

// SaleRow is one paid order in the sales export
type SaleRow struct {
	OrderID       string    `json:"orderId"`
	CreatedAt     time.Time `json:"createdAt"`
	PaidAt        time.Time `json:"paidAt"`
	Status        string    `json:"status"`
	Items         int       `json:"items"`
	PaymentMethod string    `json:"paymentMethod"`
	TotalPrice    float64   `json:"totalPrice"`
}

type salesWindow struct {
	unit   store.BucketUnit
	count  int
	layout string
}

var salesWindows = map[string]salesWindow{
	"daily":   {store.UnitDay, 30, "2006-01-02"},
	"weekly":  {store.UnitWeek, 12, "2006-01-02"},
	"monthly": {store.UnitMonth, 12, "2006-01"},
}

// Export kinds
const (
	ExportOrders    = "orders"
	ExportCustomers = "customers"
	ExportProducts  = "products"
	ExportSales     = "sales"
)

// ValidExportKind reports whether kind can be exported.
func ValidExportKind(kind string) bool {
	switch kind {
	case ExportOrders, ExportCustomers, ExportProducts, ExportSales:
		return true
	}
	return false
}

type ReportService struct {
	orders   store.Orders
	users    store.Users
	products store.Products
	loc      *time.Location
	now      func() time.Time
}

// Summary computes the dashboard counters. Revenue covers paid orders created today in the
// configured timezone.
func (s *ReportService) Summary(ctx context.Context) (*Summary, error) {
	totalOrders, err := s.orders.Count(ctx)
	if err != nil {
		return nil, storeErr(err, "")
	}
	customers, err := s.users.CountByRole(ctx, models.RoleUser)
	if err != nil {
		return nil, storeErr(err, "")
	}
	partners, err := s.users.CountByRole(ctx, models.RoleDelivery)
	if err != nil {
		return nil, storeErr(err, "")
	}

	start := store.Truncate(s.now(), store.UnitDay, s.loc)
	revenue, err := s.orders.PaidRevenue(ctx, start, start.AddDate(0, 0, 1))
	if err != nil {
		return nil, storeErr(err, "")
	}

	return &Summary{
		TotalOrders:            totalOrders,
		TotalCustomers:         customers,
		ActiveDeliveryPartners: partners,
		RevenueToday:           decimal.NewFromFloat(revenue).Round(2).InexactFloat64(),
	}, nil
}

// Sales returns one point per bucket of the period, oldest first, including empty buckets.
func (s *ReportService) Sales(ctx context.Context, period string) ([]SalesPoint, error) {
	if period == "" {
		period = "daily"
	}
	win, ok := salesWindows[period]
	if !ok {
		return nil, utils.NewValidation("period must be one of: daily weekly monthly")
	}

	current := store.Truncate(s.now(), win.unit, s.loc)
	from := step(current, win.unit, -(win.count - 1))

	buckets, err := s.orders.SalesBuckets(ctx, win.unit, from, s.loc)
	if err != nil {
		return nil, storeErr(err, "")
	}
	byPeriod := make(map[string]store.SalesBucket, len(buckets))
	for _, b := range buckets {
		byPeriod[b.Start.In(s.loc).Format(win.layout)] = b
	}

	points := make([]SalesPoint, 0, win.count)
	for i := 0; i < win.count; i++ {
		label := step(from, win.unit, i).Format(win.layout)
		b := byPeriod[label]
		points = append(points, SalesPoint{
			Period:  label,
			Orders:  b.Orders,
			Revenue: decimal.NewFromFloat(b.Revenue).Round(2).InexactFloat64(),
		})
	}
	return points, nil
}

func step(t time.Time, unit store.BucketUnit, n int) time.Time {
	switch unit {
	case store.UnitWeek:
		return t.AddDate(0, 0, 7*n)
	case store.UnitMonth:
		return t.AddDate(0, n, 0)
	default:
		return t.AddDate(0, 0, n)
	}
}

// Export streams every row of kind to w as a JSON array.
func (s *ReportService) Export(ctx context.Context, kind string, w io.Writer) error {
	if !ValidExportKind(kind) {
		return utils.NewNotFound("Unknown export type")
	}
	aw := &arrayWriter{w: w, enc: json.NewEncoder(w)}
	if err := aw.open(); err != nil {
		return err
	}

	var err error
	switch kind {
	case ExportOrders:
		err = s.orders.Each(ctx, func(o *models.Order) error { return aw.write(o) })
	case ExportCustomers:
		err = s.users.EachByRole(ctx, models.RoleUser, func(u *models.User) error { return aw.write(u) })
	case ExportProducts:
		err = s.products.Each(ctx, func(p *models.Product) error { return aw.write(p) })
	case ExportSales:
		err = s.orders.Each(ctx, func(o *models.Order) error {
			if o.PaidAt == nil {
				return nil
			}
			return aw.write(SaleRow{
				OrderID:       o.ID.Hex(),
				CreatedAt:     o.CreatedAt,
				PaidAt:        *o.PaidAt,
				Status:        string(o.Status),
				Items:         len(o.OrderItems),
				PaymentMethod: o.PaymentMethod,
				TotalPrice:    o.TotalPrice,
			})
		})
	}
	if err != nil {
		return err
	}
	return aw.close()
}

type arrayWriter struct {
	w     io.Writer
	enc   *json.Encoder
	count int
}

func (a *arrayWriter) open() error {
	_, err := io.WriteString(a.w, "[")
	return err
}

func (a *arrayWriter) write(v any) error {
	if a.count > 0 {
		if _, err := io.WriteString(a.w, ","); err != nil {
			return err
		}
	}
	a.count++
	return a.enc.Encode(v)
}

func (a *arrayWriter) close() error {
	_, err := io.WriteString(a.w, "]\n")
	return err
}
