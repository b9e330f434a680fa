package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go-ecommerce-delivery/models"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NewMemory returns a Store kept in process memory. Documents are copied through BSON on
// every read and write, so callers never share state with the store, and the round trip
// matches what MongoDB would return.
func NewMemory() *Store {
	mem := &memory{
		users:      map[primitive.ObjectID]*models.User{},
		products:   map[primitive.ObjectID]*models.Product{},
		categories: map[primitive.ObjectID]*models.Category{},
		orders:     map[primitive.ObjectID]*models.Order{},
		otps:       map[string]*models.Otp{},
	}
	return &Store{
		Users:      memUsers{mem},
		Products:   memProducts{mem},
		Categories: memCategories{mem},
		Orders:     memOrders{mem},
		Otps:       memOtps{mem},
		Settings:   memSettings{mem},
	}
}

type memory struct {
	mu         sync.RWMutex
	users      map[primitive.ObjectID]*models.User
	products   map[primitive.ObjectID]*models.Product
	categories map[primitive.ObjectID]*models.Category
	orders     map[primitive.ObjectID]*models.Order
	otps       map[string]*models.Otp
	delivery   *models.DeliverySettings
}

func clone[T any](v *T) *T {
	data, err := bson.Marshal(v)
	if err != nil {
		panic(err)
	}
	out := new(T)
	if err := bson.Unmarshal(data, out); err != nil {
		panic(err)
	}
	return out
}

func values[T any](m map[primitive.ObjectID]*T, keep func(*T) bool) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		if keep == nil || keep(v) {
			out = append(out, *clone(v))
		}
	}
	return out
}

func newestFirst(aCreated, bCreated time.Time, aID, bID primitive.ObjectID) bool {
	if !aCreated.Equal(bCreated) {
		return aCreated.After(bCreated)
	}
	return aID.Hex() > bID.Hex()
}

// users

type memUsers struct{ m *memory }

func (s memUsers) conflicts(u *models.User) bool {
	for id, existing := range s.m.users {
		if id == u.ID {
			continue
		}
		if existing.Username == u.Username || existing.Email == u.Email ||
			(u.Phone != "" && existing.Phone == u.Phone) {
			return true
		}
	}
	return false
}

func (s memUsers) Create(_ context.Context, u *models.User) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	if s.conflicts(u) {
		return ErrDuplicate
	}
	s.m.users[u.ID] = clone(u)
	return nil
}

func (s memUsers) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	u, ok := s.m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(u), nil
}

func (s memUsers) FindByLogin(_ context.Context, identifier string) (*models.User, error) {
	if identifier == "" {
		return nil, ErrNotFound
	}
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	for _, u := range s.m.users {
		if u.Email == identifier || u.Username == identifier || u.Phone == identifier {
			return clone(u), nil
		}
	}
	return nil, ErrNotFound
}

func (s memUsers) FindByPhone(_ context.Context, phone string) (*models.User, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	for _, u := range s.m.users {
		if phone != "" && u.Phone == phone {
			return clone(u), nil
		}
	}
	return nil, ErrNotFound
}

func (s memUsers) Save(_ context.Context, u *models.User) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	current, ok := s.m.users[u.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Version != u.Version {
		return ErrConflict
	}
	if s.conflicts(u) {
		return ErrDuplicate
	}
	u.Version++
	s.m.users[u.ID] = clone(u)
	return nil
}

func (s memUsers) Delete(_ context.Context, id primitive.ObjectID) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.users[id]; !ok {
		return ErrNotFound
	}
	delete(s.m.users, id)
	return nil
}

func (s memUsers) ListByRole(_ context.Context, role models.Role) ([]models.User, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	out := values(s.m.users, func(u *models.User) bool { return u.Role == role })
	sort.Slice(out, func(i, j int) bool {
		return newestFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return out, nil
}

func (s memUsers) CountByRole(_ context.Context, role models.Role) (int64, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	var n int64
	for _, u := range s.m.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

func (s memUsers) EachByRole(ctx context.Context, role models.Role, fn func(*models.User) error) error {
	users, _ := s.ListByRole(ctx, role)
	for i := range users {
		if err := fn(&users[i]); err != nil {
			return err
		}
	}
	return nil
}

// products

type memProducts struct{ m *memory }

func (s memProducts) Create(_ context.Context, p *models.Product) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	if _, ok := s.m.products[p.ID]; ok {
		return ErrDuplicate
	}
	p.SyncSortPrice()
	s.m.products[p.ID] = clone(p)
	return nil
}

func (s memProducts) FindByID(_ context.Context, id primitive.ObjectID) (*models.Product, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	p, ok := s.m.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(p), nil
}

func (s memProducts) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.Product, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	out := make([]models.Product, 0, len(ids))
	seen := map[primitive.ObjectID]bool{}
	for _, id := range ids {
		if p, ok := s.m.products[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, *clone(p))
		}
	}
	return out, nil
}

func (s memProducts) Save(_ context.Context, p *models.Product) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.products[p.ID]; !ok {
		return ErrNotFound
	}
	p.SyncSortPrice()
	s.m.products[p.ID] = clone(p)
	return nil
}

func (s memProducts) Delete(_ context.Context, id primitive.ObjectID) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.products[id]; !ok {
		return ErrNotFound
	}
	delete(s.m.products, id)
	return nil
}

func (s memProducts) List(_ context.Context, q ProductQuery) ([]models.Product, int64, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	keyword := strings.ToLower(strings.TrimSpace(q.Keyword))
	all := values(s.m.products, func(p *models.Product) bool {
		if q.ActiveOnly && !p.IsActive {
			return false
		}
		if q.CategoryID != nil && p.CategoryID != *q.CategoryID {
			return false
		}
		return keyword == "" || strings.Contains(strings.ToLower(p.Name), keyword)
	})
	sortProducts(all, q.Sort)

	total := int64(len(all))
	start := min(q.Skip, total)
	end := total
	if q.Limit > 0 {
		end = min(start+q.Limit, total)
	}
	return all[start:end], total, nil
}

func sortProducts(ps []models.Product, key string) {
	sort.Slice(ps, func(i, j int) bool {
		a, b := ps[i], ps[j]
		switch key {
		case SortPriceLow:
			if a.SortPrice != b.SortPrice {
				return a.SortPrice < b.SortPrice
			}
		case SortPriceHigh:
			if a.SortPrice != b.SortPrice {
				return a.SortPrice > b.SortPrice
			}
		case SortName:
			if a.Name != b.Name {
				return a.Name < b.Name
			}
		}
		return newestFirst(a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})
}

func (s memProducts) Similar(_ context.Context, categoryID, excludeID primitive.ObjectID, limit int64) ([]models.Product, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	out := values(s.m.products, func(p *models.Product) bool {
		return p.IsActive && p.CategoryID == categoryID && p.ID != excludeID
	})
	sortProducts(out, SortNewest)
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s memProducts) Each(ctx context.Context, fn func(*models.Product) error) error {
	all, _, _ := s.List(ctx, ProductQuery{})
	for i := range all {
		if err := fn(&all[i]); err != nil {
			return err
		}
	}
	return nil
}

// categories

type memCategories struct{ m *memory }

func (s memCategories) nameTaken(c *models.Category) bool {
	for id, existing := range s.m.categories {
		if id != c.ID && existing.Name == c.Name {
			return true
		}
	}
	return false
}

func (s memCategories) Create(_ context.Context, c *models.Category) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	if s.nameTaken(c) {
		return ErrDuplicate
	}
	s.m.categories[c.ID] = clone(c)
	return nil
}

func (s memCategories) FindByID(_ context.Context, id primitive.ObjectID) (*models.Category, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	c, ok := s.m.categories[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(c), nil
}

func (s memCategories) FindByName(_ context.Context, name string) (*models.Category, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	for _, c := range s.m.categories {
		if strings.EqualFold(c.Name, name) {
			return clone(c), nil
		}
	}
	return nil, ErrNotFound
}

func (s memCategories) List(_ context.Context, activeOnly bool) ([]models.Category, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	out := values(s.m.categories, func(c *models.Category) bool { return !activeOnly || c.IsActive })
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s memCategories) Save(_ context.Context, c *models.Category) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.categories[c.ID]; !ok {
		return ErrNotFound
	}
	if s.nameTaken(c) {
		return ErrDuplicate
	}
	s.m.categories[c.ID] = clone(c)
	return nil
}

func (s memCategories) Delete(_ context.Context, id primitive.ObjectID) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.categories[id]; !ok {
		return ErrNotFound
	}
	delete(s.m.categories, id)
	return nil
}

// orders

type memOrders struct{ m *memory }

func (s memOrders) Create(_ context.Context, o *models.Order) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	if _, ok := s.m.orders[o.ID]; ok {
		return ErrDuplicate
	}
	s.m.orders[o.ID] = clone(o)
	return nil
}

func (s memOrders) FindByID(_ context.Context, id primitive.ObjectID) (*models.Order, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	o, ok := s.m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(o), nil
}

func (s memOrders) FindByVendorOrderID(_ context.Context, vendorOrderID string) (*models.Order, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	for _, o := range s.m.orders {
		if o.UEngage != nil && vendorOrderID != "" && o.UEngage.VendorOrderID == vendorOrderID {
			return clone(o), nil
		}
	}
	return nil, ErrNotFound
}

func (s memOrders) Save(_ context.Context, o *models.Order) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	current, ok := s.m.orders[o.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Version != o.Version {
		return ErrConflict
	}
	o.Version++
	s.m.orders[o.ID] = clone(o)
	return nil
}

func (s memOrders) sorted(keep func(*models.Order) bool) []models.Order {
	out := values(s.m.orders, keep)
	sort.Slice(out, func(i, j int) bool {
		return newestFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return out
}

func (s memOrders) ListByUser(_ context.Context, userID primitive.ObjectID) ([]models.Order, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	return s.sorted(func(o *models.Order) bool { return o.UserID == userID }), nil
}

func (s memOrders) ListByDeliveryPerson(_ context.Context, partnerID primitive.ObjectID) ([]models.Order, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	return s.sorted(func(o *models.Order) bool {
		return o.DeliveryPerson != nil && *o.DeliveryPerson == partnerID
	}), nil
}

func (s memOrders) List(_ context.Context, f OrderFilter) ([]models.Order, int64, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	all := s.sorted(func(o *models.Order) bool { return f.Status == "" || o.Status == f.Status })
	total := int64(len(all))
	if f.PageSize <= 0 {
		return all, total, nil
	}
	page := max(f.Page, 1)
	start := min((page-1)*f.PageSize, total)
	end := min(start+f.PageSize, total)
	return all[start:end], total, nil
}

func (s memOrders) Count(_ context.Context) (int64, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	return int64(len(s.m.orders)), nil
}

func (s memOrders) PaidRevenue(_ context.Context, from, to time.Time) (float64, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	sum := decimal.Zero
	for _, o := range s.m.orders {
		if o.PaidAt != nil && !o.CreatedAt.Before(from) && o.CreatedAt.Before(to) {
			sum = sum.Add(decimal.NewFromFloat(o.TotalPrice))
		}
	}
	return sum.InexactFloat64(), nil
}

func (s memOrders) SalesBuckets(_ context.Context, unit BucketUnit, from time.Time, loc *time.Location) ([]SalesBucket, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	type acc struct {
		orders  int64
		revenue decimal.Decimal
	}
	byStart := map[time.Time]*acc{}
	for _, o := range s.m.orders {
		if o.PaidAt == nil || o.CreatedAt.Before(from) {
			continue
		}
		start := Truncate(o.CreatedAt, unit, loc)
		a, ok := byStart[start]
		if !ok {
			a = &acc{revenue: decimal.Zero}
			byStart[start] = a
		}
		a.orders++
		a.revenue = a.revenue.Add(decimal.NewFromFloat(o.TotalPrice))
	}
	out := make([]SalesBucket, 0, len(byStart))
	for start, a := range byStart {
		out = append(out, SalesBucket{Start: start, Orders: a.orders, Revenue: a.revenue.InexactFloat64()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (s memOrders) Each(_ context.Context, fn func(*models.Order) error) error {
	s.m.mu.RLock()
	all := s.sorted(nil)
	s.m.mu.RUnlock()
	for i := range all {
		if err := fn(&all[i]); err != nil {
			return err
		}
	}
	return nil
}

// otps

type memOtps struct{ m *memory }

func (s memOtps) Replace(_ context.Context, otp *models.Otp) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if existing, ok := s.m.otps[otp.Phone]; ok {
		otp.ID = existing.ID
	} else if otp.ID.IsZero() {
		otp.ID = primitive.NewObjectID()
	}
	s.m.otps[otp.Phone] = clone(otp)
	return nil
}

func (s memOtps) FindLive(_ context.Context, phone string, now time.Time) (*models.Otp, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	otp, ok := s.m.otps[phone]
	if !ok || !otp.Live(now) {
		return nil, ErrNotFound
	}
	return clone(otp), nil
}

func (s memOtps) Delete(_ context.Context, phone string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	delete(s.m.otps, phone)
	return nil
}

// settings

type memSettings struct{ m *memory }

func (s memSettings) Delivery(_ context.Context) (*models.DeliverySettings, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	if s.m.delivery == nil {
		return DefaultDeliverySettings(), nil
	}
	return clone(s.m.delivery), nil
}

func (s memSettings) SaveDelivery(_ context.Context, settings *models.DeliverySettings) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	settings.ID = models.DeliverySettingsID
	s.m.delivery = clone(settings)
	return nil
}
