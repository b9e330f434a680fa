package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go-ecommerce-delivery/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection      = "users"
	productsCollection   = "products"
	categoriesCollection = "categories"
	ordersCollection     = "orders"
	otpsCollection       = "otps"
	settingsCollection   = "settings"
)

// Connect opens a MongoDB client and pings it.
func Connect(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// NewMongo returns a Store backed by the given database.
func NewMongo(db *mongo.Database) *Store {
	return &Store{
		Users:      &mongoUsers{coll: db.Collection(usersCollection)},
		Products:   &mongoProducts{coll: db.Collection(productsCollection)},
		Categories: &mongoCategories{coll: db.Collection(categoriesCollection)},
		Orders:     &mongoOrders{coll: db.Collection(ordersCollection)},
		Otps:       &mongoOtps{coll: db.Collection(otpsCollection)},
		Settings:   &mongoSettings{coll: db.Collection(settingsCollection)},
	}
}

// EnsureIndexes creates the unique, lookup and TTL indexes the stores rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "phone", Value: 1}}, Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(bson.M{"phone": bson.M{"$gt": ""}})},
			{Keys: bson.D{{Key: "role", Value: 1}}},
		},
		categoriesCollection: {
			{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		productsCollection: {
			{Keys: bson.D{{Key: "category", Value: 1}, {Key: "isActive", Value: 1}}},
		},
		ordersCollection: {
			{Keys: bson.D{{Key: "uengage.vendorOrderId", Value: 1}}, Options: options.Index().SetSparse(true)},
			{Keys: bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "deliveryPerson", Value: 1}}, Options: options.Index().SetSparse(true)},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
		otpsCollection: {
			{Keys: bson.D{{Key: "phone", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "expiresAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
		},
	}
	for name, idx := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("create %s indexes: %w", name, err)
		}
	}
	return nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicate
	}
	return err
}

func findOne[T any](ctx context.Context, coll *mongo.Collection, filter any, opts ...*options.FindOneOptions) (*T, error) {
	out := new(T)
	if err := coll.FindOne(ctx, filter, opts...).Decode(out); err != nil {
		return nil, translate(err)
	}
	return out, nil
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter any, opts ...*options.FindOptions) ([]T, error) {
	cursor, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	out := []T{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func each[T any](ctx context.Context, coll *mongo.Collection, filter any, fn func(*T) error, opts ...*options.FindOptions) error {
	cursor, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		doc := new(T)
		if err := cursor.Decode(doc); err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	return cursor.Err()
}

// replaceVersioned swaps the document only if the stored version still matches.
func replaceVersioned(ctx context.Context, coll *mongo.Collection, id primitive.ObjectID, version *int64, doc any) error {
	prev := *version
	*version = prev + 1
	res, err := coll.ReplaceOne(ctx, bson.M{"_id": id, "version": prev}, doc)
	if err != nil {
		*version = prev
		return translate(err)
	}
	if res.MatchedCount == 1 {
		return nil
	}

	*version = prev
	n, err := coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrConflict
}

func deleteByID(ctx context.Context, coll *mongo.Collection, id primitive.ObjectID) error {
	res, err := coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func replaceByID(ctx context.Context, coll *mongo.Collection, id primitive.ObjectID, doc any) error {
	res, err := coll.ReplaceOne(ctx, bson.M{"_id": id}, doc)
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func newestFirstOpts() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
}

// users

type mongoUsers struct{ coll *mongo.Collection }

func (s *mongoUsers) Create(ctx context.Context, u *models.User) error {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	_, err := s.coll.InsertOne(ctx, u)
	return translate(err)
}

func (s *mongoUsers) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return findOne[models.User](ctx, s.coll, bson.M{"_id": id})
}

func (s *mongoUsers) FindByLogin(ctx context.Context, identifier string) (*models.User, error) {
	if identifier == "" {
		return nil, ErrNotFound
	}
	return findOne[models.User](ctx, s.coll, bson.M{"$or": bson.A{
		bson.M{"email": identifier},
		bson.M{"username": identifier},
		bson.M{"phone": identifier},
	}})
}

func (s *mongoUsers) FindByPhone(ctx context.Context, phone string) (*models.User, error) {
	if phone == "" {
		return nil, ErrNotFound
	}
	return findOne[models.User](ctx, s.coll, bson.M{"phone": phone})
}

func (s *mongoUsers) Save(ctx context.Context, u *models.User) error {
	return replaceVersioned(ctx, s.coll, u.ID, &u.Version, u)
}

func (s *mongoUsers) Delete(ctx context.Context, id primitive.ObjectID) error {
	return deleteByID(ctx, s.coll, id)
}

func (s *mongoUsers) ListByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	return findAll[models.User](ctx, s.coll, bson.M{"role": role}, newestFirstOpts())
}

func (s *mongoUsers) CountByRole(ctx context.Context, role models.Role) (int64, error) {
	return s.coll.CountDocuments(ctx, bson.M{"role": role})
}

func (s *mongoUsers) EachByRole(ctx context.Context, role models.Role, fn func(*models.User) error) error {
	return each(ctx, s.coll, bson.M{"role": role}, fn, newestFirstOpts())
}

// products

type mongoProducts struct{ coll *mongo.Collection }

func (s *mongoProducts) Create(ctx context.Context, p *models.Product) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	p.SyncSortPrice()
	_, err := s.coll.InsertOne(ctx, p)
	return translate(err)
}

func (s *mongoProducts) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	return findOne[models.Product](ctx, s.coll, bson.M{"_id": id})
}

func (s *mongoProducts) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}
	return findAll[models.Product](ctx, s.coll, bson.M{"_id": bson.M{"$in": ids}})
}

func (s *mongoProducts) Save(ctx context.Context, p *models.Product) error {
	p.SyncSortPrice()
	return replaceByID(ctx, s.coll, p.ID, p)
}

func (s *mongoProducts) Delete(ctx context.Context, id primitive.ObjectID) error {
	return deleteByID(ctx, s.coll, id)
}

func productFilter(q ProductQuery) bson.M {
	filter := bson.M{}
	if q.ActiveOnly {
		filter["isActive"] = true
	}
	if q.CategoryID != nil {
		filter["category"] = *q.CategoryID
	}
	if kw := strings.TrimSpace(q.Keyword); kw != "" {
		filter["name"] = primitive.Regex{Pattern: regexp.QuoteMeta(kw), Options: "i"}
	}
	return filter
}

func productSort(key string) bson.D {
	tail := bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
	switch key {
	case SortPriceLow:
		return append(bson.D{{Key: "sortPrice", Value: 1}}, tail...)
	case SortPriceHigh:
		return append(bson.D{{Key: "sortPrice", Value: -1}}, tail...)
	case SortName:
		return append(bson.D{{Key: "name", Value: 1}}, tail...)
	}
	return tail
}

func (s *mongoProducts) List(ctx context.Context, q ProductQuery) ([]models.Product, int64, error) {
	filter := productFilter(q)
	total, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().SetSort(productSort(q.Sort)).SetSkip(q.Skip)
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}
	products, err := findAll[models.Product](ctx, s.coll, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (s *mongoProducts) Similar(ctx context.Context, categoryID, excludeID primitive.ObjectID, limit int64) ([]models.Product, error) {
	filter := bson.M{"category": categoryID, "isActive": true, "_id": bson.M{"$ne": excludeID}}
	return findAll[models.Product](ctx, s.coll, filter, newestFirstOpts().SetLimit(limit))
}

func (s *mongoProducts) Each(ctx context.Context, fn func(*models.Product) error) error {
	return each(ctx, s.coll, bson.M{}, fn, newestFirstOpts())
}

// categories

type mongoCategories struct{ coll *mongo.Collection }

func (s *mongoCategories) Create(ctx context.Context, c *models.Category) error {
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	_, err := s.coll.InsertOne(ctx, c)
	return translate(err)
}

func (s *mongoCategories) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Category, error) {
	return findOne[models.Category](ctx, s.coll, bson.M{"_id": id})
}

func (s *mongoCategories) FindByName(ctx context.Context, name string) (*models.Category, error) {
	pattern := "^" + regexp.QuoteMeta(strings.TrimSpace(name)) + "$"
	return findOne[models.Category](ctx, s.coll, bson.M{"name": primitive.Regex{Pattern: pattern, Options: "i"}})
}

func (s *mongoCategories) List(ctx context.Context, activeOnly bool) ([]models.Category, error) {
	filter := bson.M{}
	if activeOnly {
		filter["isActive"] = true
	}
	return findAll[models.Category](ctx, s.coll, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
}

func (s *mongoCategories) Save(ctx context.Context, c *models.Category) error {
	return replaceByID(ctx, s.coll, c.ID, c)
}

func (s *mongoCategories) Delete(ctx context.Context, id primitive.ObjectID) error {
	return deleteByID(ctx, s.coll, id)
}

// orders

type mongoOrders struct{ coll *mongo.Collection }

func (s *mongoOrders) Create(ctx context.Context, o *models.Order) error {
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	_, err := s.coll.InsertOne(ctx, o)
	return translate(err)
}

func (s *mongoOrders) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	return findOne[models.Order](ctx, s.coll, bson.M{"_id": id})
}

func (s *mongoOrders) FindByVendorOrderID(ctx context.Context, vendorOrderID string) (*models.Order, error) {
	if vendorOrderID == "" {
		return nil, ErrNotFound
	}
	return findOne[models.Order](ctx, s.coll, bson.M{"uengage.vendorOrderId": vendorOrderID})
}

func (s *mongoOrders) Save(ctx context.Context, o *models.Order) error {
	return replaceVersioned(ctx, s.coll, o.ID, &o.Version, o)
}

func (s *mongoOrders) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error) {
	return findAll[models.Order](ctx, s.coll, bson.M{"user": userID}, newestFirstOpts())
}

func (s *mongoOrders) ListByDeliveryPerson(ctx context.Context, partnerID primitive.ObjectID) ([]models.Order, error) {
	return findAll[models.Order](ctx, s.coll, bson.M{"deliveryPerson": partnerID}, newestFirstOpts())
}

func (s *mongoOrders) List(ctx context.Context, f OrderFilter) ([]models.Order, int64, error) {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	total, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := newestFirstOpts()
	if f.PageSize > 0 {
		page := max(f.Page, 1)
		opts.SetSkip((page - 1) * f.PageSize).SetLimit(f.PageSize)
	}
	orders, err := findAll[models.Order](ctx, s.coll, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (s *mongoOrders) Count(ctx context.Context) (int64, error) {
	return s.coll.CountDocuments(ctx, bson.M{})
}

func paidSince(from time.Time) bson.M {
	return bson.M{"paidAt": bson.M{"$ne": nil}, "createdAt": bson.M{"$gte": from}}
}

func (s *mongoOrders) PaidRevenue(ctx context.Context, from, to time.Time) (float64, error) {
	match := paidSince(from)
	match["createdAt"] = bson.M{"$gte": from, "$lt": to}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{"_id": nil, "revenue": bson.M{"$sum": "$totalPrice"}}}},
	}
	cursor, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, err
	}
	var rows []struct {
		Revenue float64 `bson:"revenue"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Revenue, nil
}

// mongoTimezone names loc the way $dateTrunc accepts it. time.Local has no IANA name, so
// its current UTC offset is used instead.
func mongoTimezone(loc *time.Location) string {
	if loc == nil {
		return "UTC"
	}
	if name := loc.String(); name != "Local" && name != "" {
		return name
	}
	return time.Now().In(loc).Format("-07:00")
}

func (s *mongoOrders) SalesBuckets(ctx context.Context, unit BucketUnit, from time.Time, loc *time.Location) ([]SalesBucket, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: paidSince(from)}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{"$dateTrunc": bson.M{
				"date":        "$createdAt",
				"unit":        string(unit),
				"timezone":    mongoTimezone(loc),
				"startOfWeek": "monday",
			}},
			"orders":  bson.M{"$sum": 1},
			"revenue": bson.M{"$sum": "$totalPrice"},
		}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}
	cursor, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Start   time.Time `bson:"_id"`
		Orders  int64     `bson:"orders"`
		Revenue float64   `bson:"revenue"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make([]SalesBucket, len(rows))
	for i, r := range rows {
		out[i] = SalesBucket{Start: r.Start.In(loc), Orders: r.Orders, Revenue: r.Revenue}
	}
	return out, nil
}

func (s *mongoOrders) Each(ctx context.Context, fn func(*models.Order) error) error {
	return each(ctx, s.coll, bson.M{}, fn, newestFirstOpts())
}

// otps

type mongoOtps struct{ coll *mongo.Collection }

func (s *mongoOtps) Replace(ctx context.Context, otp *models.Otp) error {
	// A single upsert keyed by phone; any older code is overwritten.
	otp.ID = primitive.NilObjectID
	_, err := s.coll.ReplaceOne(ctx, bson.M{"phone": otp.Phone}, otp, options.Replace().SetUpsert(true))
	return translate(err)
}

func (s *mongoOtps) FindLive(ctx context.Context, phone string, now time.Time) (*models.Otp, error) {
	return findOne[models.Otp](ctx, s.coll, bson.M{"phone": phone, "expiresAt": bson.M{"$gt": now}})
}

func (s *mongoOtps) Delete(ctx context.Context, phone string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"phone": phone})
	return err
}

// settings

type mongoSettings struct{ coll *mongo.Collection }

func (s *mongoSettings) Delivery(ctx context.Context) (*models.DeliverySettings, error) {
	settings, err := findOne[models.DeliverySettings](ctx, s.coll, bson.M{"_id": models.DeliverySettingsID})
	if errors.Is(err, ErrNotFound) {
		return DefaultDeliverySettings(), nil
	}
	return settings, err
}

func (s *mongoSettings) SaveDelivery(ctx context.Context, settings *models.DeliverySettings) error {
	settings.ID = models.DeliverySettingsID
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": settings.ID}, settings, options.Replace().SetUpsert(true))
	return err
}
