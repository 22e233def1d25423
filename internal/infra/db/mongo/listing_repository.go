package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainlistings "rentcancel/internal/domain/listings"
)

type ListingRepository struct {
	col *mongo.Collection
}

func NewListingRepository(db *mongo.Database) *ListingRepository {
	return &ListingRepository{col: db.Collection("agg_listing")}
}

type listingDocument struct {
	ID                 string `bson:"_id"`
	Host               string `bson:"host_id"`
	Title              string `bson:"title"`
	Kind               string `bson:"kind"`
	CancellationPolicy string `bson:"cancellation_policy"`
	CreatedAt          int64  `bson:"created_at"`
	UpdatedAt          int64  `bson:"updated_at"`
	Version            int64  `bson:"version"`
}

func (r *ListingRepository) ByID(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	var doc listingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", domainlistings.ErrNotFound, id)
		}
		return nil, err
	}
	return &domainlistings.Listing{
		ID:                 domainlistings.ListingID(doc.ID),
		Host:               domainlistings.HostID(doc.Host),
		Title:              doc.Title,
		Kind:               domainlistings.Kind(doc.Kind),
		CancellationPolicy: doc.CancellationPolicy,
		CreatedAt:          timestampToTime(doc.CreatedAt),
		UpdatedAt:          timestampToTime(doc.UpdatedAt),
		Version:            doc.Version,
	}, nil
}

func (r *ListingRepository) Save(ctx context.Context, l *domainlistings.Listing) error {
	doc := listingDocument{
		ID:                 string(l.ID),
		Host:               string(l.Host),
		Title:              l.Title,
		Kind:               string(l.Kind),
		CancellationPolicy: l.CancellationPolicy,
		CreatedAt:          l.CreatedAt.UnixMilli(),
		UpdatedAt:          l.UpdatedAt.UnixMilli(),
		Version:            l.Version + 1,
	}
	filter := bson.M{"_id": doc.ID, "version": l.Version}
	res, err := r.col.UpdateOne(ctx, filter, bson.M{"$set": doc}, options.Update().SetUpsert(l.Version == 0))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("listings: concurrent update of %s", l.ID)
		}
		return err
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return fmt.Errorf("listings: concurrent update of %s", l.ID)
	}
	l.Version = doc.Version
	return nil
}

var _ domainlistings.ListingRepository = (*ListingRepository)(nil)
