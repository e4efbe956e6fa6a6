package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"friendchat/internal/domain"
)

// userDoc is the stored shape. Friend edges and pending requests are
// embedded id arrays on the user document.
type userDoc struct {
	ID              primitive.ObjectID   `bson:"_id"`
	FullName        string               `bson:"fullName"`
	Email           string               `bson:"email"`
	Password        string               `bson:"password"`
	ProfilePic      string               `bson:"profilePic"`
	LastMessagedAt  *time.Time           `bson:"lastMessagedAt,omitempty"`
	LastMessageText string               `bson:"lastMessageText"`
	Friends         []primitive.ObjectID `bson:"friends"`
	FriendRequests  []primitive.ObjectID `bson:"friendRequests"`
	CreatedAt       time.Time            `bson:"createdAt"`
	UpdatedAt       time.Time            `bson:"updatedAt"`
}

func (d *userDoc) toDomain() *domain.User {
	u := &domain.User{
		ID:              d.ID.Hex(),
		FullName:        d.FullName,
		Email:           d.Email,
		HashedPassword:  d.Password,
		ProfilePic:      d.ProfilePic,
		LastMessageText: d.LastMessageText,
		CreatedAt:       d.CreatedAt.UTC(),
		UpdatedAt:       d.UpdatedAt.UTC(),
	}
	if d.LastMessagedAt != nil {
		t := d.LastMessagedAt.UTC()
		u.LastMessagedAt = &t
	}
	return u
}

type UserRepo struct {
	coll *mongo.Collection
}

var _ domain.UserRepository = (*UserRepo)(nil)

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	ts := now()
	doc := userDoc{
		ID:             primitive.NewObjectID(),
		FullName:       u.FullName,
		Email:          u.Email,
		Password:       u.HashedPassword,
		ProfilePic:     u.ProfilePic,
		Friends:        []primitive.ObjectID{},
		FriendRequests: []primitive.ObjectID{},
		CreatedAt:      ts,
		UpdatedAt:      ts,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	u.ID = doc.ID.Hex()
	u.CreatedAt, u.UpdatedAt = ts, ts
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepo) ListOthers(ctx context.Context, excludeID string) ([]*domain.User, error) {
	filter := bson.M{}
	if oid, err := primitive.ObjectIDFromHex(excludeID); err == nil {
		filter["_id"] = bson.M{"$ne": oid}
	}
	// Missing lastMessagedAt sorts last in descending order.
	opts := options.Find().SetSort(bson.D{{Key: "lastMessagedAt", Value: -1}, {Key: "fullName", Value: 1}})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	users := make([]*domain.User, 0, len(docs))
	for i := range docs {
		users = append(users, docs[i].toDomain())
	}
	return users, nil
}

func (r *UserRepo) UpdateProfilePic(ctx context.Context, id, profilePic string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := r.coll.UpdateByID(ctx, oid, bson.M{"$set": bson.M{"profilePic": profilePic, "updatedAt": now()}})
	if err != nil {
		return fmt.Errorf("update profile pic: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *UserRepo) TouchLastMessage(ctx context.Context, ids []string, at time.Time, text string) error {
	if len(ids) == 0 {
		return nil
	}
	oids, err := objectIDs(ids)
	if err != nil {
		return err
	}
	_, err = r.coll.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": oids}},
		bson.M{"$set": bson.M{
			"lastMessagedAt":  at.UTC().Truncate(time.Millisecond),
			"lastMessageText": text,
			"updatedAt":       now(),
		}},
	)
	if err != nil {
		return fmt.Errorf("touch last message: %w", err)
	}
	return nil
}

func (r *UserRepo) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var doc userDoc
	err := r.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return doc.toDomain(), nil
}
