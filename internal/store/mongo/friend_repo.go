package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"friendchat/internal/domain"
)

// FriendRepo stores requests on the target's friendRequests array and the
// friend relation as mirrored friends arrays.
type FriendRepo struct {
	client *mongo.Client
	coll   *mongo.Collection
}

var _ domain.FriendRepository = (*FriendRepo)(nil)

func (r *FriendRepo) CreateRequest(ctx context.Context, requesterID, targetID string) (bool, error) {
	requester, err := objectID(requesterID)
	if err != nil {
		return false, err
	}
	target, err := objectID(targetID)
	if err != nil {
		return false, err
	}
	res, err := r.coll.UpdateByID(ctx, target, bson.M{"$addToSet": bson.M{"friendRequests": requester}})
	if err != nil {
		return false, fmt.Errorf("add friend request: %w", err)
	}
	return res.ModifiedCount == 1, nil
}

func (r *FriendRepo) DeleteRequest(ctx context.Context, requesterID, targetID string) error {
	requester, err := objectID(requesterID)
	if err != nil {
		return err
	}
	target, err := objectID(targetID)
	if err != nil {
		return err
	}
	if _, err := r.coll.UpdateByID(ctx, target, bson.M{"$pull": bson.M{"friendRequests": requester}}); err != nil {
		return fmt.Errorf("pull friend request: %w", err)
	}
	return nil
}

func (r *FriendRepo) Accept(ctx context.Context, requesterID, targetID string) error {
	requester, err := objectID(requesterID)
	if err != nil {
		return err
	}
	target, err := objectID(targetID)
	if err != nil {
		return err
	}

	sess, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		res, err := r.coll.UpdateOne(sc,
			bson.M{"_id": target, "friendRequests": requester},
			bson.M{
				"$pull":     bson.M{"friendRequests": requester},
				"$addToSet": bson.M{"friends": requester},
			},
		)
		if err != nil {
			return nil, fmt.Errorf("accept on target: %w", err)
		}
		if res.MatchedCount == 0 {
			return nil, domain.ErrNotFound
		}
		// A crossing request in the other direction is settled too.
		if _, err := r.coll.UpdateByID(sc, requester, bson.M{
			"$pull":     bson.M{"friendRequests": target},
			"$addToSet": bson.M{"friends": target},
		}); err != nil {
			return nil, fmt.Errorf("accept on requester: %w", err)
		}
		return nil, nil
	})
	return err
}

func (r *FriendRepo) AreFriends(ctx context.Context, userA, userB string) (bool, error) {
	a, err := objectID(userA)
	if err != nil {
		return false, err
	}
	b, err := objectID(userB)
	if err != nil {
		return false, err
	}
	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": a, "friends": b})
	if err != nil {
		return false, fmt.Errorf("count friends: %w", err)
	}
	return n > 0, nil
}

func (r *FriendRepo) ListFriends(ctx context.Context, userID string) ([]domain.UserSummary, error) {
	return r.populate(ctx, userID, "friends")
}

func (r *FriendRepo) ListRequests(ctx context.Context, userID string) ([]domain.UserSummary, error) {
	return r.populate(ctx, userID, "friendRequests")
}

// populate resolves the id array stored under field into summaries,
// preserving array order.
func (r *FriendRepo) populate(ctx context.Context, userID, field string) ([]domain.UserSummary, error) {
	oid, err := objectID(userID)
	if err != nil {
		return nil, err
	}

	var owner bson.M
	err = r.coll.FindOne(ctx, bson.M{"_id": oid}, options.FindOne().SetProjection(bson.M{field: 1})).Decode(&owner)
	if err == mongo.ErrNoDocuments {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", field, err)
	}

	arr, _ := owner[field].(primitive.A)
	ids := make([]primitive.ObjectID, 0, len(arr))
	for _, v := range arr {
		if id, ok := v.(primitive.ObjectID); ok {
			ids = append(ids, id)
		}
	}
	res := []domain.UserSummary{}
	if len(ids) == 0 {
		return res, nil
	}

	cur, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"fullName": 1, "profilePic": 1}))
	if err != nil {
		return nil, fmt.Errorf("populate %s: %w", field, err)
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", field, err)
	}
	byID := make(map[primitive.ObjectID]userDoc, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}
	for _, id := range ids {
		if d, ok := byID[id]; ok {
			res = append(res, domain.UserSummary{ID: id.Hex(), FullName: d.FullName, ProfilePic: d.ProfilePic})
		}
	}
	return res, nil
}
