package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"friendchat/internal/domain"
)

type messageDoc struct {
	ID         primitive.ObjectID `bson:"_id"`
	SenderID   primitive.ObjectID `bson:"senderId"`
	ReceiverID primitive.ObjectID `bson:"receiverId"`
	Text       string             `bson:"text"`
	Image      string             `bson:"image,omitempty"`
	CreatedAt  time.Time          `bson:"createdAt"`
}

type MessageRepo struct {
	coll *mongo.Collection
}

var _ domain.MessageRepository = (*MessageRepo)(nil)

func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	sender, err := objectID(m.SenderID)
	if err != nil {
		return err
	}
	receiver, err := objectID(m.ReceiverID)
	if err != nil {
		return err
	}
	doc := messageDoc{
		ID:         primitive.NewObjectID(),
		SenderID:   sender,
		ReceiverID: receiver,
		Text:       m.Text,
		Image:      m.Image,
		CreatedAt:  now(),
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	m.ID = doc.ID.Hex()
	m.CreatedAt = doc.CreatedAt
	return nil
}

func (r *MessageRepo) ListBetween(ctx context.Context, userA, userB string) ([]*domain.Message, error) {
	filter, err := pairFilter(userA, userB)
	if err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	var docs []messageDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	res := make([]*domain.Message, 0, len(docs))
	for _, d := range docs {
		res = append(res, &domain.Message{
			ID:         d.ID.Hex(),
			SenderID:   d.SenderID.Hex(),
			ReceiverID: d.ReceiverID.Hex(),
			Text:       d.Text,
			Image:      d.Image,
			CreatedAt:  d.CreatedAt.UTC(),
		})
	}
	return res, nil
}

func (r *MessageRepo) DeleteBetween(ctx context.Context, userA, userB string) error {
	filter, err := pairFilter(userA, userB)
	if err != nil {
		return err
	}
	if _, err := r.coll.DeleteMany(ctx, filter); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	return nil
}

func pairFilter(userA, userB string) (bson.M, error) {
	a, err := objectID(userA)
	if err != nil {
		return nil, err
	}
	b, err := objectID(userB)
	if err != nil {
		return nil, err
	}
	return bson.M{"$or": bson.A{
		bson.M{"senderId": a, "receiverId": b},
		bson.M{"senderId": b, "receiverId": a},
	}}, nil
}
