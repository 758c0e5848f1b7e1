package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"duochat/internal/models"
	"duochat/internal/storage"
)

// MessageRepository implements storage.MessageStore on a Mongo collection.
type MessageRepository struct {
	coll  *mongo.Collection
	users storage.UserDirectory
	now   func() time.Time
}

// NewMessageRepository creates a new MessageRepository.
func NewMessageRepository(db *mongo.Database, users storage.UserDirectory) *MessageRepository {
	return &MessageRepository{
		coll:  db.Collection(messageCollection),
		users: users,
		now:   time.Now,
	}
}

var _ storage.MessageStore = (*MessageRepository)(nil)

func (r *MessageRepository) Create(ctx context.Context, msg *models.Message) error {
	now := r.now().UTC()
	if err := msg.Prepare(now); err != nil {
		return err
	}
	msg.CreatedAt, msg.UpdatedAt = now, now
	if _, err := r.coll.InsertOne(ctx, msg); err != nil {
		return persistence("insert message", err)
	}
	return nil
}

func (r *MessageRepository) FindByID(ctx context.Context, id string) (*models.Message, error) {
	var msg models.Message
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&msg); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: message %s", storage.ErrNotFound, id)
		}
		return nil, persistence("find message", err)
	}
	if err := storage.Enrich(ctx, r.users, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *MessageRepository) FindByIDs(ctx context.Context, ids []string) ([]*models.Message, error) {
	if len(ids) == 0 {
		return []*models.Message{}, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	return r.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
}

func (r *MessageRepository) FindConversation(ctx context.Context, a, b string, limit int) ([]*models.Message, error) {
	if limit <= 0 {
		limit = storage.DefaultConversationLimit
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))
	return r.find(ctx, conversationFilter(a, b), opts)
}

func (r *MessageRepository) MarkAsRead(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	now := r.now().UTC()
	res, err := r.coll.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "isRead": false},
		bson.M{"$set": bson.M{"isRead": true, "readAt": now, "updatedAt": now}},
	)
	if err != nil {
		return 0, persistence("mark messages read", err)
	}
	return res.ModifiedCount, nil
}

func (r *MessageRepository) GetUnreadCount(ctx context.Context, userID string) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"receiver": userID, "isRead": false})
	if err != nil {
		return 0, persistence("count unread messages", err)
	}
	return n, nil
}

func (r *MessageRepository) FindWithAttachments(ctx context.Context, userID string, filter models.MessageType) ([]*models.Message, error) {
	f, err := attachmentFilter(userID, filter)
	if err != nil {
		return nil, err
	}
	return r.find(ctx, f, options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}))
}

func (r *MessageRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*models.Message, error) {
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, persistence("find messages", err)
	}
	defer cursor.Close(ctx)

	messages := []*models.Message{}
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, persistence("decode messages", err)
	}
	for _, m := range messages {
		m.Timestamp = m.Timestamp.UTC()
	}
	return messages, storage.Enrich(ctx, r.users, messages...)
}

func conversationFilter(a, b string) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"sender": a, "receiver": b},
		bson.M{"sender": b, "receiver": a},
	}}
}

func attachmentFilter(userID string, filter models.MessageType) (bson.M, error) {
	if err := storage.ValidateAttachmentFilter(filter); err != nil {
		return nil, err
	}
	f := bson.M{"$or": bson.A{bson.M{"sender": userID}, bson.M{"receiver": userID}}}
	if filter == "" {
		f["messageType"] = bson.M{"$ne": models.TextMessage}
	} else {
		f["messageType"] = filter
	}
	return f, nil
}

func persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", storage.ErrPersistence, op, err)
}
