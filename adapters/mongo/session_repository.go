package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/satriahrh/jurubahasa/domain/entities"
	"github.com/satriahrh/jurubahasa/domain/repositories"
)

const sessionsCollection = "interpreter_sessions"

// endedRetention is how long ended sessions are kept before MongoDB's TTL
// monitor removes them.
const endedRetention = 30 * 24 * time.Hour

// SessionRepository stores interpreter sessions in MongoDB.
type SessionRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

var _ repositories.SessionRepository = (*SessionRepository)(nil)

// NewSessionRepository creates a new MongoDB session repository
func NewSessionRepository(db *mongo.Database, logger *zap.Logger) *SessionRepository {
	return &SessionRepository{
		collection: db.Collection(sessionsCollection),
		logger:     logger,
	}
}

// EnsureIndexes creates the lookup and retention indexes.
func (r *SessionRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "room_name", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			// Cleanup scans active sessions by expiry.
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "expires_at", Value: 1}},
		},
		{
			// Only documents with ended_at are subject to the TTL.
			Keys:    bson.D{{Key: "ended_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(endedRetention.Seconds())),
		},
	})
	if err != nil {
		r.logger.Error("Failed to create session indexes", zap.Error(err))
		return fmt.Errorf("failed to create session indexes: %w", err)
	}

	r.logger.Info("Session indexes created successfully")
	return nil
}

// Create implements repositories.SessionRepository
func (r *SessionRepository) Create(ctx context.Context, session *entities.InterpreterSession) error {
	if session == nil {
		return errors.New("session cannot be nil")
	}
	if err := session.Validate(); err != nil {
		return err
	}

	if _, err := r.collection.InsertOne(ctx, session); err != nil {
		r.logger.Error("Failed to create session", zap.Error(err), zap.String("sessionID", session.ID))
		return fmt.Errorf("failed to create session: %w", err)
	}

	r.logger.Info("Session created",
		zap.String("sessionID", session.ID),
		zap.String("room", session.Room),
		zap.String("languages", session.Languages.String()))

	return nil
}

// GetByID implements repositories.SessionRepository
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*entities.InterpreterSession, error) {
	if id == "" {
		return nil, repositories.ErrSessionNotFound
	}

	var session entities.InterpreterSession
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrSessionNotFound
		}
		r.logger.Error("Failed to get session by ID", zap.Error(err), zap.String("sessionID", id))
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}

	return &session, nil
}

// Update implements repositories.SessionRepository
func (r *SessionRepository) Update(ctx context.Context, session *entities.InterpreterSession) error {
	if session == nil {
		return errors.New("session cannot be nil")
	}
	if err := session.Validate(); err != nil {
		return err
	}

	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": session.ID}, session)
	if err != nil {
		r.logger.Error("Failed to update session", zap.Error(err), zap.String("sessionID", session.ID))
		return fmt.Errorf("failed to update session: %w", err)
	}

	if result.MatchedCount == 0 {
		return repositories.ErrSessionNotFound
	}

	r.logger.Debug("Session updated", zap.String("sessionID", session.ID))
	return nil
}

// ExpireSessions implements repositories.SessionRepository
func (r *SessionRepository) ExpireSessions(ctx context.Context) (int, error) {
	now := time.Now()
	filter := bson.M{
		"status":     entities.SessionStatusActive,
		"expires_at": bson.M{"$lt": now},
	}
	update := bson.M{
		"$set": bson.M{
			"status":   entities.SessionStatusExpired,
			"ended_at": now,
		},
	}

	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		r.logger.Error("Failed to expire sessions", zap.Error(err))
		return 0, fmt.Errorf("failed to expire sessions: %w", err)
	}

	if result.ModifiedCount > 0 {
		r.logger.Info("Expired sessions", zap.Int64("count", result.ModifiedCount))
	}

	return int(result.ModifiedCount), nil
}
