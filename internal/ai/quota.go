package ai

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrQuotaExceeded is returned when an actor has used their daily allowance.
var ErrQuotaExceeded = errors.New("daily question quota exceeded")

const defaultDailyQuestionLimit = 200

// ActorQuota tracks per-actor daily question usage against the AI services.
type ActorQuota struct {
	ActorID            string    `bson:"actor_id"`
	DailyQuestionLimit int       `bson:"daily_question_limit"`
	QuestionsToday     int       `bson:"questions_today"`
	LastResetDate      time.Time `bson:"last_reset_date"`
	CreatedAt          time.Time `bson:"created_at"`
	UpdatedAt          time.Time `bson:"updated_at"`
}

// CheckActorQuota consumes one question from the actor's daily allowance,
// resetting the counter on day rollover. ErrQuotaExceeded means the question
// must be rejected before any AI call.
func CheckActorQuota(ctx context.Context, actorID string, db *mongo.Database) error {
	col := db.Collection("ai_quotas")

	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	// Reset if new day
	_, err := col.UpdateOne(ctx,
		bson.M{"actor_id": actorID, "last_reset_date": bson.M{"$lt": today}},
		bson.M{"$set": bson.M{
			"questions_today": 0,
			"last_reset_date": today,
			"updated_at":      now,
		}},
	)
	if err != nil {
		return err
	}

	var quota ActorQuota
	err = col.FindOne(ctx, bson.M{"actor_id": actorID}).Decode(&quota)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			quota = ActorQuota{
				ActorID:            actorID,
				DailyQuestionLimit: defaultDailyQuestionLimit,
				LastResetDate:      today,
				CreatedAt:          now,
				UpdatedAt:          now,
			}
			if _, err := col.InsertOne(ctx, quota); err != nil {
				return err
			}
		} else {
			return err
		}
	}

	if quota.QuestionsToday+1 > quota.DailyQuestionLimit {
		return ErrQuotaExceeded
	}

	_, err = col.UpdateOne(ctx,
		bson.M{"actor_id": actorID},
		bson.M{
			"$inc": bson.M{"questions_today": 1},
			"$set": bson.M{"updated_at": now},
		},
	)
	return err
}

// GetActorQuotaStatus returns the actor's current usage. An actor who has
// never asked a question gets the default allowance.
func GetActorQuotaStatus(ctx context.Context, actorID string, db *mongo.Database) (*ActorQuota, error) {
	col := db.Collection("ai_quotas")

	var quota ActorQuota
	if err := col.FindOne(ctx, bson.M{"actor_id": actorID}).Decode(&quota); err != nil {
		if err == mongo.ErrNoDocuments {
			return &ActorQuota{
				ActorID:            actorID,
				DailyQuestionLimit: defaultDailyQuestionLimit,
			}, nil
		}
		return nil, err
	}
	return &quota, nil
}

// SetActorQuotaLimit overrides the daily limit for one actor.
func SetActorQuotaLimit(ctx context.Context, actorID string, dailyLimit int, db *mongo.Database) error {
	col := db.Collection("ai_quotas")

	_, err := col.UpdateOne(ctx,
		bson.M{"actor_id": actorID},
		bson.M{"$set": bson.M{
			"daily_question_limit": dailyLimit,
			"updated_at":           time.Now(),
		}},
		options.Update().SetUpsert(true),
	)
	return err
}
