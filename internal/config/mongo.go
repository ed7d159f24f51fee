package config

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func ConnectMongoDB(cfg *Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %v", err)
	}

	// Test connection
	err = client.Ping(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %v", err)
	}

	// Create indexes
	err = createIndexes(client, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("failed to create indexes: %v", err)
	}

	return client, nil
}

func createIndexes(client *mongo.Client, dbName string) error {
	db := client.Database(dbName)

	reportsCollection := db.Collection("reports")
	reportIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "report_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "patient_id", Value: 1}, {Key: "uploaded_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}},
		},
	}
	_, err := reportsCollection.Indexes().CreateMany(context.Background(), reportIndexes)
	if err != nil {
		return err
	}

	// One index document per report
	indexesCollection := db.Collection("report_indexes")
	indexIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "report_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	_, err = indexesCollection.Indexes().CreateMany(context.Background(), indexIndexes)
	if err != nil {
		return err
	}

	consentsCollection := db.Collection("consents")
	consentIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "patient_id", Value: 1}, {Key: "doctor_id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "valid_to", Value: 1}},
		},
	}
	_, err = consentsCollection.Indexes().CreateMany(context.Background(), consentIndexes)
	if err != nil {
		return err
	}

	assignmentsCollection := db.Collection("assignments")
	assignmentIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "patient_id", Value: 1}, {Key: "doctor_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	_, err = assignmentsCollection.Indexes().CreateMany(context.Background(), assignmentIndexes)
	if err != nil {
		return err
	}

	historyCollection := db.Collection("query_history")
	historyIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "report_id", Value: 1}, {Key: "asked_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "actor_id", Value: 1}},
		},
	}
	_, err = historyCollection.Indexes().CreateMany(context.Background(), historyIndexes)
	if err != nil {
		return err
	}

	auditCollection := db.Collection("audit_logs")
	auditIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "timestamp", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "actor_id", Value: 1}},
		},
	}
	_, err = auditCollection.Indexes().CreateMany(context.Background(), auditIndexes)
	if err != nil {
		return err
	}

	return nil
}
