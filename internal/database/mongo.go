package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"health-records-platform/internal/rag"
	"health-records-platform/models"
	"health-records-platform/utils"
)

// indexDocument is the persisted form of a report's vector index: one
// document per report, replaced wholesale on re-index. Passage text is
// compressed with the shared text codec.
type indexDocument struct {
	ReportID  string       `bson:"report_id"`
	Dimension int          `bson:"dimension"`
	Passages  []passageDoc `bson:"passages"`
	UpdatedAt time.Time    `bson:"updated_at"`
}

type passageDoc struct {
	SequenceNumber int       `bson:"sequence_number"`
	Compressed     []byte    `bson:"compressed"`
	Compression    string    `bson:"compression"`
	Vector         []float32 `bson:"vector"`
}

// MongoIndexStorage persists vector indexes, one document per report.
type MongoIndexStorage struct {
	col *mongo.Collection
}

func NewMongoIndexStorage(db *mongo.Database) *MongoIndexStorage {
	return &MongoIndexStorage{col: db.Collection("report_indexes")}
}

func (s *MongoIndexStorage) Load(ctx context.Context, reportID string) (*rag.VectorIndex, error) {
	var doc indexDocument
	err := s.col.FindOne(ctx, bson.M{"report_id": reportID}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, rag.ErrIndexMissing
		}
		return nil, err
	}
	return decodeIndexDocument(&doc)
}

// Save replaces the report's index document in one write so a reader never
// observes a half-written index.
func (s *MongoIndexStorage) Save(ctx context.Context, index *rag.VectorIndex) error {
	doc, err := encodeIndexDocument(index)
	if err != nil {
		return err
	}

	_, err = s.col.ReplaceOne(ctx,
		bson.M{"report_id": index.ReportID},
		doc,
		options.Replace().SetUpsert(true),
	)
	return err
}

func (s *MongoIndexStorage) Delete(ctx context.Context, reportID string) error {
	_, err := s.col.DeleteOne(ctx, bson.M{"report_id": reportID})
	return err
}

func encodeIndexDocument(index *rag.VectorIndex) (*indexDocument, error) {
	passages := make([]passageDoc, len(index.Passages))
	for i, p := range index.Passages {
		compressed, algorithm, err := utils.CompressText(p.Text)
		if err != nil {
			return nil, fmt.Errorf("compress passage %d of %s: %w", p.SequenceNumber, index.ReportID, err)
		}
		passages[i] = passageDoc{
			SequenceNumber: p.SequenceNumber,
			Compressed:     compressed,
			Compression:    string(algorithm),
			Vector:         p.Vector,
		}
	}
	return &indexDocument{
		ReportID:  index.ReportID,
		Dimension: index.Dimension,
		Passages:  passages,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

func decodeIndexDocument(doc *indexDocument) (*rag.VectorIndex, error) {
	passages := make([]rag.Passage, len(doc.Passages))
	for i, p := range doc.Passages {
		text, err := utils.DecompressText(p.Compressed, utils.CompressionAlgorithm(p.Compression))
		if err != nil {
			return nil, fmt.Errorf("decompress passage %d of %s: %w", p.SequenceNumber, doc.ReportID, err)
		}
		passages[i] = rag.Passage{
			ReportID:       doc.ReportID,
			SequenceNumber: p.SequenceNumber,
			Text:           text,
			Vector:         p.Vector,
		}
	}
	return &rag.VectorIndex{
		ReportID:  doc.ReportID,
		Dimension: doc.Dimension,
		Passages:  passages,
	}, nil
}

// MongoConsentSource answers ownership and consent lookups from Mongo.
type MongoConsentSource struct {
	reports  *mongo.Collection
	consents *mongo.Collection
}

func NewMongoConsentSource(db *mongo.Database) *MongoConsentSource {
	return &MongoConsentSource{
		reports:  db.Collection("reports"),
		consents: db.Collection("consents"),
	}
}

func (s *MongoConsentSource) OwnerOf(ctx context.Context, reportID string) (string, error) {
	var report struct {
		PatientID string `bson:"patient_id"`
	}
	err := s.reports.FindOne(ctx, bson.M{"report_id": reportID}).Decode(&report)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return "", rag.ErrReportNotFound(reportID)
		}
		return "", err
	}
	return report.PatientID, nil
}

// ConsentsFor returns every non-revoked grant from patient to doctor. Window
// evaluation is left to the gate so denial clauses stay in one place.
func (s *MongoConsentSource) ConsentsFor(ctx context.Context, patientID, doctorID string) ([]rag.ConsentRecord, error) {
	cursor, err := s.consents.Find(ctx, bson.M{
		"patient_id": patientID,
		"doctor_id":  doctorID,
		"revoked":    false,
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []models.Consent
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	records := make([]rag.ConsentRecord, len(docs))
	for i, c := range docs {
		records[i] = rag.ConsentRecord{
			PatientID:  c.PatientID,
			DoctorID:   c.DoctorID,
			Permission: rag.Permission(c.Permission),
			ValidFrom:  c.ValidFrom,
			ValidTo:    c.ValidTo,
			Revoked:    c.Revoked,
		}
	}
	return records, nil
}

// MongoHistoryStorage persists query history append-only.
type MongoHistoryStorage struct {
	col *mongo.Collection
}

func NewMongoHistoryStorage(db *mongo.Database) *MongoHistoryStorage {
	return &MongoHistoryStorage{col: db.Collection("query_history")}
}

func (s *MongoHistoryStorage) Append(ctx context.Context, entry rag.HistoryEntry) error {
	_, err := s.col.InsertOne(ctx, entry)
	return err
}

func (s *MongoHistoryStorage) ListByReport(ctx context.Context, reportID string, limit int) ([]rag.HistoryEntry, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "asked_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.col.Find(ctx, bson.M{"report_id": reportID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entries []rag.HistoryEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// MongoReportStore handles report metadata CRUD.
type MongoReportStore struct {
	col *mongo.Collection
}

func NewMongoReportStore(db *mongo.Database) *MongoReportStore {
	return &MongoReportStore{col: db.Collection("reports")}
}

func (s *MongoReportStore) Insert(ctx context.Context, report *models.Report) error {
	_, err := s.col.InsertOne(ctx, report)
	return err
}

func (s *MongoReportStore) Get(ctx context.Context, reportID string) (*models.Report, error) {
	var report models.Report
	err := s.col.FindOne(ctx, bson.M{"report_id": reportID}).Decode(&report)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, rag.ErrReportNotFound(reportID)
		}
		return nil, err
	}
	return &report, nil
}

func (s *MongoReportStore) ListByPatient(ctx context.Context, patientID string) ([]models.Report, error) {
	opts := options.Find().SetSort(bson.D{{Key: "uploaded_at", Value: -1}})
	cursor, err := s.col.Find(ctx, bson.M{"patient_id": patientID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var reports []models.Report
	if err := cursor.All(ctx, &reports); err != nil {
		return nil, err
	}
	return reports, nil
}

func (s *MongoReportStore) SetStatus(ctx context.Context, reportID, status, errorMessage string) error {
	update := bson.M{"status": status}
	if errorMessage != "" {
		update["error_message"] = errorMessage
	}
	if status == models.ReportStatusProcessed {
		update["processed_at"] = time.Now().UTC()
	}
	_, err := s.col.UpdateOne(ctx,
		bson.M{"report_id": reportID},
		bson.M{"$set": update},
	)
	return err
}

// SetProcessed records the processing outcome in one update.
func (s *MongoReportStore) SetProcessed(ctx context.Context, reportID string, pages, chunkCount int, summary string, info *models.MedicalInfo) error {
	now := time.Now().UTC()
	_, err := s.col.UpdateOne(ctx,
		bson.M{"report_id": reportID},
		bson.M{"$set": bson.M{
			"status":           models.ReportStatusProcessed,
			"pages":            pages,
			"chunk_count":      chunkCount,
			"summary":          summary,
			"medical_info":     info,
			"reindex_required": false,
			"processed_at":     now,
			"error_message":    "",
		}},
	)
	return err
}

func (s *MongoReportStore) MarkReindexRequired(ctx context.Context, reportID string) error {
	_, err := s.col.UpdateOne(ctx,
		bson.M{"report_id": reportID},
		bson.M{"$set": bson.M{"reindex_required": true}},
	)
	return err
}

// ListReindexRequired returns reports flagged for out-of-band re-indexing.
func (s *MongoReportStore) ListReindexRequired(ctx context.Context, limit int) ([]models.Report, error) {
	opts := options.Find().SetLimit(int64(limit))
	cursor, err := s.col.Find(ctx, bson.M{
		"reindex_required": true,
		"status":           models.ReportStatusProcessed,
	}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var reports []models.Report
	if err := cursor.All(ctx, &reports); err != nil {
		return nil, err
	}
	return reports, nil
}

func (s *MongoReportStore) Delete(ctx context.Context, reportID string) error {
	_, err := s.col.DeleteOne(ctx, bson.M{"report_id": reportID})
	return err
}
