package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/spec-kit/staff-service/internal/config"
	"github.com/spec-kit/staff-service/internal/domain"
)

// Mongo wraps the mongo client and the configured database.
type Mongo struct {
	Client *mongo.Client
	DB     *mongo.Database
}

// NewMongo connects to MongoDB and verifies the primary is reachable.
func NewMongo(ctx context.Context, cfg config.MongoConfig, logger *zap.Logger) (*Mongo, error) {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout())
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	logger.Info("connected to mongo", zap.String("database", cfg.Database))
	return &Mongo{Client: client, DB: client.Database(cfg.Database)}, nil
}

// Name identifies the dependency in health reports.
func (m *Mongo) Name() string { return "mongo" }

// Ping verifies the server is reachable.
func (m *Mongo) Ping(ctx context.Context) error {
	if m == nil || m.Client == nil {
		return errors.New("mongo client not configured")
	}
	return m.Client.Ping(ctx, nil)
}

// Close disconnects the client.
func (m *Mongo) Close(ctx context.Context) {
	if m != nil && m.Client != nil {
		_ = m.Client.Disconnect(ctx)
	}
}

// EnsureSchema creates the collections, attaches JSON-Schema validators and
// builds the indexes the repositories rely on. Each step is idempotent.
func EnsureSchema(ctx context.Context, db *mongo.Database, logger *zap.Logger) error {
	var problems []string

	ensure := func(coll string, schema bson.M, indexes []mongo.IndexModel) {
		if err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		if err := setValidator(ctx, db, coll, schema); err != nil {
			if isUnsupportedCommand(err) {
				logger.Info("validator skipped (unsupported)", zap.String("collection", coll))
			} else {
				problems = append(problems, coll+": "+err.Error())
				return
			}
		}
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, indexes); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		logger.Info("schema ensured", zap.String("collection", coll))
	}

	ensure("staff", staffSchema(), []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetName("uniq_staff_email").SetUnique(true)},
		{Keys: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}, Options: options.Index().SetName("idx_staff_created")},
		{Keys: bson.D{{Key: "department", Value: 1}}, Options: options.Index().SetName("idx_staff_department")},
		{Keys: bson.D{{Key: "status", Value: 1}}, Options: options.Index().SetName("idx_staff_status")},
	})
	ensure("users", usersSchema(), []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetName("uniq_users_email").SetUnique(true)},
	})

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string) error {
	names, err := db.ListCollectionNames(ctx, bson.M{"name": name})
	if err == nil && len(names) > 0 {
		return nil
	}
	if err := db.CreateCollection(ctx, name); err != nil && !isNamespaceExists(err) {
		return err
	}
	return nil
}

func setValidator(ctx context.Context, db *mongo.Database, name string, schema bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: bson.M{"$jsonSchema": schema}},
		{Key: "validationLevel", Value: "strict"},
		{Key: "validationAction", Value: "error"},
	}
	return db.RunCommand(ctx, cmd).Err()
}

func enumOf[T ~string](values []T) bson.A {
	out := make(bson.A, 0, len(values))
	for _, v := range values {
		out = append(out, string(v))
	}
	return out
}

func staffSchema() bson.M {
	assignment := bson.M{
		"bsonType": "object",
		"required": bson.A{"_id", "title", "description", "location", "startDate", "status"},
		"properties": bson.M{
			"_id":         bson.M{"bsonType": "string"},
			"title":       bson.M{"bsonType": "string", "minLength": 1},
			"description": bson.M{"bsonType": "string", "minLength": 1},
			"location":    bson.M{"bsonType": "string", "minLength": 1},
			"startDate":   bson.M{"bsonType": "date"},
			"endDate":     bson.M{"bsonType": "date"},
			"status":      bson.M{"enum": enumOf(domain.AssignmentStatuses)},
		},
	}
	return bson.M{
		"bsonType": "object",
		"required": bson.A{"name", "email", "department", "role", "status", "assignments", "version"},
		"properties": bson.M{
			"name":        bson.M{"bsonType": "string", "minLength": 1},
			"email":       bson.M{"bsonType": "string", "pattern": domain.EmailPattern},
			"role":        bson.M{"enum": enumOf(domain.StaffRoles)},
			"department":  bson.M{"enum": enumOf(domain.Departments)},
			"status":      bson.M{"enum": enumOf(domain.StaffStatuses)},
			"assignments": bson.M{"bsonType": "array", "items": assignment},
			"version":     bson.M{"bsonType": bson.A{"int", "long"}},
		},
	}
}

func usersSchema() bson.M {
	return bson.M{
		"bsonType": "object",
		"required": bson.A{"name", "email", "password", "role"},
		"properties": bson.M{
			"email": bson.M{"bsonType": "string"},
			"role":  bson.M{"enum": bson.A{string(domain.UserRoleUser), string(domain.UserRoleManager), string(domain.UserRoleAdmin)}},
		},
	}
}

func isNamespaceExists(err error) bool {
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 48 || strings.Contains(strings.ToLower(ce.Message), "already exists")) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "already exists")
}

func isUnsupportedCommand(err error) bool {
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 59 || ce.Code == 115) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "no such command") || strings.Contains(s, "not implemented")
}
