package repository

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/spec-kit/staff-service/internal/domain"
)

// StaffCollection is the mongo collection holding staff documents.
const StaffCollection = "staff"

type staffDocument struct {
	ID           primitive.ObjectID   `bson:"_id"`
	Name         string               `bson:"name"`
	Email        string               `bson:"email"`
	Phone        string               `bson:"phone,omitempty"`
	Role         string               `bson:"role"`
	Department   string               `bson:"department"`
	Status       string               `bson:"status"`
	ProfileImage string               `bson:"profileImage"`
	Assignments  []assignmentDocument `bson:"assignments"`
	User         string               `bson:"user"`
	Version      int64                `bson:"version"`
	CreatedAt    time.Time            `bson:"createdAt"`
	UpdatedAt    time.Time            `bson:"updatedAt"`
}

type assignmentDocument struct {
	ID          string     `bson:"_id"`
	Title       string     `bson:"title"`
	Description string     `bson:"description"`
	Location    string     `bson:"location"`
	StartDate   time.Time  `bson:"startDate"`
	EndDate     *time.Time `bson:"endDate,omitempty"`
	Status      string     `bson:"status"`
	AssignedBy  string     `bson:"assignedBy"`
	CreatedAt   time.Time  `bson:"createdAt"`
}

type mongoStaffRepository struct {
	c *mongo.Collection
}

// NewMongoStaffRepository returns a StaffRepository backed by a mongo collection.
func NewMongoStaffRepository(db *mongo.Database) StaffRepository {
	return &mongoStaffRepository{c: db.Collection(StaffCollection)}
}

func (r *mongoStaffRepository) Create(ctx context.Context, staff *domain.Staff) error {
	now := domain.Now()
	staff.ApplyDefaults()
	staff.CreatedAt = now
	staff.UpdatedAt = now
	staff.Version = 1

	doc := toStaffDocument(staff)
	doc.ID = primitive.NewObjectID()
	if _, err := r.c.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	staff.ID = doc.ID.Hex()
	return nil
}

func (r *mongoStaffRepository) GetByID(ctx context.Context, id string) (*domain.Staff, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var doc staffDocument
	if err := r.c.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc.toDomain(), nil
}

func (r *mongoStaffRepository) Replace(ctx context.Context, staff *domain.Staff) error {
	oid, err := primitive.ObjectIDFromHex(staff.ID)
	if err != nil {
		return ErrNotFound
	}
	now := domain.Now()
	doc := toStaffDocument(staff)
	doc.ID = oid
	doc.Version = staff.Version + 1
	doc.UpdatedAt = now

	res, err := r.c.ReplaceOne(ctx, bson.M{"_id": oid, "version": staff.Version}, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	if res.MatchedCount == 0 {
		n, err := r.c.CountDocuments(ctx, bson.M{"_id": oid})
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	staff.Version = doc.Version
	staff.UpdatedAt = now
	return nil
}

func (r *mongoStaffRepository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := r.c.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoStaffRepository) List(ctx context.Context, filter StaffFilter) ([]domain.Staff, error) {
	limit, offset := filter.window()
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cur, err := r.c.Find(ctx, staffPredicate(filter), opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []staffDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	result := make([]domain.Staff, 0, len(docs))
	for i := range docs {
		result = append(result, *docs[i].toDomain())
	}
	return result, nil
}

func (r *mongoStaffRepository) Count(ctx context.Context, filter StaffFilter) (int64, error) {
	return r.c.CountDocuments(ctx, staffPredicate(filter))
}

type groupBucket struct {
	Key   string `bson:"_id"`
	Count int64  `bson:"count"`
}

type statsFacets struct {
	Total []struct {
		N int64 `bson:"n"`
	} `bson:"total"`
	ByStatus           []groupBucket `bson:"byStatus"`
	ByDepartment       []groupBucket `bson:"byDepartment"`
	ByRole             []groupBucket `bson:"byRole"`
	ByAssignmentStatus []groupBucket `bson:"byAssignmentStatus"`
}

// Stats evaluates every counter in one $facet pipeline so they share a single read.
func (r *mongoStaffRepository) Stats(ctx context.Context) (*domain.StaffStats, error) {
	cur, err := r.c.Aggregate(ctx, statsPipeline())
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var facets []statsFacets
	if err := cur.All(ctx, &facets); err != nil {
		return nil, err
	}
	stats := &domain.StaffStats{
		DepartmentStats: []domain.GroupCount{},
		RoleStats:       []domain.GroupCount{},
		AssignmentStats: []domain.GroupCount{},
	}
	if len(facets) == 0 {
		return stats, nil
	}
	f := facets[0]
	if len(f.Total) > 0 {
		stats.TotalStaff = f.Total[0].N
	}
	for _, b := range f.ByStatus {
		switch domain.StaffStatus(b.Key) {
		case domain.StaffStatusActive:
			stats.ActiveStaff = b.Count
		case domain.StaffStatusInactive:
			stats.InactiveStaff = b.Count
		case domain.StaffStatusOnLeave:
			stats.OnLeaveStaff = b.Count
		}
	}
	stats.DepartmentStats = toGroupCounts(f.ByDepartment)
	stats.RoleStats = toGroupCounts(f.ByRole)
	stats.AssignmentStats = toGroupCounts(f.ByAssignmentStatus)
	return stats, nil
}

func statsPipeline() mongo.Pipeline {
	groupBy := func(field string) bson.A {
		return bson.A{
			bson.D{{Key: "$group", Value: bson.D{
				{Key: "_id", Value: field},
				{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			}}},
		}
	}
	assignments := append(bson.A{bson.D{{Key: "$unwind", Value: "$assignments"}}}, groupBy("$assignments.status")...)
	return mongo.Pipeline{
		{{Key: "$facet", Value: bson.D{
			{Key: "total", Value: bson.A{bson.D{{Key: "$count", Value: "n"}}}},
			{Key: "byStatus", Value: groupBy("$status")},
			{Key: "byDepartment", Value: groupBy("$department")},
			{Key: "byRole", Value: groupBy("$role")},
			{Key: "byAssignmentStatus", Value: assignments},
		}}},
	}
}

func toGroupCounts(buckets []groupBucket) []domain.GroupCount {
	out := make([]domain.GroupCount, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, domain.GroupCount{Key: b.Key, Count: b.Count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// staffPredicate translates a filter into a mongo query document. The search term
// is matched literally and case-insensitively against name, email and role.
func staffPredicate(filter StaffFilter) bson.M {
	query := bson.M{}
	if term := filter.search(); term != "" {
		rx := primitive.Regex{Pattern: regexp.QuoteMeta(term), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"name": rx},
			bson.M{"email": rx},
			bson.M{"role": rx},
		}
	}
	if filter.Department != "" {
		query["department"] = filter.Department
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Role != "" {
		query["role"] = filter.Role
	}
	return query
}

func toStaffDocument(staff *domain.Staff) staffDocument {
	assignments := make([]assignmentDocument, 0, len(staff.Assignments))
	for _, a := range staff.Assignments {
		assignments = append(assignments, assignmentDocument{
			ID:          a.ID,
			Title:       a.Title,
			Description: a.Description,
			Location:    a.Location,
			StartDate:   a.StartDate,
			EndDate:     a.EndDate,
			Status:      string(a.Status),
			AssignedBy:  a.AssignedBy,
			CreatedAt:   a.CreatedAt,
		})
	}
	return staffDocument{
		Name:         staff.Name,
		Email:        staff.Email,
		Phone:        staff.Phone,
		Role:         string(staff.Role),
		Department:   string(staff.Department),
		Status:       string(staff.Status),
		ProfileImage: staff.ProfileImage,
		Assignments:  assignments,
		User:         staff.CreatedBy,
		Version:      staff.Version,
		CreatedAt:    staff.CreatedAt,
		UpdatedAt:    staff.UpdatedAt,
	}
}

func (d *staffDocument) toDomain() *domain.Staff {
	assignments := make([]domain.Assignment, 0, len(d.Assignments))
	for _, a := range d.Assignments {
		assignments = append(assignments, domain.Assignment{
			ID:          a.ID,
			Title:       a.Title,
			Description: a.Description,
			Location:    a.Location,
			StartDate:   a.StartDate,
			EndDate:     a.EndDate,
			Status:      domain.AssignmentStatus(a.Status),
			AssignedBy:  a.AssignedBy,
			CreatedAt:   a.CreatedAt,
		})
	}
	return &domain.Staff{
		ID:           d.ID.Hex(),
		Name:         d.Name,
		Email:        d.Email,
		Phone:        d.Phone,
		Role:         domain.StaffRole(d.Role),
		Department:   domain.Department(d.Department),
		Status:       domain.StaffStatus(d.Status),
		ProfileImage: d.ProfileImage,
		Assignments:  assignments,
		CreatedBy:    d.User,
		Version:      d.Version,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}
