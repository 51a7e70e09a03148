package repositories

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/pkg/apperror"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByFirebaseUID(ctx context.Context, firebaseUID string) (*models.User, error)
	LinkFirebaseUID(ctx context.Context, id primitive.ObjectID, firebaseUID string) error
	GetUsers(ctx context.Context) ([]models.User, error)
	GetSuggestions(ctx context.Context, user *models.User, limit int64) ([]models.User, error)
	GetActiveSince(ctx context.Context, since time.Time) ([]models.User, error)
	SearchUsers(ctx context.Context, query string, limit int64) ([]models.User, error)
	UpdateProfile(ctx context.Context, id primitive.ObjectID, req *models.UpdateProfileRequest, at time.Time) (*models.User, error)
	TouchLastActive(ctx context.Context, id primitive.ObjectID, at time.Time) error
	AddConnection(ctx context.Context, a, b primitive.ObjectID) error
	RemoveConnection(ctx context.Context, a, b primitive.ObjectID) error
}

// MongoUserRepository implements UserRepository for MongoDB
type MongoUserRepository struct {
	collection *mongo.Collection
}

// NewMongoUserRepository creates a new MongoUserRepository
func NewMongoUserRepository(db *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{collection: db.Collection("users")}
}

// EnsureIndexes creates the unique and lookup indexes the queries rely on.
func (r *MongoUserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "firebaseUid", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
		{Keys: bson.D{{Key: "lastActive", Value: -1}}},
	})
	return err
}

func (r *MongoUserRepository) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if user.Connections == nil {
		user.Connections = []primitive.ObjectID{}
	}
	if user.Skills == nil {
		user.Skills = []string{}
	}
	_, err := r.collection.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return apperror.Conflict("Username or email already taken")
	}
	return err
}

func (r *MongoUserRepository) GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoUserRepository) GetUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find().SetProjection(bson.M{"password": 0}))
}

func (r *MongoUserRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *MongoUserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *MongoUserRepository) GetUserByFirebaseUID(ctx context.Context, firebaseUID string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"firebaseUid": firebaseUID})
}

func (r *MongoUserRepository) LinkFirebaseUID(ctx context.Context, id primitive.ObjectID, firebaseUID string) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"firebaseUid": firebaseUID}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound("User not found")
	}
	return nil
}

// GetUsers returns every user, newest first.
func (r *MongoUserRepository) GetUsers(ctx context.Context) ([]models.User, error) {
	return r.find(ctx, bson.M{}, options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetProjection(bson.M{"password": 0}))
}

// GetSuggestions returns users who are neither the caller nor already connected.
func (r *MongoUserRepository) GetSuggestions(ctx context.Context, user *models.User, limit int64) ([]models.User, error) {
	excluded := append([]primitive.ObjectID{user.ID}, user.Connections...)
	return r.find(ctx, bson.M{"_id": bson.M{"$nin": excluded}}, options.Find().
		SetLimit(limit).
		SetProjection(bson.M{"name": 1, "username": 1, "profilePicture": 1, "headline": 1}))
}

func (r *MongoUserRepository) GetActiveSince(ctx context.Context, since time.Time) ([]models.User, error) {
	return r.find(ctx, bson.M{"lastActive": bson.M{"$gte": since}}, options.Find().
		SetSort(bson.D{{Key: "lastActive", Value: -1}}).
		SetProjection(bson.M{"password": 0}))
}

// SearchUsers matches name or username case-insensitively.
func (r *MongoUserRepository) SearchUsers(ctx context.Context, query string, limit int64) ([]models.User, error) {
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}
	filter := bson.M{"$or": bson.A{
		bson.M{"name": pattern},
		bson.M{"username": pattern},
	}}
	return r.find(ctx, filter, options.Find().
		SetLimit(limit).
		SetProjection(bson.M{"name": 1, "username": 1, "profilePicture": 1, "headline": 1}))
}

func (r *MongoUserRepository) UpdateProfile(ctx context.Context, id primitive.ObjectID, req *models.UpdateProfileRequest, at time.Time) (*models.User, error) {
	set := bson.M{"updatedAt": at}
	if req.Name != nil {
		set["name"] = *req.Name
	}
	if req.Username != nil {
		set["username"] = *req.Username
	}
	if req.ProfilePicture != nil {
		set["profilePicture"] = *req.ProfilePicture
	}
	if req.BannerImg != nil {
		set["bannerImg"] = *req.BannerImg
	}
	if req.Headline != nil {
		set["headline"] = *req.Headline
	}
	if req.Location != nil {
		set["location"] = *req.Location
	}
	if req.About != nil {
		set["about"] = *req.About
	}
	if req.Skills != nil {
		set["skills"] = req.Skills
	}

	var user models.User
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After).SetProjection(bson.M{"password": 0}),
	).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("User not found")
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, apperror.Conflict("Username already taken")
		}
		return nil, err
	}
	return &user, nil
}

func (r *MongoUserRepository) TouchLastActive(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"lastActive": at}})
	return err
}

// AddConnection links both users. $addToSet keeps each side a set.
func (r *MongoUserRepository) AddConnection(ctx context.Context, a, b primitive.ObjectID) error {
	return r.updatePair(ctx, a, b, "$addToSet")
}

func (r *MongoUserRepository) RemoveConnection(ctx context.Context, a, b primitive.ObjectID) error {
	return r.updatePair(ctx, a, b, "$pull")
}

func (r *MongoUserRepository) updatePair(ctx context.Context, a, b primitive.ObjectID, op string) error {
	writes := []mongo.WriteModel{
		mongo.NewUpdateOneModel().SetFilter(bson.M{"_id": a}).SetUpdate(bson.M{op: bson.M{"connections": b}}),
		mongo.NewUpdateOneModel().SetFilter(bson.M{"_id": b}).SetUpdate(bson.M{op: bson.M{"connections": a}}),
	}
	res, err := r.collection.BulkWrite(ctx, writes)
	if err != nil {
		return fmt.Errorf("update connections: %w", err)
	}
	if res.MatchedCount < 2 {
		return apperror.NotFound("User not found")
	}
	return nil
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("User not found")
		}
		return nil, err
	}
	return &user, nil
}

func (r *MongoUserRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.User, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	users := []models.User{}
	if err = cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}
