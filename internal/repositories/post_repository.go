package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/pkg/apperror"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PostRepository defines the interface for post data operations.
// Every like/comment method is a single-document atomic update.
type PostRepository interface {
	CreatePost(ctx context.Context, post *models.Post) error
	GetPostByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error)
	GetPostsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Post, error)
	GetFeed(ctx context.Context, authors []primitive.ObjectID, skip, limit int64) ([]models.Post, int64, error)
	GetPostsByAuthor(ctx context.Context, author primitive.ObjectID, skip, limit int64) ([]models.Post, error)
	DeletePost(ctx context.Context, id primitive.ObjectID) error
	// AddLike adds userID to the likes set. changed is false when it was already there.
	AddLike(ctx context.Context, postID, userID primitive.ObjectID, at time.Time) (post *models.Post, changed bool, err error)
	// RemoveLike removes userID from the likes set. changed is false when it was absent.
	RemoveLike(ctx context.Context, postID, userID primitive.ObjectID, at time.Time) (post *models.Post, changed bool, err error)
	// ToggleLike flips membership of userID and reports whether it is now liked.
	ToggleLike(ctx context.Context, postID, userID primitive.ObjectID, at time.Time) (post *models.Post, liked bool, err error)
	AddComment(ctx context.Context, postID primitive.ObjectID, comment models.Comment) (*models.Post, error)
}

// MongoPostRepository implements PostRepository for MongoDB
type MongoPostRepository struct {
	collection *mongo.Collection
}

// NewMongoPostRepository creates a new MongoPostRepository
func NewMongoPostRepository(db *mongo.Database) *MongoPostRepository {
	return &MongoPostRepository{collection: db.Collection("posts")}
}

func (r *MongoPostRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "author", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	})
	return err
}

// CreatePost creates a new post in MongoDB
func (r *MongoPostRepository) CreatePost(ctx context.Context, post *models.Post) error {
	if post.ID.IsZero() {
		post.ID = primitive.NewObjectID()
	}
	if post.Likes == nil {
		post.Likes = []primitive.ObjectID{}
	}
	if post.Comments == nil {
		post.Comments = []models.Comment{}
	}
	if post.Media == nil {
		post.Media = []models.Media{}
	}
	_, err := r.collection.InsertOne(ctx, post)
	return err
}

// GetPostByID retrieves a post by ID from MongoDB
func (r *MongoPostRepository) GetPostByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	var post models.Post
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&post)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return &post, nil
}

func (r *MongoPostRepository) GetPostsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Post, error) {
	if len(ids) == 0 {
		return []models.Post{}, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, 0, int64(len(ids)))
}

// GetFeed returns posts by any of authors, newest first, plus the total count.
func (r *MongoPostRepository) GetFeed(ctx context.Context, authors []primitive.ObjectID, skip, limit int64) ([]models.Post, int64, error) {
	filter := bson.M{"author": bson.M{"$in": authors}}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	posts, err := r.find(ctx, filter, skip, limit)
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func (r *MongoPostRepository) GetPostsByAuthor(ctx context.Context, author primitive.ObjectID, skip, limit int64) ([]models.Post, error) {
	return r.find(ctx, bson.M{"author": author}, skip, limit)
}

// DeletePost deletes a post by ID from MongoDB
func (r *MongoPostRepository) DeletePost(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apperror.NotFound("Post not found")
	}
	return nil
}

func (r *MongoPostRepository) AddLike(ctx context.Context, postID, userID primitive.ObjectID, at time.Time) (*models.Post, bool, error) {
	filter, update := addLikeUpdate(postID, userID, at)
	return r.updateLikes(ctx, postID, filter, update)
}

func (r *MongoPostRepository) RemoveLike(ctx context.Context, postID, userID primitive.ObjectID, at time.Time) (*models.Post, bool, error) {
	filter, update := removeLikeUpdate(postID, userID, at)
	return r.updateLikes(ctx, postID, filter, update)
}

// addLikeUpdate only matches a post the user has not liked yet, so a repeat
// is a miss instead of a second write.
func addLikeUpdate(postID, userID primitive.ObjectID, at time.Time) (bson.M, bson.M) {
	filter := bson.M{"_id": postID, "likes": bson.M{"$ne": userID}}
	update := bson.M{
		"$addToSet": bson.M{"likes": userID},
		"$set":      bson.M{"updatedAt": at},
	}
	return filter, update
}

func removeLikeUpdate(postID, userID primitive.ObjectID, at time.Time) (bson.M, bson.M) {
	filter := bson.M{"_id": postID, "likes": userID}
	update := bson.M{
		"$pull": bson.M{"likes": userID},
		"$set":  bson.M{"updatedAt": at},
	}
	return filter, update
}

// updateLikes applies update when filter matches. A miss means either the
// post is gone or the set already has the wanted shape; the second lookup
// tells those apart.
func (r *MongoPostRepository) updateLikes(ctx context.Context, postID primitive.ObjectID, filter, update bson.M) (*models.Post, bool, error) {
	var post models.Post
	err := r.collection.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&post)
	if err == nil {
		return &post, true, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, err
	}

	current, err := r.GetPostByID(ctx, postID)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

// ToggleLike runs as one pipeline update so two concurrent toggles from the
// same user cannot both add.
func (r *MongoPostRepository) ToggleLike(ctx context.Context, postID, userID primitive.ObjectID, at time.Time) (*models.Post, bool, error) {
	update := toggleLikePipeline(userID, at)

	var post models.Post
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": postID}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&post)
	if err != nil {
		return nil, false, notFoundOr(err)
	}
	return &post, post.IsLikedBy(userID), nil
}

// toggleLikePipeline removes userID from likes when present and appends it
// otherwise, in a single document update.
func toggleLikePipeline(userID primitive.ObjectID, at time.Time) mongo.Pipeline {
	likes := bson.D{{Key: "$ifNull", Value: bson.A{"$likes", bson.A{}}}}
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "likes", Value: bson.D{{Key: "$cond", Value: bson.D{
				{Key: "if", Value: bson.D{{Key: "$in", Value: bson.A{userID, likes}}}},
				{Key: "then", Value: bson.D{{Key: "$filter", Value: bson.D{
					{Key: "input", Value: likes},
					{Key: "cond", Value: bson.D{{Key: "$ne", Value: bson.A{"$$this", userID}}}},
				}}}},
				{Key: "else", Value: bson.D{{Key: "$concatArrays", Value: bson.A{likes, bson.A{userID}}}}},
			}}}},
			{Key: "updatedAt", Value: at},
		}}},
	}
}

// AddComment appends one comment and returns the updated post.
func (r *MongoPostRepository) AddComment(ctx context.Context, postID primitive.ObjectID, comment models.Comment) (*models.Post, error) {
	update := bson.M{
		"$push": bson.M{"comments": comment},
		"$set":  bson.M{"updatedAt": comment.CreatedAt},
	}

	var post models.Post
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": postID}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&post)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return &post, nil
}

func (r *MongoPostRepository) find(ctx context.Context, filter bson.M, skip, limit int64) ([]models.Post, error) {
	findOptions := options.Find().SetSkip(skip).SetLimit(limit).SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	posts := []models.Post{}
	if err = cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func notFoundOr(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return apperror.NotFound("Post not found")
	}
	return err
}
