package review

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMongoRepository_CreateDuplicate(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	mt.Run("unique index rejects a second review", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.DB)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(),
			mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "E11000 duplicate key error"}),
		)
		rv := Review{ProductID: "p1", UserID: "u1", Rating: 4, Comment: "works as described"}
		created, err := repo.Create(context.Background(), rv)
		require.NoError(mt, err)
		assert.False(mt, created.ID.IsZero())
		assert.False(mt, created.CreatedAt.IsZero())

		_, err = repo.Create(context.Background(), rv)
		assert.ErrorIs(mt, err, ErrDuplicate)
	})
}

func TestMongoRepository_Stats(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	mt.Run("groups by rating", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mt.DB.Name()+".reviews", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: 5}, {Key: "count", Value: int64(2)}},
			bson.D{{Key: "_id", Value: 3}, {Key: "count", Value: int64(1)}},
		))
		st, err := repo.Stats(context.Background(), "p1")
		require.NoError(mt, err)
		assert.Equal(mt, 3, st.TotalReviews)
		assert.Equal(mt, 4.3, st.AverageRating)
		assert.Equal(mt, map[string]int64{"1": 0, "2": 0, "3": 1, "4": 0, "5": 2}, st.RatingDistribution)

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, "p1", evt.Command.Lookup("pipeline", "0", "$match", "productId").StringValue())
	})

	mt.Run("no reviews", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mt.DB.Name()+".reviews", mtest.FirstBatch))
		st, err := repo.Stats(context.Background(), "p1")
		require.NoError(mt, err)
		assert.Zero(mt, st.TotalReviews)
		assert.Zero(mt, st.AverageRating)
		assert.Len(mt, st.RatingDistribution, 5)
	})
}
