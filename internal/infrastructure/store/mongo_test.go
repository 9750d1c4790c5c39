package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestAggregateIndexes_UniqueUserID(t *testing.T) {
	indexes := aggregateIndexes()

	for _, name := range []string{CartsCollection, WishlistsCollection} {
		t.Run(name, func(t *testing.T) {
			models := indexes[name]
			require.NotEmpty(t, models)
			first := models[0]
			assert.Equal(t, bson.D{{Key: "userId", Value: 1}}, first.Keys)
			require.NotNil(t, first.Options)
			require.NotNil(t, first.Options.Unique)
			assert.True(t, *first.Options.Unique)
		})
	}
}

func TestVersionFilter(t *testing.T) {
	tests := []struct {
		name     string
		expected int64
		want     bson.M
	}{
		{"first save matches missing version", 0, bson.M{"userId": "alice", "version": nil}},
		{"later save matches loaded version", 4, bson.M{"userId": "alice", "version": int64(4)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, versionFilter("alice", tt.expected))
		})
	}
}

func TestInsertOutcome(t *testing.T) {
	duplicate := mongo.WriteException{
		WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key error collection: plantstore.carts index: userId_1"}},
	}

	tests := []struct {
		name    string
		err     error
		wantOK  bool
		wantErr bool
	}{
		{"inserted", nil, true, false},
		{"duplicate userId is a lost race", duplicate, false, false},
		{"other write errors surface", mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 121}}}, false, true},
		{"driver errors surface", errors.New("socket closed"), false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := insertOutcome(tt.err)

			assert.Equal(t, tt.wantOK, ok)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
