package project

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrStateTokenUsed = errors.New("state token already used")

type usedStateToken struct {
	TokenID   string    `bson:"tokenID"`
	ExpiresAt time.Time `bson:"expiresAt"`
}

var indexesForUsedStateTokensCollection = []mongo.IndexModel{
	{
		Keys: bson.D{
			{Key: "tokenID", Value: 1},
		},
		Options: options.Index().SetUnique(true).SetName("tokenID_1"),
	},
	{
		Keys: bson.D{
			{Key: "expiresAt", Value: 1},
		},
		Options: options.Index().SetExpireAfterSeconds(0).SetName("expiresAt_1"),
	},
}

func (dbService *ProjectDBService) CreateDefaultIndexesForUsedStateTokensCollection(instanceID string) {
	dbService.createIndexes(instanceID, dbService.collectionUsedStateTokens(instanceID), indexesForUsedStateTokensCollection)
}

// MarkStateTokenUsed records the ID of a consent state token. A second call with the same ID
// returns ErrStateTokenUsed. Entries are removed by the TTL index once the token expired.
func (dbService *ProjectDBService) MarkStateTokenUsed(instanceID string, tokenID string, expiresAt time.Time) error {
	ctx, cancel := dbService.getContext()
	defer cancel()

	_, err := dbService.collectionUsedStateTokens(instanceID).InsertOne(ctx, usedStateToken{
		TokenID:   tokenID,
		ExpiresAt: expiresAt,
	})
	if mongo.IsDuplicateKeyError(err) {
		return ErrStateTokenUsed
	}
	return err
}
