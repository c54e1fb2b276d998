package db

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
)

// codeNamespaceNotFound is returned when listing indexes of a collection that does not exist yet.
const codeNamespaceNotFound = 26

func ListCollectionIndexes(ctx context.Context, collection *mongo.Collection) ([]IndexInfo, error) {
	cursor, err := collection.Indexes().List(ctx)
	if err != nil {
		var cmdErr mongo.CommandError
		if errors.As(err, &cmdErr) && cmdErr.Code == codeNamespaceNotFound {
			return []IndexInfo{}, nil
		}
		return nil, err
	}
	defer cursor.Close(ctx)

	indexes := []IndexInfo{}
	if err = cursor.All(ctx, &indexes); err != nil {
		return nil, err
	}
	return indexes, nil
}
