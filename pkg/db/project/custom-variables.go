package project

import (
	"errors"
	"time"

	ddsTypes "github.com/ddsurveys/dds-backend/pkg/dds/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrCustomVariableExists = errors.New("custom variable already exists")

func (dbService *ProjectDBService) CreateCustomVariable(instanceID string, cv ddsTypes.CustomVariable) (ddsTypes.CustomVariable, error) {
	ctx, cancel := dbService.getContext()
	defer cancel()

	cv.ID = primitive.NilObjectID
	cv.CreatedAt = time.Now().UTC()

	res, err := dbService.collectionCustomVariables(instanceID).InsertOne(ctx, cv)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return cv, ErrCustomVariableExists
		}
		return cv, err
	}
	cv.ID = res.InsertedID.(primitive.ObjectID)
	return cv, nil
}

// GetCustomVariableDefinitions returns the definitions of a project in creation order.
func (dbService *ProjectDBService) GetCustomVariableDefinitions(instanceID string, projectID string) (defs []ddsTypes.CustomVariable, err error) {
	ctx, cancel := dbService.getContext()
	defer cancel()

	filter := bson.M{"projectID": projectID}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := dbService.collectionCustomVariables(instanceID).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	defs = []ddsTypes.CustomVariable{}
	if err = cursor.All(ctx, &defs); err != nil {
		return nil, err
	}
	return defs, nil
}

func (dbService *ProjectDBService) DeleteCustomVariable(instanceID string, projectID string, variableID string) error {
	ctx, cancel := dbService.getContext()
	defer cancel()

	_id, err := primitive.ObjectIDFromHex(variableID)
	if err != nil {
		return err
	}
	filter := bson.M{"_id": _id, "projectID": projectID}
	res, err := dbService.collectionCustomVariables(instanceID).DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if res.DeletedCount < 1 {
		return mongo.ErrNoDocuments
	}
	return nil
}
