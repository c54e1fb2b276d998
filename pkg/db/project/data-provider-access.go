package project

import (
	"errors"
	"sort"
	"time"

	ddsTypes "github.com/ddsurveys/dds-backend/pkg/dds/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SaveDataProviderAccess stores a fresh grant, replacing an earlier one of the same respondent.
func (dbService *ProjectDBService) SaveDataProviderAccess(instanceID string, access ddsTypes.DataProviderAccess) error {
	ctx, cancel := dbService.getContext()
	defer cancel()

	if access.GrantedAt.IsZero() {
		access.GrantedAt = time.Now().UTC()
	}
	filter := bson.M{
		"respondentID": access.RespondentID,
		"projectID":    access.ProjectID,
		"provider":     access.Provider,
	}
	replacement := bson.M{
		"respondentID": access.RespondentID,
		"projectID":    access.ProjectID,
		"provider":     access.Provider,
		"accessToken":  access.AccessToken,
		"refreshToken": access.RefreshToken,
		"tokenType":    access.TokenType,
		"scopes":       access.Scopes,
		"expiry":       access.Expiry,
		"grantedAt":    access.GrantedAt,
	}
	_, err := dbService.collectionDataProviderAccess(instanceID).ReplaceOne(ctx, filter, replacement, options.Replace().SetUpsert(true))
	return err
}

// GetDataProviderAccess returns nil if the respondent did not grant access.
func (dbService *ProjectDBService) GetDataProviderAccess(instanceID string, respondentID string, projectID string, provider string) (*ddsTypes.DataProviderAccess, error) {
	ctx, cancel := dbService.getContext()
	defer cancel()

	filter := bson.M{"respondentID": respondentID, "projectID": projectID, "provider": provider}
	var access ddsTypes.DataProviderAccess
	err := dbService.collectionDataProviderAccess(instanceID).FindOne(ctx, filter).Decode(&access)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &access, nil
}

// UpdateDataProviderAccessTokens stores refreshed tokens in one atomic update. The refresh
// token is only replaced if the provider issued a new one.
func (dbService *ProjectDBService) UpdateDataProviderAccessTokens(instanceID string, access ddsTypes.DataProviderAccess) error {
	ctx, cancel := dbService.getContext()
	defer cancel()

	filter := bson.M{
		"respondentID": access.RespondentID,
		"projectID":    access.ProjectID,
		"provider":     access.Provider,
	}
	set := bson.M{
		"accessToken": access.AccessToken,
		"tokenType":   access.TokenType,
		"expiry":      access.Expiry,
		"refreshedAt": access.RefreshedAt,
	}
	if access.RefreshToken != "" {
		set["refreshToken"] = access.RefreshToken
	}
	res, err := dbService.collectionDataProviderAccess(instanceID).UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount < 1 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// GetConnectedProviders lists the providers a respondent granted access to, sorted.
func (dbService *ProjectDBService) GetConnectedProviders(instanceID string, projectID string, respondentID string) ([]string, error) {
	ctx, cancel := dbService.getContext()
	defer cancel()

	filter := bson.M{"respondentID": respondentID, "projectID": projectID}
	values, err := dbService.collectionDataProviderAccess(instanceID).Distinct(ctx, "provider", filter)
	if err != nil {
		return nil, err
	}
	providers := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			providers = append(providers, s)
		}
	}
	sort.Strings(providers)
	return providers, nil
}
