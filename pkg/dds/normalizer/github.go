package normalizer

import (
	"strconv"

	ddsTypes "github.com/ddsurveys/dds-backend/pkg/dds/types"
)

type githubUser struct {
	ID          *int64  `json:"id"`
	Login       *string `json:"login"`
	Name        *string `json:"name"`
	Bio         *string `json:"bio"`
	Followers   *int    `json:"followers"`
	Following   *int    `json:"following"`
	PublicRepos *int    `json:"public_repos"`
	CreatedAt   *string `json:"created_at"`
}

type githubEvent struct {
	Type      string `json:"type"`
	CreatedAt string `json:"created_at"`
}

func NormalizeGitHub(raw ddsTypes.RawPayload) (ddsTypes.NormalizedRecord, error) {
	record := emptyRecord(ddsTypes.PROVIDER_GITHUB)

	var user githubUser
	found, err := decodeResource(raw, ddsTypes.RESOURCE_GITHUB_USER, &user)
	if err != nil {
		return record, err
	}
	if found {
		if user.ID != nil {
			record.Account.ID = ddsTypes.Available(strconv.FormatInt(*user.ID, 10))
		}
		record.Account.Username = maybeString(user.Login)
		record.Account.DisplayName = maybeString(user.Name)
		record.Account.Biography = maybeString(user.Bio)
		record.Account.Followers = maybeInt(user.Followers)
		record.Account.Following = maybeInt(user.Following)
		record.Account.PublicRepos = maybeInt(user.PublicRepos)
		record.Account.CreatedAt = maybeTime(user.CreatedAt)
	}

	var events []githubEvent
	found, err = decodeResource(raw, ddsTypes.RESOURCE_GITHUB_EVENTS, &events)
	if err != nil {
		return record, err
	}
	if found {
		activities := make([]ddsTypes.Activity, 0, len(events))
		for _, e := range events {
			a := ddsTypes.Activity{Type: e.Type}
			if t, ok := parseTime(e.CreatedAt); ok {
				a.Timestamp = t
			}
			activities = append(activities, a)
		}
		activityStats(&record, activities)
	}
	return record, nil
}
