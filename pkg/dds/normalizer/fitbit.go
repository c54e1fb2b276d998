package normalizer

import (
	"encoding/json"
	"fmt"
	"strconv"

	ddsTypes "github.com/ddsurveys/dds-backend/pkg/dds/types"
)

type fitbitProfile struct {
	User *struct {
		EncodedID   *string `json:"encodedId"`
		DisplayName *string `json:"displayName"`
		MemberSince *string `json:"memberSince"`
	} `json:"user"`
}

type fitbitSteps struct {
	Steps *[]struct {
		DateTime string      `json:"dateTime"`
		Value    json.Number `json:"value"`
	} `json:"activities-steps"`
}

type fitbitActivityLog struct {
	Activities *[]struct {
		ActivityName string `json:"activityName"`
		StartTime    string `json:"startTime"`
	} `json:"activities"`
}

func NormalizeFitbit(raw ddsTypes.RawPayload) (ddsTypes.NormalizedRecord, error) {
	record := emptyRecord(ddsTypes.PROVIDER_FITBIT)

	var profile fitbitProfile
	found, err := decodeResource(raw, ddsTypes.RESOURCE_FITBIT_PROFILE, &profile)
	if err != nil {
		return record, err
	}
	if found && profile.User != nil {
		record.Account.ID = maybeString(profile.User.EncodedID)
		record.Account.DisplayName = maybeString(profile.User.DisplayName)
		record.Account.CreatedAt = maybeTime(profile.User.MemberSince)
	}

	var steps fitbitSteps
	found, err = decodeResource(raw, ddsTypes.RESOURCE_FITBIT_STEPS, &steps)
	if err != nil {
		return record, err
	}
	if found && steps.Steps != nil {
		values := make([]float64, 0, len(*steps.Steps))
		for _, s := range *steps.Steps {
			// the API sends step counts as strings
			v, err := strconv.ParseFloat(s.Value.String(), 64)
			if err != nil {
				return record, fmt.Errorf("invalid step count for %s: %w", s.DateTime, err)
			}
			values = append(values, v)
		}
		record.DailySteps = ddsTypes.AvailableList(values)
	}

	var log fitbitActivityLog
	found, err = decodeResource(raw, ddsTypes.RESOURCE_FITBIT_ACTIVITIES, &log)
	if err != nil {
		return record, err
	}
	if found && log.Activities != nil {
		activities := make([]ddsTypes.Activity, 0, len(*log.Activities))
		for _, a := range *log.Activities {
			activity := ddsTypes.Activity{Type: a.ActivityName}
			if t, ok := parseTime(a.StartTime); ok {
				activity.Timestamp = t
			}
			activities = append(activities, activity)
		}
		activityStats(&record, activities)
	}
	return record, nil
}
