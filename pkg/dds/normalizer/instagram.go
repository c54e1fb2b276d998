package normalizer

import (
	ddsTypes "github.com/ddsurveys/dds-backend/pkg/dds/types"
)

type instagramProfile struct {
	ID         *string `json:"id"`
	Username   *string `json:"username"`
	MediaCount *int    `json:"media_count"`
}

type instagramMedia struct {
	Data *[]struct {
		ID        string `json:"id"`
		Caption   string `json:"caption"`
		MediaType string `json:"media_type"`
		Timestamp string `json:"timestamp"`
	} `json:"data"`
}

func NormalizeInstagram(raw ddsTypes.RawPayload) (ddsTypes.NormalizedRecord, error) {
	record := emptyRecord(ddsTypes.PROVIDER_INSTAGRAM)

	var profile instagramProfile
	found, err := decodeResource(raw, ddsTypes.RESOURCE_INSTAGRAM_PROFILE, &profile)
	if err != nil {
		return record, err
	}
	if found {
		record.Account.ID = maybeString(profile.ID)
		record.Account.Username = maybeString(profile.Username)
		record.Account.MediaCount = maybeInt(profile.MediaCount)
	}

	var media instagramMedia
	found, err = decodeResource(raw, ddsTypes.RESOURCE_INSTAGRAM_MEDIA, &media)
	if err != nil {
		return record, err
	}
	if found && media.Data != nil {
		posts := make([]ddsTypes.Post, 0, len(*media.Data))
		for _, m := range *media.Data {
			p := ddsTypes.Post{ID: m.ID, Caption: m.Caption, MediaType: m.MediaType}
			if t, ok := parseTime(m.Timestamp); ok {
				p.Timestamp = t
			}
			posts = append(posts, p)
		}
		record.Posts = ddsTypes.Available(posts)
	}
	return record, nil
}
