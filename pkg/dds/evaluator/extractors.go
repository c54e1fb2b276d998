package evaluator

import (
	"sort"
	"strings"
	"time"

	ddsTypes "github.com/ddsurveys/dds-backend/pkg/dds/types"
	"github.com/ddsurveys/dds-backend/pkg/utils"
)

// extractor derives the raw value of a category: float64 for Scale, string for String,
// time.Time or ddsTypes.Date for Date. false means the data is unavailable.
type extractor func(r *ddsTypes.NormalizedRecord) (any, bool)

var extractors = map[string]extractor{}

func register(provider string, category string, fn extractor) {
	extractors[ddsTypes.VariableName(provider, category)] = fn
}

func init() {
	gh := ddsTypes.PROVIDER_GITHUB
	register(gh, "activities.average", weeklyActivityAverage)
	register(gh, "activities.average_precise", weeklyActivityAverage)
	register(gh, "activities.count", activityCount)
	register(gh, "activities.most_frequent", activityRank(0))
	register(gh, "activities.second_most_frequent", activityRank(1))
	register(gh, "account.created_date", accountCreated)
	register(gh, "account.username", accountUsername)
	register(gh, "followers.count", accountInt(func(a ddsTypes.Account) ddsTypes.Maybe[int] { return a.Followers }))
	register(gh, "repositories.count", accountInt(func(a ddsTypes.Account) ddsTypes.Maybe[int] { return a.PublicRepos }))
	register(gh, "bio.word_count", func(r *ddsTypes.NormalizedRecord) (any, bool) {
		bio, ok := r.Account.Biography.Get()
		if !ok {
			return nil, false
		}
		return float64(utils.CountWords(bio)), true
	})

	fb := ddsTypes.PROVIDER_FITBIT
	register(fb, "steps.average", func(r *ddsTypes.NormalizedRecord) (any, bool) {
		return mean(r.DailySteps)
	})
	register(fb, "steps.total", func(r *ddsTypes.NormalizedRecord) (any, bool) {
		steps, ok := r.DailySteps.Get()
		if !ok {
			return nil, false
		}
		return sum(steps), true
	})
	register(fb, "activities.count", activityCount)
	register(fb, "activities.most_frequent", activityRank(0))
	register(fb, "account.created_date", accountCreated)

	ig := ddsTypes.PROVIDER_INSTAGRAM
	register(ig, "account.username", accountUsername)
	register(ig, "posts.count", func(r *ddsTypes.NormalizedRecord) (any, bool) {
		if n, ok := r.Account.MediaCount.Get(); ok {
			return float64(n), true
		}
		n, ok := ddsTypes.Count(r.Posts).Get()
		return float64(n), ok
	})
	register(ig, "posts.latest_date", func(r *ddsTypes.NormalizedRecord) (any, bool) {
		posts, _ := r.Posts.Get()
		var latest time.Time
		for _, p := range posts {
			if p.Timestamp.After(latest) {
				latest = p.Timestamp
			}
		}
		return latest, !latest.IsZero()
	})
	register(ig, "posts.most_frequent_type", func(r *ddsTypes.NormalizedRecord) (any, bool) {
		posts, _ := r.Posts.Get()
		types := make([]string, len(posts))
		for i, p := range posts {
			types[i] = p.MediaType
		}
		return mostFrequent(types)
	})
	register(ig, "captions.words.average", captionAverage(utils.CountWords))
	register(ig, "captions.sentences.average", captionAverage(utils.CountSentences))
	register(ig, "captions.paragraphs.average", captionAverage(utils.CountParagraphs))

	gc := ddsTypes.PROVIDER_GOOGLE_CONTACTS
	register(gc, "contacts.count", func(r *ddsTypes.NormalizedRecord) (any, bool) {
		n, ok := ddsTypes.Count(r.Contacts).Get()
		return float64(n), ok
	})
	register(gc, "contacts.birthdays.count", contactsWith(func(c ddsTypes.Contact) bool { return c.Birthday.IsAvailable() }))
	register(gc, "contacts.addresses.count", contactsWith(func(c ddsTypes.Contact) bool { return hasItems(c.Addresses) }))
	register(gc, "contacts.emails.count", contactsWith(func(c ddsTypes.Contact) bool { return hasItems(c.Emails) }))
	register(gc, "contacts.phones.count", contactsWith(func(c ddsTypes.Contact) bool { return hasItems(c.PhoneNumbers) }))
	register(gc, "contacts.relations.count", contactsWith(func(c ddsTypes.Contact) bool { return hasItems(c.Relations) }))
	register(gc, "contacts.organizations.most_frequent", func(r *ddsTypes.NormalizedRecord) (any, bool) {
		contacts, _ := r.Contacts.Get()
		names := []string{}
		for _, c := range contacts {
			orgs, _ := c.Organizations.Get()
			for _, o := range orgs {
				names = append(names, o.Name)
			}
		}
		return mostFrequent(names)
	})
	register(gc, "contacts.biographies.words.average", func(r *ddsTypes.NormalizedRecord) (any, bool) {
		contacts, _ := r.Contacts.Get()
		counts := []float64{}
		for _, c := range contacts {
			if bio, ok := c.Biography.Get(); ok {
				counts = append(counts, float64(utils.CountWords(bio)))
			}
		}
		return mean(ddsTypes.AvailableList(counts))
	})

	dds := ddsTypes.PROVIDER_DDS
	register(dds, "providers.connected.count", func(r *ddsTypes.NormalizedRecord) (any, bool) {
		n, ok := ddsTypes.Count(r.ConnectedProviders).Get()
		return float64(n), ok
	})
	register(dds, "providers.connected", func(r *ddsTypes.NormalizedRecord) (any, bool) {
		providers, ok := r.ConnectedProviders.Get()
		if !ok || len(providers) == 0 {
			return nil, false
		}
		return strings.Join(providers, ","), true
	})
}

func weeklyActivityAverage(r *ddsTypes.NormalizedRecord) (any, bool) {
	return mean(r.WeeklyActivityCounts)
}

func activityCount(r *ddsTypes.NormalizedRecord) (any, bool) {
	n, ok := ddsTypes.Count(r.Activities).Get()
	return float64(n), ok
}

func activityRank(i int) extractor {
	return func(r *ddsTypes.NormalizedRecord) (any, bool) {
		return ddsTypes.ItemAt(r.ActivitiesByFrequency, i).Get()
	}
}

func accountCreated(r *ddsTypes.NormalizedRecord) (any, bool) {
	return r.Account.CreatedAt.Get()
}

func accountUsername(r *ddsTypes.NormalizedRecord) (any, bool) {
	return r.Account.Username.Get()
}

func accountInt(field func(a ddsTypes.Account) ddsTypes.Maybe[int]) extractor {
	return func(r *ddsTypes.NormalizedRecord) (any, bool) {
		n, ok := field(r.Account).Get()
		return float64(n), ok
	}
}

func captionAverage(count func(string) int) extractor {
	return func(r *ddsTypes.NormalizedRecord) (any, bool) {
		posts, _ := r.Posts.Get()
		counts := []float64{}
		for _, p := range posts {
			if p.Caption != "" {
				counts = append(counts, float64(count(p.Caption)))
			}
		}
		return mean(ddsTypes.AvailableList(counts))
	}
}

// contactsWith counts the contacts matching pred. Unavailable if the contact list is.
func contactsWith(pred func(c ddsTypes.Contact) bool) extractor {
	return func(r *ddsTypes.NormalizedRecord) (any, bool) {
		contacts, ok := r.Contacts.Get()
		if !ok {
			return nil, false
		}
		n := 0
		for _, c := range contacts {
			if pred(c) {
				n++
			}
		}
		return float64(n), true
	}
}

func hasItems[T any](m ddsTypes.Maybe[[]T]) bool {
	items, ok := m.Get()
	return ok && len(items) > 0
}

func sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}

// mean of an available, non-empty series.
func mean(m ddsTypes.Maybe[[]float64]) (any, bool) {
	values, ok := m.Get()
	if !ok || len(values) == 0 {
		return nil, false
	}
	return sum(values) / float64(len(values)), true
}

// mostFrequent returns the most frequent non-empty value, ties alphabetical.
func mostFrequent(values []string) (any, bool) {
	counts := map[string]int{}
	for _, v := range values {
		if v != "" {
			counts[v]++
		}
	}
	if len(counts) == 0 {
		return nil, false
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	best := keys[0]
	for _, k := range keys[1:] {
		if counts[k] > counts[best] {
			best = k
		}
	}
	return best, true
}
