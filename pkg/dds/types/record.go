package types

import (
	"fmt"
	"time"
)

// NormalizedRecord is the provider independent projection of one respondent's data.
// It only lives during an evaluation run and is never persisted.
type NormalizedRecord struct {
	Provider  string
	FetchedAt time.Time

	Account Account

	// Google Contacts
	Contacts Maybe[[]Contact]

	// GitHub events, Fitbit activity logs
	Activities Maybe[[]Activity]
	// Activity types ordered by descending frequency, ties alphabetical.
	ActivitiesByFrequency Maybe[[]string]
	// Activity counts per calendar week (Monday based), oldest week first, empty weeks included.
	WeeklyActivityCounts Maybe[[]float64]

	// Fitbit
	DailySteps Maybe[[]float64]

	// Instagram
	Posts Maybe[[]Post]

	// DDS internal
	ConnectedProviders Maybe[[]string]
}

type Account struct {
	ID          Maybe[string]
	Username    Maybe[string]
	DisplayName Maybe[string]
	CreatedAt   Maybe[time.Time]
	Biography   Maybe[string]
	Followers   Maybe[int]
	Following   Maybe[int]
	PublicRepos Maybe[int]
	MediaCount  Maybe[int]
}

type Contact struct {
	ResourceName  string
	Names         Maybe[[]Name]
	Birthday      Maybe[Date]
	Addresses     Maybe[[]Address]
	Emails        Maybe[[]string]
	PhoneNumbers  Maybe[[]string]
	Biography     Maybe[string]
	Organizations Maybe[[]Organization]
	Events        Maybe[[]Event]
	Relations     Maybe[[]Relation]
	Memberships   Maybe[[]string]
}

type Name struct {
	DisplayName string
	GivenName   string
	FamilyName  string
	Primary     bool
}

type Address struct {
	Formatted string
	Type      string
	City      string
	Country   string
}

type Organization struct {
	Name  string
	Title string
}

type Event struct {
	Type string
	Date Date
}

type Relation struct {
	Person string
	Type   string
}

// Date is a calendar date where Year may be 0 (unknown), as in birthdays without a year.
type Date struct {
	Year  int
	Month int
	Day   int
}

type Activity struct {
	Type      string
	Timestamp time.Time
}

type Post struct {
	ID        string
	Caption   string
	MediaType string
	Timestamp time.Time
}

// String formats the date as YYYY-MM-DD, or --MM-DD when the year is unknown.
func (d Date) String() string {
	if d.Year == 0 {
		return fmt.Sprintf("--%02d-%02d", d.Month, d.Day)
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}
