package normalizer

import (
	"time"

	ddsTypes "github.com/ddsurveys/dds-backend/pkg/dds/types"
)

type googleDate struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

type googleFieldMetadata struct {
	Primary bool `json:"primary"`
}

type googleBirthday struct {
	Date     *googleDate          `json:"date"`
	Text     string               `json:"text"`
	Metadata *googleFieldMetadata `json:"metadata"`
}

type googlePerson struct {
	ResourceName string `json:"resourceName"`
	Names        *[]struct {
		DisplayName string               `json:"displayName"`
		GivenName   string               `json:"givenName"`
		FamilyName  string               `json:"familyName"`
		Metadata    *googleFieldMetadata `json:"metadata"`
	} `json:"names"`
	Birthdays *[]googleBirthday `json:"birthdays"`
	Addresses *[]struct {
		FormattedValue string `json:"formattedValue"`
		Type           string `json:"type"`
		City           string `json:"city"`
		Country        string `json:"country"`
	} `json:"addresses"`
	EmailAddresses *[]struct {
		Value string `json:"value"`
	} `json:"emailAddresses"`
	PhoneNumbers *[]struct {
		Value string `json:"value"`
	} `json:"phoneNumbers"`
	Biographies *[]struct {
		Value string `json:"value"`
	} `json:"biographies"`
	Organizations *[]struct {
		Name  string `json:"name"`
		Title string `json:"title"`
	} `json:"organizations"`
	Events *[]struct {
		Date *googleDate `json:"date"`
		Type string      `json:"type"`
	} `json:"events"`
	Relations *[]struct {
		Person string `json:"person"`
		Type   string `json:"type"`
	} `json:"relations"`
	Memberships *[]struct {
		ContactGroupMembership *struct {
			ContactGroupResourceName string `json:"contactGroupResourceName"`
		} `json:"contactGroupMembership"`
	} `json:"memberships"`
}

// NormalizeGoogleContacts maps the People API connections list. The connections resource is
// the concatenation of all result pages; an absent list means the respondent has no contacts.
func NormalizeGoogleContacts(raw ddsTypes.RawPayload) (ddsTypes.NormalizedRecord, error) {
	record := emptyRecord(ddsTypes.PROVIDER_GOOGLE_CONTACTS)

	var people []googlePerson
	found, err := decodeResource(raw, ddsTypes.RESOURCE_GOOGLE_CONTACTS_CONNECTIONS, &people)
	if err != nil {
		return record, err
	}
	if !found {
		if _, present := raw.Resources[ddsTypes.RESOURCE_GOOGLE_CONTACTS_CONNECTIONS]; present {
			record.Contacts = ddsTypes.Available([]ddsTypes.Contact{})
		}
		return record, nil
	}

	contacts := make([]ddsTypes.Contact, 0, len(people))
	for _, p := range people {
		contacts = append(contacts, normalizePerson(p))
	}
	record.Contacts = ddsTypes.Available(contacts)
	return record, nil
}

func normalizePerson(p googlePerson) ddsTypes.Contact {
	c := ddsTypes.Contact{
		ResourceName:  p.ResourceName,
		Names:         ddsTypes.Unavailable[[]ddsTypes.Name](),
		Birthday:      ddsTypes.Unavailable[ddsTypes.Date](),
		Addresses:     ddsTypes.Unavailable[[]ddsTypes.Address](),
		Emails:        ddsTypes.Unavailable[[]string](),
		PhoneNumbers:  ddsTypes.Unavailable[[]string](),
		Biography:     ddsTypes.Unavailable[string](),
		Organizations: ddsTypes.Unavailable[[]ddsTypes.Organization](),
		Events:        ddsTypes.Unavailable[[]ddsTypes.Event](),
		Relations:     ddsTypes.Unavailable[[]ddsTypes.Relation](),
		Memberships:   ddsTypes.Unavailable[[]string](),
	}

	if p.Names != nil {
		names := []ddsTypes.Name{}
		for _, n := range *p.Names {
			names = append(names, ddsTypes.Name{
				DisplayName: n.DisplayName,
				GivenName:   n.GivenName,
				FamilyName:  n.FamilyName,
				Primary:     n.Metadata != nil && n.Metadata.Primary,
			})
		}
		c.Names = ddsTypes.AvailableList(names)
	}

	if p.Birthdays != nil {
		c.Birthday = pickBirthday(*p.Birthdays)
	}

	if p.Addresses != nil {
		addresses := []ddsTypes.Address{}
		for _, a := range *p.Addresses {
			addresses = append(addresses, ddsTypes.Address{
				Formatted: a.FormattedValue,
				Type:      a.Type,
				City:      a.City,
				Country:   a.Country,
			})
		}
		c.Addresses = ddsTypes.AvailableList(addresses)
	}

	if p.EmailAddresses != nil {
		emails := []string{}
		for _, e := range *p.EmailAddresses {
			if e.Value != "" {
				emails = append(emails, e.Value)
			}
		}
		c.Emails = ddsTypes.AvailableList(emails)
	}

	if p.PhoneNumbers != nil {
		phones := []string{}
		for _, n := range *p.PhoneNumbers {
			if n.Value != "" {
				phones = append(phones, n.Value)
			}
		}
		c.PhoneNumbers = ddsTypes.AvailableList(phones)
	}

	if p.Biographies != nil && len(*p.Biographies) > 0 {
		c.Biography = ddsTypes.AvailableString((*p.Biographies)[0].Value)
	}

	if p.Organizations != nil {
		orgs := []ddsTypes.Organization{}
		for _, o := range *p.Organizations {
			orgs = append(orgs, ddsTypes.Organization{Name: o.Name, Title: o.Title})
		}
		c.Organizations = ddsTypes.AvailableList(orgs)
	}

	if p.Events != nil {
		events := []ddsTypes.Event{}
		for _, e := range *p.Events {
			ev := ddsTypes.Event{Type: e.Type}
			if e.Date != nil {
				ev.Date = ddsTypes.Date{Year: e.Date.Year, Month: e.Date.Month, Day: e.Date.Day}
			}
			events = append(events, ev)
		}
		c.Events = ddsTypes.AvailableList(events)
	}

	if p.Relations != nil {
		relations := []ddsTypes.Relation{}
		for _, r := range *p.Relations {
			relations = append(relations, ddsTypes.Relation{Person: r.Person, Type: r.Type})
		}
		c.Relations = ddsTypes.AvailableList(relations)
	}

	if p.Memberships != nil {
		groups := []string{}
		for _, m := range *p.Memberships {
			if m.ContactGroupMembership != nil && m.ContactGroupMembership.ContactGroupResourceName != "" {
				groups = append(groups, m.ContactGroupMembership.ContactGroupResourceName)
			}
		}
		c.Memberships = ddsTypes.AvailableList(groups)
	}
	return c
}

// pickBirthday prefers the primary entry, then the first one with a structured date, then
// a parseable text.
func pickBirthday(birthdays []googleBirthday) ddsTypes.Maybe[ddsTypes.Date] {
	var candidate *googleDate
	for _, b := range birthdays {
		if b.Date == nil || b.Date.Month == 0 || b.Date.Day == 0 {
			continue
		}
		if b.Metadata != nil && b.Metadata.Primary {
			candidate = b.Date
			break
		}
		if candidate == nil {
			candidate = b.Date
		}
	}
	if candidate != nil {
		return ddsTypes.Available(ddsTypes.Date{Year: candidate.Year, Month: candidate.Month, Day: candidate.Day})
	}
	for _, b := range birthdays {
		if t, err := time.Parse("2006-01-02", b.Text); err == nil {
			return ddsTypes.Available(ddsTypes.Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()})
		}
	}
	return ddsTypes.Unavailable[ddsTypes.Date]()
}
