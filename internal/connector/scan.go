package connector

import (
	"database/sql"
	"encoding/json"

	"github.com/evently-labs/recoengine/internal/domain"
)

// rowScanner is satisfied by both *sql.Row and *sql.Rows, letting scanEvent/scanUser
// serve single-row and multi-row queries alike.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(r rowScanner) (domain.Event, error) {
	var e domain.Event
	var description, category, location sql.NullString
	var tagsJSON sql.NullString
	var maxAttendees sql.NullInt64
	var organizationID sql.NullString
	var archived int
	var archivedAt sql.NullTime

	err := r.Scan(&e.ID, &e.Title, &description, &category, &tagsJSON, &location,
		&e.StartTime, &e.EndTime, &maxAttendees, &e.OrganizerID, &organizationID,
		&archived, &archivedAt, &e.CreatedAt)
	if err != nil {
		return domain.Event{}, err
	}

	e.Description = description.String
	e.Category = category.String
	e.Location = location.String
	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &e.Tags); err != nil {
			return domain.Event{}, err
		}
	}
	if maxAttendees.Valid {
		v := int(maxAttendees.Int64)
		e.MaxAttendees = &v
	}
	if organizationID.Valid {
		e.OrganizationID = &organizationID.String
	}
	e.Archived = archived != 0
	if archivedAt.Valid {
		t := archivedAt.Time
		e.ArchivedAt = &t
	}
	return e, nil
}

func scanUser(r rowScanner) (domain.User, error) {
	var u domain.User
	var bio, location sql.NullString
	var interestsJSON sql.NullString
	var kind string

	err := r.Scan(&u.ID, &u.Username, &bio, &location, &interestsJSON, &kind, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return domain.User{}, err
	}
	u.Bio = bio.String
	u.Location = location.String
	if interestsJSON.Valid && interestsJSON.String != "" {
		if err := json.Unmarshal([]byte(interestsJSON.String), &u.Interests); err != nil {
			return domain.User{}, err
		}
	}
	u.Kind = domain.AccountKind(kind)
	return u, nil
}
