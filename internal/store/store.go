// Package store owns the contacts table: its schema and every SQL statement run against it.
// Every query is scoped by the owning user, so one user can never read or change another
// user's contacts through this package.
package store

import (
	"context"
	"database/sql"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"gitlab.com/dirk.krummacker/location-contacts/internal/geo"
	"gitlab.com/dirk.krummacker/location-contacts/pkg/model"
)

// DefaultRadiusKm is the search radius used when a proximity search does not specify one.
const DefaultRadiusKm = 5.0

// ErrNotFound is returned when no contact with the given id belongs to the given user.
var ErrNotFound = errors.New("contact not found")

// ErrInvalidArgument is returned for search parameters outside their domain.
var ErrInvalidArgument = errors.New("invalid argument")

// contactColumns is the exhaustive column list of the contacts table, in model field order.
const contactColumns = `id, user_id, first_name, last_name, email, phone_number, phone_number_alt,
	company, job_title, address, pet_name, pet_type, spouse_name, children_names, birthday,
	anniversary, notes, latitude, longitude, location_name, created_at, updated_at`

const insertContact = `
	INSERT INTO contacts (` + contactColumns + `)
	VALUES (:id, :user_id, :first_name, :last_name, :email, :phone_number, :phone_number_alt,
		:company, :job_title, :address, :pet_name, :pet_type, :spouse_name, :children_names,
		:birthday, :anniversary, :notes, :latitude, :longitude, :location_name, :created_at,
		:updated_at)`

const selectByUser = `
	SELECT ` + contactColumns + `
	FROM contacts
	WHERE user_id = ?
	ORDER BY created_at DESC`

const selectWhereId = `
	SELECT ` + contactColumns + `
	FROM contacts
	WHERE id = ? AND user_id = ?`

const deleteWhereId = `
	DELETE FROM contacts WHERE id = ? AND user_id = ?`

// ContactStore runs the contact statements against a database handle that lives for the whole
// process.
type ContactStore struct {
	db      *sqlx.DB
	dialect string

	clockMu sync.Mutex
	now     func() time.Time
	last    time.Time

	schemaMu sync.Mutex
}

// New wraps the database handle. The driver name of the handle decides the SQL dialect: "pgx"
// and "postgres" select PostgreSQL, everything else MySQL.
func New(db *sqlx.DB) *ContactStore {
	return &ContactStore{
		db:      db,
		dialect: dialectFor(db.DriverName()),
		now:     time.Now,
	}
}

// Ping checks that the database answers.
func (s *ContactStore) Ping(ctx context.Context) error {
	return errors.Wrap(s.db.PingContext(ctx), "ping database")
}

// timestamp returns the current UTC time at microsecond precision, strictly after every
// timestamp returned before, so that updated_at always moves forward.
func (s *ContactStore) timestamp() time.Time {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()
	t := s.now().UTC().Truncate(time.Microsecond)
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

// Insert stores a new contact for the user and returns it with its generated id and timestamps.
// Absent optional fields are stored as NULL. The caller must have checked that both coordinates
// are present.
func (s *ContactStore) Insert(ctx context.Context, userID string, input model.NewContact) (model.Contact, error) {
	if !input.HasCoordinates() {
		return model.Contact{}, errors.Wrap(ErrInvalidArgument, "insert contact without coordinates")
	}
	input.Normalize()
	now := s.timestamp()
	contact := model.Contact{
		Id:             uuid.NewString(),
		UserId:         userID,
		FirstName:      input.FirstName,
		LastName:       input.LastName,
		Email:          input.Email,
		PhoneNumber:    input.PhoneNumber,
		PhoneNumberAlt: input.PhoneNumberAlt,
		Company:        input.Company,
		JobTitle:       input.JobTitle,
		Address:        input.Address,
		PetName:        input.PetName,
		PetType:        input.PetType,
		SpouseName:     input.SpouseName,
		ChildrenNames:  input.ChildrenNames,
		Birthday:       input.Birthday,
		Anniversary:    input.Anniversary,
		Notes:          input.Notes,
		Latitude:       model.RoundCoordinate(*input.Latitude),
		Longitude:      model.RoundCoordinate(*input.Longitude),
		LocationName:   input.LocationName,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := s.db.NamedExecContext(ctx, insertContact, &contact); err != nil {
		return model.Contact{}, errors.Wrap(err, "insert contact")
	}
	return contact, nil
}

// ListByUser returns all contacts of the user, most recently created first. The result is never
// nil.
func (s *ContactStore) ListByUser(ctx context.Context, userID string) ([]model.Contact, error) {
	contacts := []model.Contact{}
	if err := s.db.SelectContext(ctx, &contacts, s.db.Rebind(selectByUser), userID); err != nil {
		return nil, errors.Wrap(err, "select contacts by user")
	}
	return contacts, nil
}

// GetByID returns the contact with the id if it belongs to the user, ErrNotFound otherwise.
func (s *ContactStore) GetByID(ctx context.Context, id string, userID string) (model.Contact, error) {
	var contacts []model.Contact
	if err := s.db.SelectContext(ctx, &contacts, s.db.Rebind(selectWhereId), id, userID); err != nil {
		return model.Contact{}, errors.Wrap(err, "select contact by id")
	}
	if len(contacts) == 0 {
		return model.Contact{}, ErrNotFound
	}
	return contacts[0], nil
}

// Update overwrites the fields present in the patch and leaves all others unchanged. updated_at
// is refreshed even for an empty patch. It returns ErrNotFound if no contact with the id belongs
// to the user, and the contact as stored after the update otherwise.
func (s *ContactStore) Update(ctx context.Context, id string, userID string, patch model.ContactPatch) (model.Contact, error) {
	assignments := patch.Assignments()
	columns := make([]string, 0, len(assignments)+1)
	args := make([]any, 0, len(assignments)+3)
	for _, a := range assignments {
		columns = append(columns, a.Column+" = ?")
		args = append(args, a.Value)
	}
	columns = append(columns, "updated_at = ?")
	args = append(args, s.timestamp(), id, userID)

	query := "UPDATE contacts SET " + strings.Join(columns, ", ") + " WHERE id = ? AND user_id = ?"
	result, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return model.Contact{}, errors.Wrap(err, "update contact")
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return model.Contact{}, errors.Wrap(err, "update contact rows affected")
	}
	if rowsAffected == 0 {
		return model.Contact{}, ErrNotFound
	}

	// Return the full contact after the update.
	return s.GetByID(ctx, id, userID)
}

// Delete removes the contact with the id if it belongs to the user. Deleting a contact that does
// not exist, or belongs to someone else, is not an error.
func (s *ContactStore) Delete(ctx context.Context, id string, userID string) error {
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(deleteWhereId), id, userID); err != nil {
		return errors.Wrap(err, "delete contact")
	}
	return nil
}

// ListNear returns the user's contacts within radiusKm great-circle kilometres of the point,
// nearest first. Rows are preselected with a bounding box on the location index and then checked
// with the Haversine distance.
func (s *ContactStore) ListNear(ctx context.Context, userID string, lat, lng, radiusKm float64) ([]model.NearbyContact, error) {
	if !geo.ValidLatitude(lat) || !geo.ValidLongitude(lng) {
		return nil, errors.Wrapf(ErrInvalidArgument, "point %v,%v", lat, lng)
	}
	if math.IsNaN(radiusKm) || math.IsInf(radiusKm, 0) || radiusKm < 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "radius %v", radiusKm)
	}

	box := geo.BoundingBox(lat, lng, radiusKm)
	query := `
	SELECT ` + contactColumns + `
	FROM contacts
	WHERE user_id = ?
		AND latitude BETWEEN ? AND ?`
	args := []any{userID, box.MinLat, box.MaxLat}
	if !box.AllLongitudes {
		query += `
		AND longitude BETWEEN ? AND ?`
		args = append(args, box.MinLng, box.MaxLng)
	}

	var candidates []model.Contact
	if err := s.db.SelectContext(ctx, &candidates, s.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "select contacts near location")
	}

	nearby := []model.NearbyContact{}
	for _, c := range candidates {
		d := geo.DistanceKm(lat, lng, c.Latitude, c.Longitude)
		if d <= radiusKm {
			nearby = append(nearby, model.NearbyContact{Contact: c, DistanceKm: d})
		}
	}
	sort.SliceStable(nearby, func(i, j int) bool {
		return nearby[i].DistanceKm < nearby[j].DistanceKm
	})
	return nearby, nil
}

// rawDB exposes the wrapped handle to the migration code.
func (s *ContactStore) rawDB() *sql.DB {
	return s.db.DB
}
