package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/dirk.krummacker/location-contacts/internal/auth"
	"gitlab.com/dirk.krummacker/location-contacts/internal/geocode"
	"gitlab.com/dirk.krummacker/location-contacts/pkg/model"
	"go.uber.org/zap"
)

var secret = []byte("web-test-secret")

// fakeRepository keeps contacts in memory.
type fakeRepository struct {
	contacts  []model.Contact
	inserted  []model.NewContact
	insertErr error
	listErr   error
}

func (f *fakeRepository) Insert(_ context.Context, userID string, input model.NewContact) (model.Contact, error) {
	if f.insertErr != nil {
		return model.Contact{}, f.insertErr
	}
	f.inserted = append(f.inserted, input)
	return model.Contact{Id: "new", UserId: userID, Latitude: *input.Latitude, Longitude: *input.Longitude}, nil
}

func (f *fakeRepository) ListByUser(_ context.Context, userID string) ([]model.Contact, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var result []model.Contact
	for _, c := range f.contacts {
		if c.UserId == userID {
			result = append(result, c)
		}
	}
	return result, nil
}

// fakeGeocoder answers from a fixed table.
type fakeGeocoder struct {
	places  map[string]geocode.Result
	err     error
	queries []string
}

func (f *fakeGeocoder) Lookup(_ context.Context, query string) (geocode.Result, bool, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return geocode.Result{}, false, f.err
	}
	result, found := f.places[query]
	return result, found, nil
}

func ptr[T any](v T) *T {
	return &v
}

func sessionToken(t *testing.T, subject string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(secret)
	require.NoError(t, err)
	return signed
}

func newRouter(t *testing.T, repository *fakeRepository, geocoder *fakeGeocoder) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	pages := New(repository, geocoder, zap.NewNop().Sugar(), Options{
		SignInURL:        "https://accounts.example.com/sign-in",
		DefaultLatitude:  33.8703,
		DefaultLongitude: -117.9243,
	})
	require.NoError(t, pages.RegisterRoutes(router, auth.NewHMACVerifier(secret, "")))
	return router
}

// serve executes a request; a non-empty user signs it with a session cookie.
func serve(t *testing.T, router *gin.Engine, user string, method string, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var request *http.Request
	if form != nil {
		request = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		request = httptest.NewRequest(method, target, nil)
	}
	if user != "" {
		request.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: sessionToken(t, user)})
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	return recorder
}

// TestLanding expects anonymous visitors to see the landing page with the sign-in link.
func TestLanding(t *testing.T) {
	router := newRouter(t, &fakeRepository{}, &fakeGeocoder{})
	recorder := serve(t, router, "", http.MethodGet, "/", nil)

	assert.Equal(t, http.StatusOK, recorder.Code)
	body := recorder.Body.String()
	assert.Contains(t, body, "Location Contacts")
	assert.Contains(t, body, "Remember where you met everyone")
	assert.Contains(t, body, `href="https://accounts.example.com/sign-in"`)
	assert.NotContains(t, body, "My Contacts")
}

// TestListEmpty expects the empty state for a user without contacts.
func TestListEmpty(t *testing.T) {
	router := newRouter(t, &fakeRepository{}, &fakeGeocoder{})
	recorder := serve(t, router, "user_a", http.MethodGet, "/", nil)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "No contacts yet")
}

// TestListCards expects one card per contact of the caller, with display name and location label
// fallbacks, and nothing of other users.
func TestListCards(t *testing.T) {
	repository := &fakeRepository{contacts: []model.Contact{
		{
			Id: "c1", UserId: "user_a", FirstName: ptr("Sarah"), LastName: ptr("Johnson"),
			Company: ptr("Tech Corp"), JobTitle: ptr("Software Engineer"), Email: ptr("sarah.j@example.com"),
			Latitude: 33.8823, Longitude: -117.8851, LocationName: ptr("CSUF Campus"),
			CreatedAt: time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			Id: "c2", UserId: "user_a", PhoneNumber: ptr("555-0102"),
			Latitude: 33.87034567, Longitude: -117.92431234,
			CreatedAt: time.Date(2025, time.February, 3, 8, 0, 0, 0, time.UTC),
		},
		{Id: "c3", UserId: "user_b", FirstName: ptr("Mallory"), Latitude: 1, Longitude: 2},
	}}
	router := newRouter(t, repository, &fakeGeocoder{})
	recorder := serve(t, router, "user_a", http.MethodGet, "/", nil)

	assert.Equal(t, http.StatusOK, recorder.Code)
	body := recorder.Body.String()
	assert.Contains(t, body, "Sarah Johnson")
	assert.Contains(t, body, "Tech Corp • Software Engineer")
	assert.Contains(t, body, "CSUF Campus")
	assert.Contains(t, body, "Added Mar 1, 2025")
	assert.Contains(t, body, "<h3>555-0102</h3>")
	assert.Contains(t, body, "33.8703, -117.9243")
	assert.NotContains(t, body, "Mallory")
}

// TestListFailure expects an error page, not a crash, when the contacts cannot be loaded.
func TestListFailure(t *testing.T) {
	router := newRouter(t, &fakeRepository{listErr: errors.New("db down")}, &fakeGeocoder{})
	recorder := serve(t, router, "user_a", http.MethodGet, "/", nil)

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "Could not load your contacts.")
}

// TestNewForm expects the form at the default point with the geolocation request enabled.
func TestNewForm(t *testing.T) {
	router := newRouter(t, &fakeRepository{}, &fakeGeocoder{})
	recorder := serve(t, router, "user_a", http.MethodGet, "/contacts/new", nil)

	assert.Equal(t, http.StatusOK, recorder.Code)
	body := recorder.Body.String()
	assert.Contains(t, body, `name="latitude" id="latitude" value="33.8703"`)
	assert.Contains(t, body, `name="longitude" id="longitude" value="-117.9243"`)
	assert.Contains(t, body, "navigator.geolocation")
}

// TestNewFormAnonymous expects anonymous visitors to be sent to the landing page.
func TestNewFormAnonymous(t *testing.T) {
	repository := &fakeRepository{}
	router := newRouter(t, repository, &fakeGeocoder{})

	recorder := serve(t, router, "", http.MethodGet, "/contacts/new", nil)
	assert.Equal(t, http.StatusSeeOther, recorder.Code)
	assert.Equal(t, "/", recorder.Header().Get("Location"))

	recorder = serve(t, router, "", http.MethodPost, "/contacts/new", url.Values{"latitude": {"1"}, "longitude": {"2"}})
	assert.Equal(t, http.StatusSeeOther, recorder.Code)
	assert.Empty(t, repository.inserted)
}

// TestSearchFound expects the point to move to the first result and the entered values to stay.
func TestSearchFound(t *testing.T) {
	geocoder := &fakeGeocoder{places: map[string]geocode.Result{
		"Fullerton Arboretum": {Latitude: 33.886, Longitude: -117.8846},
	}}
	router := newRouter(t, &fakeRepository{}, geocoder)
	recorder := serve(t, router, "user_a", http.MethodPost, "/contacts/new", url.Values{
		"action":      {"search"},
		"searchQuery": {"Fullerton Arboretum"},
		"firstName":   {"Lisa"},
		"latitude":    {"33.8703"},
		"longitude":   {"-117.9243"},
	})

	assert.Equal(t, http.StatusOK, recorder.Code)
	body := recorder.Body.String()
	assert.Contains(t, body, `value="33.886"`)
	assert.Contains(t, body, `value="-117.8846"`)
	assert.Contains(t, body, `value="Lisa"`)
	assert.Contains(t, body, `value="Fullerton Arboretum"`)
	assert.NotContains(t, body, "navigator.geolocation.getCurrentPosition")
	assert.Equal(t, []string{"Fullerton Arboretum"}, geocoder.queries)
}

// TestSearchNotFoundOrFailing expects the point to stay where it was and no error to be shown.
func TestSearchNotFoundOrFailing(t *testing.T) {
	for _, geocoder := range []*fakeGeocoder{{}, {err: errors.New("circuit breaker is open")}} {
		router := newRouter(t, &fakeRepository{}, geocoder)
		recorder := serve(t, router, "user_a", http.MethodPost, "/contacts/new", url.Values{
			"action":      {"search"},
			"searchQuery": {"xyzzy"},
			"latitude":    {"40.7128"},
			"longitude":   {"-74.006"},
		})

		assert.Equal(t, http.StatusOK, recorder.Code)
		body := recorder.Body.String()
		assert.Contains(t, body, `value="40.7128"`)
		assert.Contains(t, body, `value="-74.006"`)
		assert.NotContains(t, body, msgSaveFailed)
	}
}

// TestSave submits the form. It expects the contact to be created with the search query as the
// location name, blank fields absent, and a redirect to the list.
func TestSave(t *testing.T) {
	repository := &fakeRepository{}
	router := newRouter(t, repository, &fakeGeocoder{})
	recorder := serve(t, router, "user_a", http.MethodPost, "/contacts/new", url.Values{
		"action":      {"save"},
		"searchQuery": {"Downtown Fullerton"},
		"firstName":   {"Mike"},
		"lastName":    {""},
		"petName":     {"Bella"},
		"petType":     {"Cat"},
		"birthday":    {"1990-07-22"},
		"anniversary": {""},
		"latitude":    {"33.8703"},
		"longitude":   {"-117.9243"},
	})

	assert.Equal(t, http.StatusSeeOther, recorder.Code)
	assert.Equal(t, "/", recorder.Header().Get("Location"))
	require.Len(t, repository.inserted, 1)
	input := repository.inserted[0]
	assert.Equal(t, "Mike", *input.FirstName)
	assert.Nil(t, input.LastName)
	assert.Equal(t, "Cat", *input.PetType)
	assert.Equal(t, "1990-07-22", input.Birthday.String())
	assert.Nil(t, input.Anniversary)
	assert.Equal(t, "Downtown Fullerton", *input.LocationName)
	assert.Equal(t, 33.8703, *input.Latitude)
	assert.Equal(t, -117.9243, *input.Longitude)
}

// TestSaveFailures expects the form to come back with the retry message and all entered values
// for invalid input and for a failing store.
func TestSaveFailures(t *testing.T) {
	valid := url.Values{"firstName": {"Emma"}, "latitude": {"33.87"}, "longitude": {"-117.92"}}
	cases := map[string]struct {
		repository *fakeRepository
		change     func(url.Values)
		status     int
	}{
		"store fails":       {&fakeRepository{insertErr: errors.New("db down")}, func(url.Values) {}, http.StatusInternalServerError},
		"bad birthday":      {&fakeRepository{}, func(v url.Values) { v.Set("birthday", "22.07.1990") }, http.StatusBadRequest},
		"no latitude":       {&fakeRepository{}, func(v url.Values) { v.Del("latitude") }, http.StatusBadRequest},
		"latitude too big":  {&fakeRepository{}, func(v url.Values) { v.Set("latitude", "95") }, http.StatusBadRequest},
		"phone too long":    {&fakeRepository{}, func(v url.Values) { v.Set("phoneNumber", strings.Repeat("5", 51)) }, http.StatusBadRequest},
	}
	for name, tc := range cases {
		form := url.Values{}
		for k, v := range valid {
			form[k] = append([]string(nil), v...)
		}
		tc.change(form)
		router := newRouter(t, tc.repository, &fakeGeocoder{})
		recorder := serve(t, router, "user_a", http.MethodPost, "/contacts/new", form)

		assert.Equal(t, tc.status, recorder.Code, name)
		assert.Contains(t, recorder.Body.String(), msgSaveFailed, name)
		assert.Contains(t, recorder.Body.String(), `value="Emma"`, name)
		assert.Empty(t, tc.repository.inserted, name)
	}
}

// TestGeocodeEndpoint expects JSON for found and missing places and 401 without a session.
func TestGeocodeEndpoint(t *testing.T) {
	geocoder := &fakeGeocoder{places: map[string]geocode.Result{
		"Hillcrest Park": {Latitude: 33.8789, Longitude: -117.9156, DisplayName: "Hillcrest Park, Fullerton"},
	}}
	router := newRouter(t, &fakeRepository{}, geocoder)

	recorder := serve(t, router, "user_a", http.MethodGet, "/geocode?q=Hillcrest+Park", nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"found": true, "latitude": 33.8789, "longitude": -117.9156, "displayName": "Hillcrest Park, Fullerton"}`, recorder.Body.String())

	recorder = serve(t, router, "user_a", http.MethodGet, "/geocode?q=nowhere", nil)
	assert.JSONEq(t, `{"found": false}`, recorder.Body.String())

	recorder = serve(t, router, "", http.MethodGet, "/geocode?q=Hillcrest+Park", nil)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

// TestTemplatesParse expects every page template to be present.
func TestTemplatesParse(t *testing.T) {
	tmpl, err := ParseTemplates()
	require.NoError(t, err)
	for _, name := range []string{"landing.html", "list.html", "form.html", "head", "foot"} {
		assert.NotNil(t, tmpl.Lookup(name), name)
	}
}
