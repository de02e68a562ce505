package service

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"gitlab.com/dirk.krummacker/location-contacts/internal/auth"
	"gitlab.com/dirk.krummacker/location-contacts/internal/config"
	"gitlab.com/dirk.krummacker/location-contacts/internal/geo"
	"gitlab.com/dirk.krummacker/location-contacts/internal/logger"
	"gitlab.com/dirk.krummacker/location-contacts/internal/metrics"
	"gitlab.com/dirk.krummacker/location-contacts/internal/store"
	"gitlab.com/dirk.krummacker/location-contacts/pkg/model"
	"go.uber.org/zap"
)

// msgCoordinatesRequired is the answer to a create request without a complete location.
const msgCoordinatesRequired = "latitude and longitude are required"

// healthTimeout bounds the database ping behind /healthz.
const healthTimeout = 2 * time.Second

// ContactRepository is the persistence the handlers work against. *store.ContactStore implements
// it.
type ContactRepository interface {
	InitializeSchema(ctx context.Context) error
	Insert(ctx context.Context, userID string, input model.NewContact) (model.Contact, error)
	ListByUser(ctx context.Context, userID string) ([]model.Contact, error)
	GetByID(ctx context.Context, id string, userID string) (model.Contact, error)
	Update(ctx context.Context, id string, userID string, patch model.ContactPatch) (model.Contact, error)
	Delete(ctx context.Context, id string, userID string) error
	ListNear(ctx context.Context, userID string, lat, lng, radiusKm float64) ([]model.NearbyContact, error)
	Ping(ctx context.Context) error
}

// Service holds the dependencies of the JSON API handlers.
type Service struct {
	contacts ContactRepository
	verifier auth.Verifier
	log      *zap.SugaredLogger
}

// New creates the API handlers.
func New(contacts ContactRepository, verifier auth.Verifier, log *zap.SugaredLogger) *Service {
	return &Service{contacts: contacts, verifier: verifier, log: log}
}

// CreateDatabase opens the database handle that lives for the whole process. The driver is
// chosen by the configuration: "mysql" (default) or "pgx".
func CreateDatabase(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	dsn, err := cfg.DataSourceName()
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open(cfg.DriverName(), dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s database", cfg.DriverName())
	}
	return db, nil
}

// SetupHttpRouter initializes the router with recovery, request logging and, if m is not nil,
// metrics middleware. Routes are added by the RegisterRoutes methods.
func SetupHttpRouter(log *zap.SugaredLogger, requestLogging bool, m *metrics.Metrics) *gin.Engine {
	useJSONFieldNames()
	router := gin.New()
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Errorw("panic while handling request", "path", c.Request.URL.Path, "panic", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "internal server error"})
	}))
	if requestLogging {
		router.Use(logger.Middleware(log))
	} else {
		log.Info("Turning off HTTP request logging.")
	}
	if m != nil {
		router.Use(m.Middleware())
	}
	return router
}

// RegisterRoutes adds the JSON API endpoints. Everything below /contacts requires a valid
// identity.
func (s *Service) RegisterRoutes(router gin.IRouter) {
	router.GET("/seed", s.seed)
	router.GET("/healthz", s.health)

	contacts := router.Group("/contacts", auth.Required(s.verifier))
	contacts.GET("", s.findContacts)
	contacts.POST("", s.createContact)
	contacts.GET("/near", s.findContactsNear)
	contacts.GET("/:id", s.findContactByID)
	contacts.PATCH("/:id", s.updateContactByID)
	contacts.PUT("/:id", s.updateContactByID)
	contacts.DELETE("/:id", s.deleteContactByID)
}

var registerFieldNames sync.Once

// useJSONFieldNames makes validation errors name fields the way clients spell them.
func useJSONFieldNames() {
	registerFieldNames.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			v.RegisterTagNameFunc(func(field reflect.StructField) string {
				name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
				if name == "-" {
					return ""
				}
				return name
			})
		}
	})
}

// findContacts responds with all contacts of the caller as JSON, most recently created first.
//
// REST API call:
//
//	> curl http://localhost:8080/contacts --header "Authorization: Bearer $TOKEN"
func (s *Service) findContacts(c *gin.Context) {
	userID, _ := auth.UserID(c)
	contacts, err := s.contacts.ListByUser(c.Request.Context(), userID)
	if err != nil {
		s.respondError(c, "list contacts", userID, err)
		return
	}
	c.IndentedJSON(http.StatusOK, contacts)
}

// createContact inserts the contact specified in the request's JSON and responds with the full
// contact including its generated id and timestamps. Latitude and longitude are mandatory; every
// other field is optional and stored as null when absent or empty.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contacts --request "POST" --include --header "Authorization: Bearer $TOKEN" --header "Content-Type: application/json" --data '{"firstName": "Sarah", "lastName": "Johnson", "latitude": 33.8703, "longitude": -117.9243, "locationName": "Fullerton"}'
func (s *Service) createContact(c *gin.Context) {
	userID, _ := auth.UserID(c)
	var input model.NewContact
	if err := c.ShouldBindJSON(&input); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": bindingMessage(err)})
		return
	}
	if !input.HasCoordinates() {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": msgCoordinatesRequired})
		return
	}
	contact, err := s.contacts.Insert(c.Request.Context(), userID, input)
	if err != nil {
		s.respondError(c, "create contact", userID, err)
		return
	}
	c.IndentedJSON(http.StatusCreated, contact)
}

// findContactsNear responds with the caller's contacts within a radius around a point, nearest
// first, each with its distance in kilometres.
//
// The URL parameters 'lat' and 'lng' are mandatory. The URL parameter 'radius' is the search
// radius in kilometres and defaults to 5.
//
// REST API calls:
//
//	> curl "http://localhost:8080/contacts/near?lat=33.8703&lng=-117.9243" --header "Authorization: Bearer $TOKEN"
//	> curl "http://localhost:8080/contacts/near?lat=33.8703&lng=-117.9243&radius=0.5" --header "Authorization: Bearer $TOKEN"
func (s *Service) findContactsNear(c *gin.Context) {
	userID, _ := auth.UserID(c)
	lat, lng, radius, ok := parseNearParameters(c)
	if !ok {
		return
	}
	contacts, err := s.contacts.ListNear(c.Request.Context(), userID, lat, lng, radius)
	if err != nil {
		s.respondError(c, "list contacts near location", userID, err)
		return
	}
	c.IndentedJSON(http.StatusOK, contacts)
}

// parseNearParameters inspects the URL parameters of a proximity search.
func parseNearParameters(c *gin.Context) (lat float64, lng float64, radius float64, success bool) {
	latParam, lngParam := c.Query("lat"), c.Query("lng")
	if latParam == "" || lngParam == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "lat and lng parameters are required"})
		return 0, 0, 0, false
	}
	lat, err := strconv.ParseFloat(latParam, 64)
	if err != nil || !geo.ValidLatitude(lat) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid lat parameter"})
		return 0, 0, 0, false
	}
	lng, err = strconv.ParseFloat(lngParam, 64)
	if err != nil || !geo.ValidLongitude(lng) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid lng parameter"})
		return 0, 0, 0, false
	}
	radius = store.DefaultRadiusKm
	if radiusParam := c.Query("radius"); radiusParam != "" {
		radius, err = strconv.ParseFloat(radiusParam, 64)
		if err != nil || radius < 0 || math.IsNaN(radius) || math.IsInf(radius, 0) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid radius parameter"})
			return 0, 0, 0, false
		}
	}
	return lat, lng, radius, true
}

// findContactByID locates the caller's contact whose id matches the id parameter of the request
// URL, then returns that contact as a response.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contacts/0b9e3f5e-8c1f-4c8e-9d43-1d2f6b0f6c11 --header "Authorization: Bearer $TOKEN"
func (s *Service) findContactByID(c *gin.Context) {
	userID, _ := auth.UserID(c)
	id, ok := parseID(c)
	if !ok {
		return
	}
	contact, err := s.contacts.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		s.respondError(c, "find contact", userID, err)
		return
	}
	c.IndentedJSON(http.StatusOK, contact)
}

// updateContactByID updates the caller's contact whose id matches the id parameter of the request
// URL, overwrites the values specified in the JSON (and only those), and finally responds with
// the new version of the contact. An empty string clears a value.
//
// Example REST API calls:
//
//	> curl http://localhost:8080/contacts/0b9e3f5e-8c1f-4c8e-9d43-1d2f6b0f6c11 --request "PATCH" --include --header "Authorization: Bearer $TOKEN" --header "Content-Type: application/json" --data '{"phoneNumber": "555-0101"}'
//	> curl http://localhost:8080/contacts/0b9e3f5e-8c1f-4c8e-9d43-1d2f6b0f6c11 --request "PATCH" --include --header "Authorization: Bearer $TOKEN" --header "Content-Type: application/json" --data '{"birthday": "1985-03-15", "notes": ""}'
func (s *Service) updateContactByID(c *gin.Context) {
	userID, _ := auth.UserID(c)
	id, ok := parseID(c)
	if !ok {
		return
	}
	var patch model.ContactPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": bindingMessage(err)})
		return
	}
	contact, err := s.contacts.Update(c.Request.Context(), id, userID, patch)
	if err != nil {
		s.respondError(c, "update contact", userID, err)
		return
	}
	c.IndentedJSON(http.StatusOK, contact)
}

// deleteContactByID deletes the caller's contact whose id matches the id parameter of the request
// URL. Deleting a contact that does not exist succeeds as well.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contacts/0b9e3f5e-8c1f-4c8e-9d43-1d2f6b0f6c11 --request "DELETE" --header "Authorization: Bearer $TOKEN"
func (s *Service) deleteContactByID(c *gin.Context) {
	userID, _ := auth.UserID(c)
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := s.contacts.Delete(c.Request.Context(), id, userID); err != nil {
		s.respondError(c, "delete contact", userID, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// seed creates the contacts table and its indexes if they do not exist yet.
//
// Example REST API call:
//
//	> curl http://localhost:8080/seed
func (s *Service) seed(c *gin.Context) {
	if err := s.contacts.InitializeSchema(c.Request.Context()); err != nil {
		s.respondError(c, "initialize schema", "", err)
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"message": "database initialized"})
}

// health answers 200 while the database responds to a ping.
func (s *Service) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()
	if err := s.contacts.Ping(ctx); err != nil {
		s.log.Warnw("health check failed", "error", err)
		c.IndentedJSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"status": "ok"})
}

// parseID accepts only well-formed contact ids; anything else cannot exist.
func parseID(c *gin.Context) (string, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "invalid id parameter"})
		return "", false
	}
	return id.String(), true
}

// respondError maps an error from the repository onto the response. Unexpected errors are logged
// with their detail and answered with an opaque message.
func (s *Service) respondError(c *gin.Context, operation string, userID string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "contact not found"})
	case errors.Is(err, store.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid parameters"})
	default:
		s.log.Errorw(operation+" failed", "userId", userID, "error", err)
		c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "internal server error"})
	}
}

// bindingMessage turns a JSON binding error into a client-facing message.
func bindingMessage(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return "invalid JSON"
	}
	for _, fe := range validationErrors {
		if fe.Tag() == "required" && (fe.Field() == "latitude" || fe.Field() == "longitude") {
			return msgCoordinatesRequired
		}
	}
	fe := validationErrors[0]
	switch {
	case fe.Field() == "latitude":
		return "latitude must be between -90 and 90"
	case fe.Field() == "longitude":
		return "longitude must be between -180 and 180"
	case fe.Tag() == "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("invalid value for %s", fe.Field())
	}
}
