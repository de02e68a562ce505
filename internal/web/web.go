// Package web serves the browser pages: the landing page, the contact list and the form that
// creates a contact at a place picked on a map.
package web

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"gitlab.com/dirk.krummacker/location-contacts/internal/auth"
	"gitlab.com/dirk.krummacker/location-contacts/internal/geo"
	"gitlab.com/dirk.krummacker/location-contacts/internal/geocode"
	"gitlab.com/dirk.krummacker/location-contacts/pkg/model"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templates embed.FS

// msgSaveFailed is shown above the form when a contact could not be saved.
const msgSaveFailed = "Failed to save contact. Please try again."

// addedLayout formats the creation date on contact cards.
const addedLayout = "Jan 2, 2006"

// ContactRepository is the part of the store the pages need.
type ContactRepository interface {
	Insert(ctx context.Context, userID string, input model.NewContact) (model.Contact, error)
	ListByUser(ctx context.Context, userID string) ([]model.Contact, error)
}

// Options configures the pages.
type Options struct {
	// SignInURL is the identity provider's sign-in page, linked from the landing page.
	SignInURL string
	// DefaultLatitude and DefaultLongitude are where the form starts before the browser reports
	// its position.
	DefaultLatitude  float64
	DefaultLongitude float64
}

// Pages renders the HTML pages.
type Pages struct {
	contacts ContactRepository
	geocoder geocode.Geocoder
	log      *zap.SugaredLogger
	options  Options
}

// New creates the page handlers.
func New(contacts ContactRepository, geocoder geocode.Geocoder, log *zap.SugaredLogger, options Options) *Pages {
	return &Pages{contacts: contacts, geocoder: geocoder, log: log, options: options}
}

// ParseTemplates parses the embedded page templates.
func ParseTemplates() (*template.Template, error) {
	return template.ParseFS(templates, "templates/*.html")
}

// RegisterRoutes installs the page templates on the engine and adds the page routes. Pages look
// at the caller's identity but do not require one: anonymous visitors get the landing page.
func (p *Pages) RegisterRoutes(router *gin.Engine, verifier auth.Verifier) error {
	tmpl, err := ParseTemplates()
	if err != nil {
		return err
	}
	router.SetHTMLTemplate(tmpl)

	pages := router.Group("", auth.Optional(verifier))
	pages.GET("/", p.home)
	pages.GET("/contacts/new", p.newContactForm)
	pages.POST("/contacts/new", p.submitContactForm)

	router.GET("/geocode", auth.Required(verifier), p.geocode)
	return nil
}

// contactCard is one entry of the contact list.
type contactCard struct {
	ID          string
	DisplayName string
	Company     string
	JobTitle    string
	Email       string
	Phone       string
	Location    string
	Added       string
}

func newContactCard(c *model.Contact) contactCard {
	return contactCard{
		ID:          c.Id,
		DisplayName: c.DisplayName(),
		Company:     value(c.Company),
		JobTitle:    value(c.JobTitle),
		Email:       value(c.Email),
		Phone:       value(c.PhoneNumber),
		Location:    c.LocationLabel(),
		Added:       c.CreatedAt.Format(addedLayout),
	}
}

func value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// home shows the landing page to anonymous visitors and the contact list to signed-in users.
func (p *Pages) home(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.HTML(http.StatusOK, "landing.html", gin.H{"SignInURL": p.options.SignInURL})
		return
	}

	contacts, err := p.contacts.ListByUser(c.Request.Context(), userID)
	if err != nil {
		p.log.Errorw("list contacts failed", "userId", userID, "error", err)
		c.HTML(http.StatusInternalServerError, "list.html", gin.H{"Error": "Could not load your contacts."})
		return
	}
	cards := make([]contactCard, 0, len(contacts))
	for i := range contacts {
		cards = append(cards, newContactCard(&contacts[i]))
	}
	c.HTML(http.StatusOK, "list.html", gin.H{"Contacts": cards})
}

// contactForm holds the submitted form values as typed, so that the form can be shown again
// unchanged.
type contactForm struct {
	Action         string `form:"action"`
	SearchQuery    string `form:"searchQuery"`
	FirstName      string `form:"firstName"`
	LastName       string `form:"lastName"`
	Email          string `form:"email"`
	PhoneNumber    string `form:"phoneNumber"`
	PhoneNumberAlt string `form:"phoneNumberAlt"`
	Company        string `form:"company"`
	JobTitle       string `form:"jobTitle"`
	Address        string `form:"address"`
	PetName        string `form:"petName"`
	PetType        string `form:"petType"`
	SpouseName     string `form:"spouseName"`
	ChildrenNames  string `form:"childrenNames"`
	Birthday       string `form:"birthday"`
	Anniversary    string `form:"anniversary"`
	Notes          string `form:"notes"`
	Latitude       string `form:"latitude"`
	Longitude      string `form:"longitude"`
}

// formView is the data of the form template.
type formView struct {
	Form          contactForm
	Latitude      float64
	Longitude     float64
	LocateBrowser bool
	Error         string
}

// newContactForm shows an empty form positioned at the default point. The page script moves it
// to the browser's position when the user allows that.
func (p *Pages) newContactForm(c *gin.Context) {
	if _, ok := auth.UserID(c); !ok {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	c.HTML(http.StatusOK, "form.html", formView{
		Latitude:      p.options.DefaultLatitude,
		Longitude:     p.options.DefaultLongitude,
		LocateBrowser: true,
	})
}

// submitContactForm handles both buttons of the form: "search" moves the point to the first
// geocoding result for the query, "save" creates the contact.
func (p *Pages) submitContactForm(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	var form contactForm
	if err := c.ShouldBind(&form); err != nil {
		c.HTML(http.StatusBadRequest, "form.html", p.viewOf(form, msgSaveFailed))
		return
	}

	if form.Action == "search" {
		p.search(c, form)
		return
	}

	input, ok := form.newContact()
	if ok && binding.Validator.ValidateStruct(&input) != nil {
		ok = false
	}
	if !ok {
		c.HTML(http.StatusBadRequest, "form.html", p.viewOf(form, msgSaveFailed))
		return
	}
	if _, err := p.contacts.Insert(c.Request.Context(), userID, input); err != nil {
		p.log.Errorw("create contact failed", "userId", userID, "error", err)
		c.HTML(http.StatusInternalServerError, "form.html", p.viewOf(form, msgSaveFailed))
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// search re-renders the form at the place found for the query. Without a result, or when the
// geocoder fails, the point stays where it was.
func (p *Pages) search(c *gin.Context, form contactForm) {
	result, found, err := p.geocoder.Lookup(c.Request.Context(), form.SearchQuery)
	if err != nil {
		p.log.Warnw("geocoding failed", "query", form.SearchQuery, "error", err)
	}
	if found {
		form.Latitude = strconv.FormatFloat(result.Latitude, 'f', -1, 64)
		form.Longitude = strconv.FormatFloat(result.Longitude, 'f', -1, 64)
	}
	c.HTML(http.StatusOK, "form.html", p.viewOf(form, ""))
}

// viewOf prepares the form for rendering. Coordinates that do not parse fall back to the default
// point.
func (p *Pages) viewOf(form contactForm, errorMessage string) formView {
	view := formView{Form: form, Error: errorMessage}
	lat, lng, ok := form.coordinates()
	if !ok {
		lat, lng = p.options.DefaultLatitude, p.options.DefaultLongitude
	}
	view.Latitude, view.Longitude = lat, lng
	return view
}

func (f *contactForm) coordinates() (float64, float64, bool) {
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(f.Latitude), 64)
	lng, errLng := strconv.ParseFloat(strings.TrimSpace(f.Longitude), 64)
	if errLat != nil || errLng != nil || !geo.ValidLatitude(lat) || !geo.ValidLongitude(lng) {
		return 0, 0, false
	}
	return lat, lng, true
}

// newContact packages the form for the store. The search query doubles as the location name.
// Blank fields stay absent.
func (f *contactForm) newContact() (model.NewContact, bool) {
	lat, lng, ok := f.coordinates()
	if !ok {
		return model.NewContact{}, false
	}
	birthday, ok := optionalDate(f.Birthday)
	if !ok {
		return model.NewContact{}, false
	}
	anniversary, ok := optionalDate(f.Anniversary)
	if !ok {
		return model.NewContact{}, false
	}
	input := model.NewContact{
		FirstName:      optional(f.FirstName),
		LastName:       optional(f.LastName),
		Email:          optional(f.Email),
		PhoneNumber:    optional(f.PhoneNumber),
		PhoneNumberAlt: optional(f.PhoneNumberAlt),
		Company:        optional(f.Company),
		JobTitle:       optional(f.JobTitle),
		Address:        optional(f.Address),
		PetName:        optional(f.PetName),
		PetType:        optional(f.PetType),
		SpouseName:     optional(f.SpouseName),
		ChildrenNames:  optional(f.ChildrenNames),
		Birthday:       birthday,
		Anniversary:    anniversary,
		Notes:          optional(f.Notes),
		Latitude:       &lat,
		Longitude:      &lng,
		LocationName:   optional(f.SearchQuery),
	}
	return input, true
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func optionalDate(s string) (*model.Date, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, true
	}
	d, err := model.ParseDate(s)
	if err != nil {
		return nil, false
	}
	return &d, true
}

// geocode answers the page script's in-place search.
func (p *Pages) geocode(c *gin.Context) {
	query := c.Query("q")
	result, found, err := p.geocoder.Lookup(c.Request.Context(), query)
	if err != nil {
		p.log.Warnw("geocoding failed", "query", query, "error", err)
	}
	if !found {
		c.JSON(http.StatusOK, gin.H{"found": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"found":       true,
		"latitude":    result.Latitude,
		"longitude":   result.Longitude,
		"displayName": result.DisplayName,
	})
}
