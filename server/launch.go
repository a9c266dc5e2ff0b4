package main

import (
	"database/sql"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/russross/meddler"

	. "github.com/edtools/ltibridge/types"
)

// Model initialization levels for the initializeModels config setting.
// Each level includes everything below it; the launching user is recorded
// at every level because sessions are keyed by the user row.
const (
	InitializeNone                   = "none"
	InitializeResourceOnly           = "resource_only"
	InitializeResourceAndCourse      = "resource_and_course"
	InitializeResourceAndCourseUsers = "resource_and_course_users"
)

func modelLevel(name string) (int, error) {
	switch name {
	case InitializeNone:
		return 0, nil
	case InitializeResourceOnly:
		return 1, nil
	case InitializeResourceAndCourse:
		return 2, nil
	case InitializeResourceAndCourseUsers:
		return 3, nil
	}
	return 0, fmt.Errorf("unknown initializeModels level %q", name)
}

// LaunchResult carries the records a launch initialized. Fields below the
// configured level are nil.
type LaunchResult struct {
	User       *User
	Resource   *Resource
	Course     *Course
	CourseUser *CourseUser
}

// LaunchHooks is the customization point for the launch endpoint.
// The four hooks run in order on every launch POST; an error from any of
// them stops the sequence. Embed DefaultLaunch to override only some of
// them.
type LaunchHooks interface {
	// BeforePost runs before any records are touched.
	BeforePost(r *http.Request, form *LTIRequest) error

	// ProcessPost initializes the database records for the launch.
	ProcessPost(tx *sql.Tx, now time.Time, form *LTIRequest) (*LaunchResult, error)

	// AfterPost runs once the records are set up.
	AfterPost(w http.ResponseWriter, form *LTIRequest, result *LaunchResult) error

	// Redirect returns the URL the browser is sent to after the launch.
	Redirect(r *http.Request, result *LaunchResult) (string, error)
}

// launchHooks is consulted on every launch request.
// Replace it before starting the server to customize launch behavior.
var launchHooks LaunchHooks = DefaultLaunch{}

// DefaultLaunch is the standard launch behavior: validate the launch
// fields, initialize records per the configured level, store the user and
// course in the session cookie, and redirect to the configured URL.
type DefaultLaunch struct{}

func (DefaultLaunch) BeforePost(r *http.Request, form *LTIRequest) error {
	if form.LTIMessageType != "basic-lti-launch-request" {
		return fmt.Errorf("unexpected lti_message_type %q", form.LTIMessageType)
	}
	if form.ResourceLinkID == "" {
		return fmt.Errorf("missing required field resource_link_id")
	}
	if form.UserID == "" {
		return fmt.Errorf("missing required field user_id")
	}
	return nil
}

func (DefaultLaunch) ProcessPost(tx *sql.Tx, now time.Time, form *LTIRequest) (*LaunchResult, error) {
	return initializeModels(tx, now, form)
}

func (DefaultLaunch) AfterPost(w http.ResponseWriter, form *LTIRequest, result *LaunchResult) error {
	session := NewSession(result.User.ID)
	if result.Course != nil {
		session.CourseID = result.Course.ID
	}
	if _, err := session.Save(w); err != nil {
		return err
	}
	return nil
}

func (DefaultLaunch) Redirect(r *http.Request, result *LaunchResult) (string, error) {
	target := Config.LaunchRedirectURL
	if strings.Contains(target, ":course_id") {
		if result.Course == nil {
			return "", fmt.Errorf("launchRedirectURL expects a course, but initializeModels=%s did not create one", Config.InitializeModels)
		}
		target = strings.ReplaceAll(target, ":course_id", strconv.FormatInt(result.Course.ID, 10))
	}
	return target, nil
}

// initializeModels looks up or creates the records for a launch according
// to the configured initializeModels level. Records are created on the
// first launch and refreshed from the launch data on every later one.
func initializeModels(tx *sql.Tx, now time.Time, form *LTIRequest) (*LaunchResult, error) {
	level, err := modelLevel(Config.InitializeModels)
	if err != nil {
		return nil, err
	}

	result := new(LaunchResult)

	user, err := upsertUser(tx, now, form)
	if err != nil {
		return nil, err
	}
	result.User = user

	if level < 1 {
		return result, nil
	}

	// look up the placement, uniquely identified by the combination of
	// oauth_consumer_key and resource_link_id (both required attributes
	// of a launch; context_id is not)
	resource := new(Resource)
	err = meddler.QueryRow(tx, resource, `SELECT * FROM resources WHERE consumer_key = ? AND resource_link_id = ?`,
		form.OAuthConsumerKey, form.ResourceLinkID)
	if err == sql.ErrNoRows {
		resource = &Resource{
			ConsumerKey:    form.OAuthConsumerKey,
			ResourceLinkID: form.ResourceLinkID,
			CreatedAt:      now,
		}
	} else if err != nil {
		return nil, err
	}
	if form.ResourceLinkTitle != "" {
		resource.Title = form.ResourceLinkTitle
	}

	if level >= 2 && form.ContextID != "" {
		course, err := upsertCourse(tx, now, form)
		if err != nil {
			return nil, err
		}
		result.Course = course
		resource.CourseID = course.ID
	}

	resource.UpdatedAt = now
	if err := meddler.Save(tx, "resources", resource); err != nil {
		return nil, err
	}
	result.Resource = resource

	if level >= 3 && result.Course != nil {
		link, err := upsertCourseUser(tx, now, result.Course, user, form.Roles)
		if err != nil {
			return nil, err
		}
		result.CourseUser = link
	}

	return result, nil
}

func upsertUser(tx *sql.Tx, now time.Time, form *LTIRequest) (*User, error) {
	user := new(User)
	err := meddler.QueryRow(tx, user, `SELECT * FROM users WHERE lti_id = ? AND consumer_key = ?`,
		form.UserID, form.OAuthConsumerKey)
	if err == sql.ErrNoRows {
		user = &User{
			LtiID:       form.UserID,
			ConsumerKey: form.OAuthConsumerKey,
			CreatedAt:   now,
		}
	} else if err != nil {
		return nil, err
	}

	// refresh the profile fields from the launch data
	user.Name = form.PersonName
	user.Email = form.PersonEmail
	user.ImageURL = form.UserImageURL
	user.CanvasLogin = form.CanvasUserLogin
	user.CanvasID = form.CanvasUserID
	user.UpdatedAt = now
	user.LastLaunchedAt = now

	if err := meddler.Save(tx, "users", user); err != nil {
		return nil, err
	}
	return user, nil
}

func upsertCourse(tx *sql.Tx, now time.Time, form *LTIRequest) (*Course, error) {
	course := new(Course)
	err := meddler.QueryRow(tx, course, `SELECT * FROM courses WHERE lti_id = ?`, form.ContextID)
	if err == sql.ErrNoRows {
		course = &Course{
			LtiID:     form.ContextID,
			CreatedAt: now,
		}
	} else if err != nil {
		return nil, err
	}

	course.Label = form.ContextLabel
	course.Name = form.ContextTitle
	course.CanvasID = form.CanvasCourseID
	course.UpdatedAt = now

	if err := meddler.Save(tx, "courses", course); err != nil {
		return nil, err
	}
	return course, nil
}

func upsertCourseUser(tx *sql.Tx, now time.Time, course *Course, user *User, roles string) (*CourseUser, error) {
	link := new(CourseUser)
	err := meddler.QueryRow(tx, link, `SELECT * FROM course_users WHERE course_id = ? AND user_id = ?`,
		course.ID, user.ID)
	if err == sql.ErrNoRows {
		link = &CourseUser{
			CourseID:  course.ID,
			UserID:    user.ID,
			CreatedAt: now,
		}
	} else if err != nil {
		return nil, err
	}

	// the roles of the current launch replace whatever was stored before
	link.Roles = roles
	link.UpdatedAt = now

	if err := meddler.Save(tx, "course_users", link); err != nil {
		return nil, err
	}
	return link, nil
}
