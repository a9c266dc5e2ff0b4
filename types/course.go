package types

import (
	"strings"
	"time"
)

const CookieName = "ltibridge"

// Course represents a single learning context as defined by LTI.
// It is keyed by the context_id the consumer sends with each launch.
type Course struct {
	ID        int64     `json:"id" meddler:"id,pk"`
	LtiID     string    `json:"ltiID" meddler:"lti_id"`
	Label     string    `json:"label" meddler:"lti_label"`
	Name      string    `json:"name" meddler:"name"`
	CanvasID  int64     `json:"canvasID" meddler:"canvas_id,zeroisnull"`
	CreatedAt time.Time `json:"createdAt" meddler:"created_at,localtime"`
	UpdatedAt time.Time `json:"updatedAt" meddler:"updated_at,localtime"`
}

// Resource represents one placement of the tool in the consumer.
// LTI requires resource_link_id and oauth_consumer_key on every launch,
// so the pair uniquely identifies a placement; context_id is optional,
// which is why the course link can be absent.
type Resource struct {
	ID             int64     `json:"id" meddler:"id,pk"`
	ConsumerKey    string    `json:"-" meddler:"consumer_key"`
	ResourceLinkID string    `json:"resourceLinkID" meddler:"resource_link_id"`
	CourseID       int64     `json:"courseID" meddler:"course_id,zeroisnull"`
	Title          string    `json:"title" meddler:"title,zeroisnull"`
	CreatedAt      time.Time `json:"createdAt" meddler:"created_at,localtime"`
	UpdatedAt      time.Time `json:"updatedAt" meddler:"updated_at,localtime"`
}

// CourseUser records a user's relationship with a course, including the
// roles the consumer reported on the most recent launch.
type CourseUser struct {
	ID        int64     `json:"id" meddler:"id,pk"`
	CourseID  int64     `json:"courseID" meddler:"course_id"`
	UserID    int64     `json:"userID" meddler:"user_id"`
	Roles     string    `json:"roles" meddler:"roles"`
	CreatedAt time.Time `json:"createdAt" meddler:"created_at,localtime"`
	UpdatedAt time.Time `json:"updatedAt" meddler:"updated_at,localtime"`
}

// HasRole returns true if the given LTI roles list contains the named role.
// Roles arrive as a comma-separated list and may use full URN forms,
// e.g. urn:lti:role:ims/lis/Instructor.
func (cu *CourseUser) HasRole(name string) bool {
	for _, role := range strings.Split(cu.Roles, ",") {
		role = strings.TrimSpace(role)
		if i := strings.LastIndex(role, "/"); i >= 0 {
			role = role[i+1:]
		}
		if role == name {
			return true
		}
	}
	return false
}

// IsInstructor returns true if the roles list marks this user as an
// instructor for the course.
func (cu *CourseUser) IsInstructor() bool {
	return cu.HasRole("Instructor")
}
