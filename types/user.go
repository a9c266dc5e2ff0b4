package types

import (
	"time"
)

// User represents a single user as defined by LTI.
// The consumer-supplied user_id is only unique per consumer key,
// so the pair identifies the user.
type User struct {
	ID             int64     `json:"id" meddler:"id,pk"`
	LtiID          string    `json:"ltiID" meddler:"lti_id"`
	ConsumerKey    string    `json:"-" meddler:"consumer_key"`
	Name           string    `json:"name" meddler:"name"`
	Email          string    `json:"email" meddler:"email"`
	ImageURL       string    `json:"imageURL" meddler:"lti_image_url,zeroisnull"`
	CanvasLogin    string    `json:"canvasLogin" meddler:"canvas_login,zeroisnull"`
	CanvasID       int64     `json:"canvasID" meddler:"canvas_id,zeroisnull"`
	CreatedAt      time.Time `json:"createdAt" meddler:"created_at,localtime"`
	UpdatedAt      time.Time `json:"updatedAt" meddler:"updated_at,localtime"`
	LastLaunchedAt time.Time `json:"lastLaunchedAt" meddler:"last_launched_at,localtime"`
}
