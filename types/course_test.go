package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasRole(t *testing.T) {
	cases := []struct {
		roles string
		name  string
		want  bool
	}{
		{"Instructor", "Instructor", true},
		{"Learner", "Instructor", false},
		{"Learner,Instructor", "Instructor", true},
		{"Learner, Instructor", "Instructor", true},
		{"urn:lti:role:ims/lis/Instructor", "Instructor", true},
		{"urn:lti:role:ims/lis/Learner,urn:lti:instrole:ims/lis/Administrator", "Administrator", true},
		{"urn:lti:role:ims/lis/Learner", "Instructor", false},
		{"", "Instructor", false},
		{"TeachingAssistant", "Instructor", false},
	}
	for _, c := range cases {
		link := &CourseUser{Roles: c.roles}
		assert.Equal(t, c.want, link.HasRole(c.name), "HasRole(%q) with roles %q", c.name, c.roles)
	}
}

func TestIsInstructor(t *testing.T) {
	assert.True(t, (&CourseUser{Roles: "Instructor"}).IsInstructor())
	assert.True(t, (&CourseUser{Roles: "urn:lti:role:ims/lis/Instructor,Learner"}).IsInstructor())
	assert.False(t, (&CourseUser{Roles: "Learner"}).IsInstructor())
	assert.False(t, (&CourseUser{}).IsInstructor())
}

func TestConsumerKeyNotExported(t *testing.T) {
	resource := &Resource{ID: 1, ConsumerKey: "secret-key", ResourceLinkID: "link-1"}
	raw, err := json.Marshal(resource)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret-key")

	user := &User{ID: 1, LtiID: "lms-user-1", ConsumerKey: "secret-key"}
	raw, err = json.Marshal(user)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret-key")
}
