package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-martini/martini"

	. "github.com/edtools/ltibridge/types"
)

// launchSession runs a signed launch and returns the resulting session
// cookie.
func launchSession(t *testing.T, m *martini.Martini, userID, name, email, roles string) *http.Cookie {
	t.Helper()

	v := launchValues()
	v.Set("user_id", userID)
	v.Set("lis_person_name_full", name)
	v.Set("lis_person_contact_email_primary", email)
	v.Set("roles", roles)
	signValues(v)
	w := postLaunch(m, v)
	if w.Code != http.StatusSeeOther {
		t.Fatalf("launch failed: %d: %s", w.Code, w.Body.String())
	}
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == "ltibridge" {
			return cookie
		}
	}
	t.Fatalf("launch did not set a session cookie")
	return nil
}

func doJSON(t *testing.T, m *martini.Martini, method, path string, cookie *http.Cookie, download interface{}) int {
	t.Helper()

	req := httptest.NewRequest(method, "http://"+testHost+path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	req.Header.Set("Accept", "application/json")
	w := httptest.NewRecorder()
	m.ServeHTTP(w, req)

	if download != nil && w.Code == http.StatusOK {
		if err := json.Unmarshal(w.Body.Bytes(), download); err != nil {
			t.Fatalf("error decoding response from %s: %v", path, err)
		}
	}
	return w.Code
}

func TestGetVersion(t *testing.T) {
	m, _ := testServer(t)

	v := new(Version)
	if code := doJSON(t, m, "GET", "/v2/version", nil, v); code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, code)
	}
	if v.Version != CurrentVersion.Version {
		t.Errorf("expected version %s, got %s", CurrentVersion.Version, v.Version)
	}
}

func TestGetUserMe(t *testing.T) {
	m, _ := testServer(t)
	cookie := launchSession(t, m, "lms-user-1", "Ada Lovelace", "ada@example.com", "Instructor")

	user := new(User)
	if code := doJSON(t, m, "GET", "/v2/users/me", cookie, user); code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, code)
	}
	if user.Name != "Ada Lovelace" || user.Email != "ada@example.com" {
		t.Errorf("unexpected user record: %+v", user)
	}

	if code := doJSON(t, m, "GET", "/v2/users/me", nil, nil); code != http.StatusUnauthorized {
		t.Errorf("expected %d without a session, got %d", http.StatusUnauthorized, code)
	}
}

func TestGetCoursesAndResources(t *testing.T) {
	m, _ := testServer(t)
	cookie := launchSession(t, m, "lms-user-1", "Ada Lovelace", "ada@example.com", "Learner")

	courses := []*Course{}
	if code := doJSON(t, m, "GET", "/v2/courses", cookie, &courses); code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, code)
	}
	if len(courses) != 1 || courses[0].LtiID != "course-abc" || courses[0].Label != "CS-1400" {
		t.Errorf("unexpected course list: %+v", courses)
	}

	filtered := []*Course{}
	if code := doJSON(t, m, "GET", "/v2/courses?label=CS-9999", cookie, &filtered); code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, code)
	}
	if len(filtered) != 0 {
		t.Errorf("expected no courses with label CS-9999, got %+v", filtered)
	}

	resources := []*Resource{}
	if code := doJSON(t, m, "GET", "/v2/resources", cookie, &resources); code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, code)
	}
	if len(resources) != 1 || resources[0].ResourceLinkID != "link-1" {
		t.Errorf("unexpected resource list: %+v", resources)
	}
	if resources[0].CourseID != courses[0].ID {
		t.Errorf("expected resource linked to course %d, got %d", courses[0].ID, resources[0].CourseID)
	}

	if code := doJSON(t, m, "GET", "/v2/courses", nil, nil); code != http.StatusUnauthorized {
		t.Errorf("expected %d without a session, got %d", http.StatusUnauthorized, code)
	}
}

func TestCourseUsersInstructorOnly(t *testing.T) {
	m, _ := testServer(t)
	instructor := launchSession(t, m, "lms-user-1", "Ada Lovelace", "ada@example.com", "urn:lti:role:ims/lis/Instructor")
	student := launchSession(t, m, "lms-user-2", "Grace Hopper", "grace@example.com", "Learner")

	users := []*User{}
	if code := doJSON(t, m, "GET", "/v2/courses/1/users", instructor, &users); code != http.StatusOK {
		t.Fatalf("expected %d for instructor, got %d", http.StatusOK, code)
	}
	if len(users) != 2 {
		t.Errorf("expected 2 course users, got %d", len(users))
	}

	if code := doJSON(t, m, "GET", "/v2/courses/1/users", student, nil); code != http.StatusUnauthorized {
		t.Errorf("expected %d for student, got %d", http.StatusUnauthorized, code)
	}

	if code := doJSON(t, m, "GET", "/v2/users", student, nil); code != http.StatusUnauthorized {
		t.Errorf("expected %d for student listing users, got %d", http.StatusUnauthorized, code)
	}
}

func TestDeleteCourseAdministratorOnly(t *testing.T) {
	m, db := testServer(t)
	Config.AdminEmails = []string{"ada@example.com"}
	admin := launchSession(t, m, "lms-user-1", "Ada Lovelace", "ada@example.com", "Learner")
	student := launchSession(t, m, "lms-user-2", "Grace Hopper", "grace@example.com", "Learner")

	if code := doJSON(t, m, "DELETE", "/v2/courses/1", student, nil); code != http.StatusUnauthorized {
		t.Errorf("expected %d for non-administrator, got %d", http.StatusUnauthorized, code)
	}
	if n := countRows(t, db, "courses"); n != 1 {
		t.Fatalf("course disappeared after a rejected delete")
	}

	if code := doJSON(t, m, "DELETE", "/v2/courses/1", admin, nil); code != http.StatusOK {
		t.Errorf("expected %d for administrator, got %d", http.StatusOK, code)
	}
	if n := countRows(t, db, "courses"); n != 0 {
		t.Errorf("expected the course to be deleted, found %d", n)
	}
	if n := countRows(t, db, "course_users"); n != 0 {
		t.Errorf("expected course user links to be deleted with the course, found %d", n)
	}

	if code := doJSON(t, m, "GET", "/v2/courses/1", admin, nil); code != http.StatusNotFound {
		t.Errorf("expected %d for a deleted course, got %d", http.StatusNotFound, code)
	}
}

func TestGetUserNotFound(t *testing.T) {
	m, _ := testServer(t)
	cookie := launchSession(t, m, "lms-user-1", "Ada Lovelace", "ada@example.com", "Instructor")

	if code := doJSON(t, m, "GET", "/v2/users/99", cookie, nil); code != http.StatusNotFound {
		t.Errorf("expected %d, got %d", http.StatusNotFound, code)
	}
	if code := doJSON(t, m, "GET", "/v2/users/zero", cookie, nil); code != http.StatusBadRequest {
		t.Errorf("expected %d for a malformed ID, got %d", http.StatusBadRequest, code)
	}
}
