package main

import (
	"database/sql"
	"net/http"

	"github.com/go-martini/martini"
	"github.com/martini-contrib/render"
	"github.com/russross/meddler"

	. "github.com/edtools/ltibridge/types"
)

// GetCourses handles /v2/courses requests,
// returning a list of all courses.
//
// If parameter lti_id=<...> present, results will be filtered by matching lti_id field.
// If parameter label=<...> present, results will be filtered by matching lti_label field.
// If parameter name=<...> present, results will be filtered by case-insensitive substring matching on name field.
func GetCourses(w http.ResponseWriter, r *http.Request, tx *sql.Tx, render render.Render) {
	where := ""
	args := []interface{}{}

	if ltiID := r.FormValue("lti_id"); ltiID != "" {
		where, args = addWhereEq(where, args, "lti_id", ltiID)
	}

	if label := r.FormValue("label"); label != "" {
		where, args = addWhereEq(where, args, "lti_label", label)
	}

	if name := r.FormValue("name"); name != "" {
		where, args = addWhereLike(where, args, "name", name)
	}

	courses := []*Course{}
	if err := meddler.QueryAll(tx, &courses, `SELECT * FROM courses`+where+` ORDER BY lti_label`, args...); err != nil {
		loggedHTTPErrorf(w, http.StatusInternalServerError, "db error: %v", err)
		return
	}
	render.JSON(http.StatusOK, courses)
}

// GetCourse handles /v2/courses/:course_id requests,
// returning a single course.
func GetCourse(w http.ResponseWriter, tx *sql.Tx, params martini.Params, render render.Render) {
	courseID, err := parseID(w, "course_id", params["course_id"])
	if err != nil {
		return
	}

	course := new(Course)
	if err := meddler.Load(tx, "courses", course, courseID); err != nil {
		loggedHTTPDBNotFoundError(w, err)
		return
	}
	render.JSON(http.StatusOK, course)
}

// GetCourseUsers handles /v2/courses/:course_id/users requests,
// returning a list of users associated with the given course.
func GetCourseUsers(w http.ResponseWriter, tx *sql.Tx, params martini.Params, render render.Render) {
	courseID, err := parseID(w, "course_id", params["course_id"])
	if err != nil {
		return
	}

	users := []*User{}
	if err := meddler.QueryAll(tx, &users, `SELECT DISTINCT users.* `+
		`FROM users JOIN course_users ON users.id = course_users.user_id `+
		`WHERE course_users.course_id = ? ORDER BY users.id`,
		courseID); err != nil {
		loggedHTTPErrorf(w, http.StatusInternalServerError, "db error: %v", err)
		return
	}

	if len(users) == 0 {
		loggedHTTPErrorf(w, http.StatusNotFound, "not found")
		return
	}

	render.JSON(http.StatusOK, users)
}

// DeleteCourse handles /v2/courses/:course_id requests,
// deleting a single course.
// This will also delete all course user links for the course and detach its
// resources.
func DeleteCourse(w http.ResponseWriter, tx *sql.Tx, params martini.Params) {
	courseID, err := parseID(w, "course_id", params["course_id"])
	if err != nil {
		return
	}

	if _, err := tx.Exec(`DELETE FROM courses WHERE id = ?`, courseID); err != nil {
		loggedHTTPErrorf(w, http.StatusInternalServerError, "db error: %v", err)
		return
	}
}

// GetResources handles /v2/resources requests,
// returning a list of all tool placements.
//
// If parameter course_id=<...> present, results will be filtered by matching course.
func GetResources(w http.ResponseWriter, r *http.Request, tx *sql.Tx, render render.Render) {
	where := ""
	args := []interface{}{}

	if courseID := r.FormValue("course_id"); courseID != "" {
		where, args = addWhereEq(where, args, "course_id", courseID)
	}

	resources := []*Resource{}
	if err := meddler.QueryAll(tx, &resources, `SELECT * FROM resources`+where+` ORDER BY id`, args...); err != nil {
		loggedHTTPErrorf(w, http.StatusInternalServerError, "db error: %v", err)
		return
	}
	render.JSON(http.StatusOK, resources)
}

// GetResource handles /v2/resources/:resource_id requests,
// returning a single tool placement.
func GetResource(w http.ResponseWriter, tx *sql.Tx, params martini.Params, render render.Render) {
	resourceID, err := parseID(w, "resource_id", params["resource_id"])
	if err != nil {
		return
	}

	resource := new(Resource)
	if err := meddler.Load(tx, "resources", resource, resourceID); err != nil {
		loggedHTTPDBNotFoundError(w, err)
		return
	}
	render.JSON(http.StatusOK, resource)
}

// DeleteResource handles /v2/resources/:resource_id requests,
// deleting a single tool placement. The next launch through the placement
// will recreate it.
func DeleteResource(w http.ResponseWriter, tx *sql.Tx, params martini.Params) {
	resourceID, err := parseID(w, "resource_id", params["resource_id"])
	if err != nil {
		return
	}

	if _, err := tx.Exec(`DELETE FROM resources WHERE id = ?`, resourceID); err != nil {
		loggedHTTPErrorf(w, http.StatusInternalServerError, "db error: %v", err)
		return
	}
}
