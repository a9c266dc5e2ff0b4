package main

import (
	"database/sql"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-martini/martini"
	"github.com/russross/meddler"
)

const (
	testConsumerKey = "testkey"
	testSecret      = "sekrit"
	testHost        = "tool.test"
)

func testConfig() {
	Config.Hostname = testHost
	Config.SessionSecret = "0123456789abcdef0123456789abcdef"
	Config.OAuthCredentials = map[string]string{testConsumerKey: testSecret}
	Config.ToolName = "LTI Bridge"
	Config.ToolID = "ltibridge"
	Config.ToolDescription = "LTI launch handling for the host application"
	Config.AboutText = ""
	Config.PrivacyLevel = "public"
	Config.LaunchRedirectURL = "/course/:course_id"
	Config.InitializeModels = InitializeResourceAndCourseUsers
	Config.SessionsExpire = []time.Time{
		time.Date(2020, 1, 1, 0, 0, 0, 0, time.Local),
		time.Date(2020, 7, 1, 0, 0, 0, 0, time.Local),
	}
	Config.AdminEmails = nil
	Config.ExtensionParameters = nil
}

// testServer builds a complete server instance around an in-memory database.
// The database is capped at a single connection so every transaction sees
// the same in-memory store.
func testServer(t *testing.T) (*martini.Martini, *sql.DB) {
	t.Helper()
	testConfig()

	meddler.Default = meddler.SQLite
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("error opening in-memory database: %v", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("error enabling foreign keys: %v", err)
	}
	if err := migrate(db); err != nil {
		t.Fatalf("error applying migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return setupServer(db), db
}

// launchValues returns the form fields of a typical launch request,
// unsigned.
func launchValues() url.Values {
	v := url.Values{}
	v.Set("lti_message_type", "basic-lti-launch-request")
	v.Set("lti_version", "LTI-1p0")
	v.Set("resource_link_id", "link-1")
	v.Set("resource_link_title", "Quiz 1")
	v.Set("context_id", "course-abc")
	v.Set("context_label", "CS-1400")
	v.Set("context_title", "Intro to Programming")
	v.Set("user_id", "lms-user-1")
	v.Set("roles", "Learner")
	v.Set("lis_person_name_full", "Ada Lovelace")
	v.Set("lis_person_contact_email_primary", "ada@example.com")
	return v
}

var nonceCounter int

// signValues adds the oauth_* fields and a valid HMAC-SHA1 signature over
// the whole form.
func signValues(v url.Values) {
	nonceCounter++
	v.Set("oauth_consumer_key", testConsumerKey)
	v.Set("oauth_signature_method", "HMAC-SHA1")
	v.Set("oauth_timestamp", strconv.FormatInt(time.Now().Unix(), 10))
	v.Set("oauth_nonce", "nonce-"+strconv.Itoa(nonceCounter))
	v.Set("oauth_version", "1.0")
	v.Del("oauth_signature")
	sig := computeOAuthSignature("POST", "http://"+testHost+"/v2/lti/launch", v, testSecret)
	v.Set("oauth_signature", sig)
}

func postLaunch(m *martini.Martini, v url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "http://"+testHost+"/v2/lti/launch", strings.NewReader(v.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	m.ServeHTTP(w, req)
	return w
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	count := 0
	if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
		t.Fatalf("error counting rows in %s: %v", table, err)
	}
	return count
}
