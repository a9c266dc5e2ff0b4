package main

import (
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"expvar"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-martini/martini"
	"github.com/martini-contrib/binding"
	mgzip "github.com/martini-contrib/gzip"
	"github.com/martini-contrib/render"
	_ "github.com/mattn/go-sqlite3"
	"github.com/russross/meddler"

	. "github.com/edtools/ltibridge/types"
)

// Config holds site-specific configuration data.
var Config struct {
	// required parameters
	Hostname         string            `json:"hostname"`         // Hostname for the site: "your.host.goes.here"
	SessionSecret    string            `json:"sessionSecret"`    // Random string used to sign cookie sessions: `head -c 32 /dev/urandom | base64`
	OAuthCredentials map[string]string `json:"oauthCredentials"` // Consumer key -> shared secret. Must match those given to the LMS

	// parameters where the default is usually sufficient
	ToolName            string                            `json:"toolName"`            // LTI human readable name: default "LTI Bridge"
	ToolID              string                            `json:"toolID"`              // LTI unique ID: default "ltibridge"
	ToolDescription     string                            `json:"toolDescription"`     // LTI description shown to the LMS admin
	AboutText           string                            `json:"aboutText"`           // Markdown shown on the about page
	PrivacyLevel        string                            `json:"privacyLevel"`        // Cartridge privacy level: default "public"
	LaunchRedirectURL   string                            `json:"launchRedirectURL"`   // Where a launch lands, ":course_id" is substituted: default "/course/:course_id"
	InitializeModels    string                            `json:"initializeModels"`    // One of none/resource_only/resource_and_course/resource_and_course_users
	SQLite3Path         string                            `json:"sqlite3Path"`         // path to the sqlite database file: default "$LTIBRIDGEROOT/db/ltibridge.db"
	SessionsExpire      []time.Time                       `json:"sessionsExpire"`      // times/dates when sessions should expire (year is ignored)
	AdminEmails         []string                          `json:"adminEmails"`         // email addresses of administrators
	ExtensionParameters map[string]map[string]interface{} `json:"extensionParameters"` // platform -> cartridge extension params; object values become options groups
}

var root string
var port string

func main() {
	log.SetFlags(log.Lshortfile)

	root = os.Getenv("LTIBRIDGEROOT")
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			log.Fatalf("LTIBRIDGEROOT is not set, and cannot find user's home directory")
		}
		root = filepath.Join(home, "ltibridge")
	}
	log.Printf("LTIBRIDGEROOT set to %s", root)

	port = ":" + os.Getenv("PORT")
	if port == ":" {
		port = ":8080"
	}
	log.Printf("port set to %s", port)

	// parse command line
	var useConfig bool
	flag.BoolVar(&useConfig, "config", false, "Use config.json for config data (for testing)")
	flag.Parse()

	// set config defaults
	setConfigDefaults()

	// load config
	if useConfig {
		configFile := filepath.Join(root, "config.json")
		if raw, err := os.ReadFile(configFile); err != nil {
			log.Fatalf("failed to load config file %q: %v", configFile, err)
		} else if err := json.Unmarshal(raw, &Config); err != nil {
			log.Fatalf("failed to parse config file: %v", err)
		}
	} else {
		Config.Hostname = os.Getenv("LTIBRIDGE_HOSTNAME")
		Config.SessionSecret = os.Getenv("LTIBRIDGE_SESSIONSECRET")
		if key := os.Getenv("LTIBRIDGE_CONSUMERKEY"); key != "" {
			Config.OAuthCredentials = map[string]string{key: os.Getenv("LTIBRIDGE_LTISECRET")}
		}
		if redirect := os.Getenv("LTIBRIDGE_REDIRECTURL"); redirect != "" {
			Config.LaunchRedirectURL = redirect
		}
		if level := os.Getenv("LTIBRIDGE_INITIALIZEMODELS"); level != "" {
			Config.InitializeModels = level
		}
	}
	Config.SessionSecret = unBase64(Config.SessionSecret)

	if Config.Hostname == "" {
		log.Fatalf("cannot run with no hostname in the config file")
	}
	if Config.SessionSecret == "" {
		log.Fatalf("cannot run with no sessionSecret in the config file")
	}
	if len(Config.OAuthCredentials) == 0 {
		log.Fatalf("cannot run with no oauthCredentials in the config file")
	}
	if _, err := modelLevel(Config.InitializeModels); err != nil {
		log.Fatalf("%v", err)
	}

	// set up the database
	db := setupDB(Config.SQLite3Path)
	if err := migrate(db); err != nil {
		log.Fatalf("error applying database migrations: %v", err)
	}

	m := setupServer(db)

	// note: this will work behind a TLS proxy,
	// but the LMS will refuse to connect to an insecure host
	log.Printf("accepting http connections on %s", port)
	if err := http.ListenAndServe(port, m); err != nil {
		log.Fatalf("ListenAndServe: %v", err)
	}
}

func setConfigDefaults() {
	Config.ToolName = "LTI Bridge"
	Config.ToolID = "ltibridge"
	Config.ToolDescription = "LTI launch handling for the host application"
	Config.PrivacyLevel = "public"
	Config.LaunchRedirectURL = "/course/:course_id"
	Config.InitializeModels = InitializeResourceAndCourseUsers
	Config.SQLite3Path = filepath.Join(root, "db", "ltibridge.db")
	Config.SessionsExpire = []time.Time{
		time.Date(2020, 1, 1, 0, 0, 0, 0, time.Local),
		time.Date(2020, 7, 1, 0, 0, 0, 0, time.Local),
	}
}

// setupServer builds the martini instance with all routes and middleware.
// Split out from main so tests can drive it with an in-memory database.
func setupServer(db *sql.DB) *martini.Martini {
	r := martini.NewRouter()
	m := martini.New()
	m.Logger(log.New(os.Stderr, "", log.Lshortfile))
	m.Use(martini.Recovery())
	m.MapTo(r, (*martini.Routes)(nil))
	m.Action(r.Handle)

	m.Use(mgzip.All())
	m.Use(render.Renderer(render.Options{IndentJSON: false}))

	counter := func(w http.ResponseWriter, r *http.Request, c martini.Context) {
		start := time.Now()
		c.Next()
		now := time.Now()
		seconds := now.Sub(start).Seconds()
		hits++
		hitsCounter.Add(1)
		if seconds > slowest {
			slowest = seconds
			slowestCounter.Set(seconds)
			slowestTimeCounter.Set(now.Format(time.RFC1123))
			slowestPathCounter.Set(r.URL.Path)
		}
		totalSeconds += seconds
		totalSecondsCounter.Add(seconds)
		averageSecondsCounter.Set(totalSeconds / float64(hits))
		rw := w.(martini.ResponseWriter)
		if rw.Status() >= 400 {
			errorsCounter.Add(1)
		}
		goroutineCounter.Set(int64(runtime.NumGoroutine()))
	}

	var dbMutex sync.Mutex

	// martini service: wrap handler in a transaction
	withTx := func(c martini.Context, r *http.Request, w http.ResponseWriter) {
		dbMutex.Lock()
		defer dbMutex.Unlock()

		tx, err := db.Begin()
		if err != nil {
			loggedHTTPErrorf(w, http.StatusInternalServerError, "db error starting transaction: %v", err)
			return
		}

		// pass it on to the main handler
		c.Map(tx)
		c.Next()

		// was it a successful result?
		rw := w.(martini.ResponseWriter)
		if rw.Status() < http.StatusBadRequest {
			if err := tx.Commit(); err != nil {
				loggedHTTPErrorf(w, http.StatusInternalServerError, "db error committing transaction: %v", err)
				return
			}
		} else {
			if err := tx.Rollback(); err != nil {
				loggedHTTPErrorf(w, http.StatusInternalServerError, "db error rolling back transaction: %v", err)
				return
			}
		}
	}

	// martini service: to require an active logged-in session
	auth := func(w http.ResponseWriter, r *http.Request) {
		_, err := GetSession(r)
		if err != nil {
			loggedHTTPErrorf(w, http.StatusUnauthorized, "authentication failed: try launching from the LMS again")
			log.Printf("%v", err)
			return
		}
	}

	// martini service: include the current logged-in user (requires withTx)
	withCurrentUser := func(c martini.Context, w http.ResponseWriter, r *http.Request, tx *sql.Tx) {
		session, err := GetSession(r)
		if err != nil {
			loggedHTTPErrorf(w, http.StatusUnauthorized, "authentication failed: try launching from the LMS again")
			log.Printf("%v", err)
			return
		}

		// load the user record
		userID := session.UserID
		user := new(User)
		if err := meddler.Load(tx, "users", user, userID); err != nil {
			session.Delete(w)

			if err == sql.ErrNoRows {
				loggedHTTPErrorf(w, http.StatusUnauthorized, "user %d not found", userID)
				return
			}
			loggedHTTPErrorf(w, http.StatusInternalServerError, "db error: %v", err)
			return
		}

		// map the current user to the request context
		c.Map(user)
	}

	// martini service: require logged in user to be an administrator (requires withCurrentUser)
	administratorOnly := func(w http.ResponseWriter, currentUser *User) {
		if !isAdministrator(currentUser) {
			loggedHTTPErrorf(w, http.StatusUnauthorized, "user %d (%s) is not an administrator", currentUser.ID, currentUser.Email)
			return
		}
	}

	// martini service: require logged in user to be an instructor in some
	// course, or an administrator (requires withCurrentUser)
	instructorOnly := func(w http.ResponseWriter, tx *sql.Tx, currentUser *User) {
		if isAdministrator(currentUser) {
			return
		}
		instructor, err := isInstructor(tx, currentUser)
		if err != nil {
			loggedHTTPErrorf(w, http.StatusInternalServerError, "db error checking instructor role for user %d: %v", currentUser.ID, err)
			return
		}
		if !instructor {
			loggedHTTPErrorf(w, http.StatusUnauthorized, "user %d (%s) is not an instructor", currentUser.ID, currentUser.Email)
			return
		}
	}

	// version
	r.Get("/v2/version", counter, func(w http.ResponseWriter, render render.Render) {
		render.JSON(http.StatusOK, &CurrentVersion)
	})

	// stats
	r.Get("/v2/stats", counter, withTx, withCurrentUser, administratorOnly, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		fmt.Fprintf(w, "{\n")
		first := true
		expvar.Do(func(kv expvar.KeyValue) {
			if !first {
				fmt.Fprintf(w, ",\n")
			}
			first = false
			fmt.Fprintf(w, "%q: %s", kv.Key, kv.Value)
		})
		fmt.Fprintf(w, "\n}\n")
	})

	// LTI
	r.Get("/v2/lti/config.xml", counter, GetConfigXML)
	r.Get("/v2/lti/about", counter, GetAbout)
	r.Get("/v2/lti/launch", counter, GetLaunch)
	r.Post("/v2/lti/launch", counter, binding.Bind(LTIRequest{}), checkOAuthSignature, withTx, LtiLaunch)

	// sessions
	r.Get("/v2/users/me", counter, withTx, withCurrentUser, GetUserMe)
	r.Post("/v2/logout", counter, Logout)
	r.Get("/v2/logged-out", counter, LoggedOut)

	// courses
	r.Get("/v2/courses", counter, auth, withTx, GetCourses)
	r.Get("/v2/courses/:course_id", counter, auth, withTx, GetCourse)
	r.Get("/v2/courses/:course_id/users", counter, withTx, withCurrentUser, instructorOnly, GetCourseUsers)
	r.Delete("/v2/courses/:course_id", counter, withTx, withCurrentUser, administratorOnly, DeleteCourse)

	// resources
	r.Get("/v2/resources", counter, auth, withTx, GetResources)
	r.Get("/v2/resources/:resource_id", counter, auth, withTx, GetResource)
	r.Delete("/v2/resources/:resource_id", counter, withTx, withCurrentUser, administratorOnly, DeleteResource)

	// users
	r.Get("/v2/users", counter, withTx, withCurrentUser, instructorOnly, GetUsers)
	r.Get("/v2/users/:user_id", counter, withTx, withCurrentUser, instructorOnly, GetUser)
	r.Delete("/v2/users/:user_id", counter, withTx, withCurrentUser, administratorOnly, DeleteUser)

	return m
}

func setupDB(path string) *sql.DB {
	meddler.Default = meddler.SQLite

	options :=
		"?" + "mode=rwc" +
			"&" + "_busy_timeout=10000" +
			"&" + "_cache_size=-20000" +
			"&" + "_foreign_keys=ON" +
			"&" + "_journal_mode=WAL" +
			"&" + "_synchronous=NORMAL" +
			"&" + "_temp_store=MEMORY"
	db, err := sql.Open("sqlite3", path+options)
	if err != nil {
		log.Fatalf("error opening database: %v", err)
	}

	return db
}

func isAdministrator(user *User) bool {
	for _, email := range Config.AdminEmails {
		if email == user.Email {
			return true
		}
	}
	return false
}

func isInstructor(tx *sql.Tx, user *User) (bool, error) {
	links := []*CourseUser{}
	if err := meddler.QueryAll(tx, &links, `SELECT * FROM course_users WHERE user_id = ?`, user.ID); err != nil {
		return false, err
	}
	for _, elt := range links {
		if elt.IsInstructor() {
			return true, nil
		}
	}
	return false, nil
}

func addWhereEq(where string, args []interface{}, label string, value interface{}) (string, []interface{}) {
	if where == "" {
		where = " WHERE"
	} else {
		where += " AND"
	}
	args = append(args, value)
	where += fmt.Sprintf(" %s = ?", label)
	return where, args
}

func addWhereLike(where string, args []interface{}, label string, value string) (string, []interface{}) {
	if where == "" {
		where = " WHERE"
	} else {
		where += " AND"
	}
	args = append(args, "%"+strings.ToLower(value)+"%")

	// sqlite is set to use case insensitive LIKEs
	where += fmt.Sprintf(" %s LIKE ?", label)
	return where, args
}

func loggedHTTPDBNotFoundError(w http.ResponseWriter, err error) {
	msg := "not found"
	status := http.StatusNotFound
	if err != sql.ErrNoRows {
		msg = fmt.Sprintf("db error: %v", err)
		status = http.StatusInternalServerError
	}
	http.Error(w, msg, status)
}

func loggedHTTPErrorf(w http.ResponseWriter, status int, format string, params ...interface{}) error {
	msg := fmt.Sprintf(format, params...)
	log.Print(logPrefix() + msg)
	http.Error(w, msg, status)
	return fmt.Errorf("%s", msg)
}

func loggedErrorf(f string, params ...interface{}) error {
	log.Print(logPrefix() + fmt.Sprintf(f, params...))
	return fmt.Errorf(f, params...)
}

func parseID(w http.ResponseWriter, name, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, loggedHTTPErrorf(w, http.StatusBadRequest, "error parsing %s from URL: %v", name, err)
	}
	if id < 1 {
		return 0, loggedHTTPErrorf(w, http.StatusBadRequest, "invalid ID in URL: %s must be 1 or greater", name)
	}

	return id, nil
}

func logPrefix() string {
	prefix := ""
	if _, file, line, ok := runtime.Caller(2); ok {
		if slash := strings.LastIndex(file, "/"); slash >= 0 {
			file = file[slash+1:]
		}
		prefix = fmt.Sprintf("%s:%d: ", file, line)
	}
	return prefix
}

func unBase64(s string) string {
	if raw, err := base64.StdEncoding.DecodeString(s); err == nil {
		return string(raw)
	}
	return s
}

var (
	hits                  int
	hitsCounter           = expvar.NewInt("hits")
	slowest               float64
	slowestCounter        = expvar.NewFloat("slowestSeconds")
	slowestPathCounter    = expvar.NewString("slowestPath")
	slowestTimeCounter    = expvar.NewString("slowestTime")
	totalSeconds          float64
	totalSecondsCounter   = expvar.NewFloat("totalSeconds")
	averageSecondsCounter = expvar.NewFloat("averageSeconds")
	errorsCounter         = expvar.NewInt("errors")
	goroutineCounter      = expvar.NewInt("goroutines")
)
