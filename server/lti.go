package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha1"
	"database/sql"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// oauthTimestampWindow is the largest clock drift tolerated on a signed
// launch request.
const oauthTimestampWindow = 15 * time.Minute

// LTIRequest is the form data of an LTI 1.1 launch request.
// Only the fields this tool consumes are bound; the signature check still
// covers every parameter the consumer sent.
type LTIRequest struct {
	LTIMessageType    string `form:"lti_message_type"`
	LTIVersion        string `form:"lti_version"`
	ResourceLinkID    string `form:"resource_link_id"`
	ResourceLinkTitle string `form:"resource_link_title"`

	ContextID    string `form:"context_id"`
	ContextLabel string `form:"context_label"`
	ContextTitle string `form:"context_title"`

	UserID       string `form:"user_id"`
	Roles        string `form:"roles"`
	PersonName   string `form:"lis_person_name_full"`
	PersonEmail  string `form:"lis_person_contact_email_primary"`
	UserImageURL string `form:"user_image"`

	CanvasUserLogin string `form:"custom_canvas_user_login_id"`
	CanvasUserID    int64  `form:"custom_canvas_user_id"`
	CanvasCourseID  int64  `form:"custom_canvas_course_id"`

	OAuthConsumerKey     string `form:"oauth_consumer_key"`
	OAuthSignatureMethod string `form:"oauth_signature_method"`
	OAuthTimestamp       int64  `form:"oauth_timestamp"`
	OAuthNonce           string `form:"oauth_nonce"`
	OAuthVersion         string `form:"oauth_version"`
	OAuthSignature       string `form:"oauth_signature"`
}

// checkOAuthSignature is a martini middleware that verifies the OAuth 1.0
// signature on a launch request before the handler runs.
func checkOAuthSignature(w http.ResponseWriter, r *http.Request, form LTIRequest) {
	secret, present := Config.OAuthCredentials[form.OAuthConsumerKey]
	if !present {
		loggedHTTPErrorf(w, http.StatusForbidden, "unknown oauth_consumer_key %q", form.OAuthConsumerKey)
		return
	}
	if form.OAuthSignatureMethod != "HMAC-SHA1" {
		loggedHTTPErrorf(w, http.StatusBadRequest, "unsupported oauth_signature_method %q", form.OAuthSignatureMethod)
		return
	}

	drift := time.Since(time.Unix(form.OAuthTimestamp, 0))
	if drift < 0 {
		drift = -drift
	}
	if drift > oauthTimestampWindow {
		loggedHTTPErrorf(w, http.StatusUnauthorized, "oauth_timestamp is outside the accepted window")
		return
	}

	if err := r.ParseForm(); err != nil {
		loggedHTTPErrorf(w, http.StatusBadRequest, "error parsing form: %v", err)
		return
	}
	expected := computeOAuthSignature(r.Method, requestURL(r), r.Form, secret)
	if !hmac.Equal([]byte(expected), []byte(form.OAuthSignature)) {
		log.Printf("signature mismatch: computed %s but found %s", expected, form.OAuthSignature)
		loggedHTTPErrorf(w, http.StatusUnauthorized, "oauth signature check failed")
		return
	}
}

// computeOAuthSignature computes the OAuth 1.0 HMAC-SHA1 signature over the
// given request parameters. oauth_signature itself is excluded from the
// signature base string.
func computeOAuthSignature(method, rawURL string, params url.Values, secret string) string {
	v := make(url.Values)
	for key, values := range params {
		if key == "oauth_signature" {
			continue
		}
		for _, value := range values {
			v.Add(key, value)
		}
	}

	base := strings.ToUpper(method) + "&" + escape(rawURL) + "&" + escape(encodeValues(v))
	mac := hmac.New(sha1.New, []byte(escape(secret)+"&"))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// requestURL reconstructs the URL the consumer signed. The launch comes in
// through a TLS proxy, so the scheme is taken from X-Forwarded-Proto when
// present.
func requestURL(r *http.Request) string {
	scheme := "https"
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	} else if r.TLS == nil {
		scheme = "http"
	}
	return scheme + "://" + r.Host + r.URL.Path
}

// GetLaunch handles GET /v2/lti/launch requests.
// Launch requests must be POSTed, so all this does is explain that.
func GetLaunch(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<html><body><p>Invalid LTI launch request: launches must be POSTed by the LMS.</p></body></html>\n")
}

// LtiLaunch handles POST /v2/lti/launch requests.
// The signature has already been verified by checkOAuthSignature. All logic
// runs through the hook sequence so that any stage can be overridden by a
// custom LaunchHooks implementation.
func LtiLaunch(w http.ResponseWriter, r *http.Request, tx *sql.Tx, form LTIRequest) {
	now := time.Now()
	hooks := launchHooks

	if err := hooks.BeforePost(r, &form); err != nil {
		loggedHTTPErrorf(w, http.StatusBadRequest, "launch rejected: %v", err)
		return
	}

	result, err := hooks.ProcessPost(tx, now, &form)
	if err != nil {
		loggedHTTPErrorf(w, http.StatusInternalServerError, "error initializing launch records: %v", err)
		return
	}

	if err := hooks.AfterPost(w, &form, result); err != nil {
		loggedHTTPErrorf(w, http.StatusInternalServerError, "error finishing launch: %v", err)
		return
	}

	target, err := hooks.Redirect(r, result)
	if err != nil {
		loggedHTTPErrorf(w, http.StatusInternalServerError, "error computing launch redirect: %v", err)
		return
	}

	log.Printf("launch: user %s (%s) -> %s", result.User.Name, form.OAuthConsumerKey, target)
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// Logout handles POST /v2/logout requests, deleting the session cookie.
func Logout(w http.ResponseWriter, r *http.Request) {
	if session, err := GetSession(r); err == nil {
		session.Delete(w)
	}
	http.Redirect(w, r, "/v2/logged-out", http.StatusSeeOther)
}

// LoggedOut handles GET /v2/logged-out requests.
func LoggedOut(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<html><body><p>Logged out successfully.</p></body></html>\n")
}

// encodeValues is url.Values.Encode from the standard library, but using
// escape instead of url.QueryEscape, and with values sorted within each key
// as OAuth requires.
func encodeValues(v url.Values) string {
	if v == nil {
		return ""
	}
	var buf bytes.Buffer
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		vs := append([]string(nil), v[k]...)
		sort.Strings(vs)
		prefix := escape(k) + "="
		for _, v := range vs {
			if buf.Len() > 0 {
				buf.WriteByte('&')
			}
			buf.WriteString(prefix)
			buf.WriteString(escape(v))
		}
	}
	return buf.String()
}

func escape(s string) string {
	var buf bytes.Buffer
	for _, b := range []byte(s) {
		if b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b == '-' || b == '.' || b == '_' || b == '~' {
			buf.WriteByte(b)
		} else {
			fmt.Fprintf(&buf, "%%%02X", b)
		}
	}
	return buf.String()
}
