package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-martini/martini"
)

func getPath(m *martini.Martini, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", "http://"+testHost+path, nil)
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	w := httptest.NewRecorder()
	m.ServeHTTP(w, req)
	return w
}

func TestGetConfigXML(t *testing.T) {
	m, _ := testServer(t)
	Config.ExtensionParameters = map[string]map[string]interface{}{
		canvasPlatform: {
			"domain": testHost,
			"course_navigation": map[string]interface{}{
				"enabled": "true",
				"default": "disabled",
			},
		},
	}

	w := getPath(m, "/v2/lti/config.xml", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/xml") {
		t.Errorf("expected text/xml content type, got %q", ct)
	}

	body := w.Body.String()
	for _, want := range []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		`<cartridge_basiclti_link`,
		`<blti:title>LTI Bridge</blti:title>`,
		`<blti:launch_url>http://tool.test/v2/lti/launch</blti:launch_url>`,
		`<blti:extensions platform="canvas.instructure.com">`,
		`<lticm:property name="tool_id">ltibridge</lticm:property>`,
		`<lticm:property name="privacy_level">public</lticm:property>`,
		`<lticm:property name="domain">tool.test</lticm:property>`,
		`<lticm:options name="course_navigation">`,
		`<lticm:property name="default">disabled</lticm:property>`,
		`<lticm:property name="enabled">true</lticm:property>`,
		`<lticp:code>ltibridge</lticp:code>`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected descriptor to contain %s\nfull output:\n%s", want, body)
		}
	}
}

func TestGetConfigXMLForwardedProto(t *testing.T) {
	m, _ := testServer(t)

	w := getPath(m, "/v2/lti/config.xml", map[string]string{"X-Forwarded-Proto": "https"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, w.Code)
	}
	if !strings.Contains(w.Body.String(), "<blti:launch_url>https://tool.test/v2/lti/launch</blti:launch_url>") {
		t.Errorf("expected an https launch URL behind a TLS proxy")
	}
}

func TestGetAbout(t *testing.T) {
	m, _ := testServer(t)
	Config.AboutText = "# My Tool\n\nSome *emphasized* text.\n"

	w := getPath(m, "/v2/lti/about", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "<title>My Tool</title>") {
		t.Errorf("expected the first heading to become the page title, got:\n%s", body)
	}
	if !strings.Contains(body, "<em>emphasized</em>") {
		t.Errorf("expected markdown to be rendered, got:\n%s", body)
	}
}

func TestGetAboutUnconfigured(t *testing.T) {
	m, _ := testServer(t)
	Config.AboutText = ""

	w := getPath(m, "/v2/lti/about", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected %d, got %d", http.StatusNotFound, w.Code)
	}
}
