package main

import (
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/blang/semver"
	"gopkg.in/gcfg.v1"

	. "github.com/edtools/ltibridge/types"
)

func mustGetObject(path string, params map[string]string, download interface{}) {
	doRequest(path, params, "GET", download, false)
}

func getObject(path string, params map[string]string, download interface{}) bool {
	return doRequest(path, params, "GET", download, true)
}

func doRequest(path string, params map[string]string, method string, download interface{}, notfoundokay bool) bool {
	if !strings.HasPrefix(path, "/") {
		log.Panicf("doRequest path must start with /")
	}
	if method != "GET" && method != "DELETE" {
		log.Panicf("doRequest only recognizes GET and DELETE methods")
	}
	req, err := http.NewRequest(method, fmt.Sprintf("https://%s/v2%s", Config.Server.Host, path), nil)
	if err != nil {
		log.Fatalf("error creating http request: %v", err)
	}

	// add any parameters
	if len(params) > 0 {
		values := req.URL.Query()
		for key, value := range params {
			values.Add(key, value)
		}
		req.URL.RawQuery = values.Encode()
	}

	// set the headers
	req.Header["Accept"] = []string{"application/json"}
	req.Header["Cookie"] = []string{Config.Server.Cookie}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("error connecting to %s: %v", Config.Server.Host, err)
	}
	defer resp.Body.Close()
	if notfoundokay && resp.StatusCode == http.StatusNotFound {
		return false
	}
	if resp.StatusCode != http.StatusOK {
		log.Printf("unexpected status from %s: %s", Config.Server.Host, resp.Status)
		io.Copy(os.Stderr, resp.Body)
		log.Fatalf("giving up")
	}

	// parse the result if any
	if download != nil {
		decoder := json.NewDecoder(resp.Body)
		if err := decoder.Decode(download); err != nil {
			log.Fatalf("failed to parse result object from server: %v", err)
		}
		return true
	}
	return false
}

// mustGetRaw fetches a path and returns the raw response body. Used for
// endpoints that do not speak JSON, such as the tool descriptor.
func mustGetRaw(path string) []byte {
	req, err := http.NewRequest("GET", fmt.Sprintf("https://%s/v2%s", Config.Server.Host, path), nil)
	if err != nil {
		log.Fatalf("error creating http request: %v", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("error connecting to %s: %v", Config.Server.Host, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Printf("unexpected status from %s: %s", Config.Server.Host, resp.Status)
		io.Copy(os.Stderr, resp.Body)
		log.Fatalf("giving up")
	}

	raw, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("error reading response from %s: %v", Config.Server.Host, err)
	}
	return raw
}

func mustLoadConfig() {
	configFile := filepath.Join(mustHomeDir(), perUserDotFile)

	if err := gcfg.ReadFileInto(&Config, configFile); err != nil {
		log.Printf("failed to load %s: %v", configFile, err)
		log.Fatalf("unable to load config file; try running \"ltictl init\"")
	}
	if Config.Server.Host == "" || Config.Server.Cookie == "" {
		log.Fatalf("config file is incomplete; try running \"ltictl init\" again")
	}
}

func mustWriteConfig() {
	configFile := filepath.Join(mustHomeDir(), perUserDotFile)

	raw := fmt.Sprintf("[server]\nhost = %s\ncookie = %s\n", Config.Server.Host, Config.Server.Cookie)
	if err := ioutil.WriteFile(configFile, []byte(raw), 0600); err != nil {
		log.Fatalf("error writing %s: %v", configFile, err)
	}
}

func mustHomeDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home = os.Getenv("USERPROFILE")
	}
	if home == "" {
		log.Fatalf("unable to locate home directory, giving up")
	}
	return home
}

// mustCheckVersion verifies that this build of ltictl is still compatible
// with the server it is talking to.
func mustCheckVersion() {
	server := new(Version)
	mustGetObject("/version", nil, server)
	mine, err := semver.Parse(version)
	if err != nil {
		log.Fatalf("error parsing my version %s: %v", version, err)
	}
	required, err := semver.Parse(server.LtictlVersionRequired)
	if err != nil {
		log.Fatalf("error parsing required version %s: %v", server.LtictlVersionRequired, err)
	}
	recommended, err := semver.Parse(server.LtictlVersionRecommended)
	if err != nil {
		log.Fatalf("error parsing recommended version %s: %v", server.LtictlVersionRecommended, err)
	}
	if required.GT(mine) {
		log.Fatalf("this is ltictl %s, but the server requires %s or later; please upgrade", version, server.LtictlVersionRequired)
	}
	if recommended.GT(mine) {
		log.Printf("this is ltictl %s, but the server recommends %s or later", version, server.LtictlVersionRecommended)
	}
}
