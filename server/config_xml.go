package main

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"

	"github.com/russross/blackfriday/v2"
	"golang.org/x/net/html"

	. "github.com/edtools/ltibridge/types"
)

const canvasPlatform = "canvas.instructure.com"

// GetConfigXML handles GET /v2/lti/config.xml requests,
// returning the tool descriptor the LMS reads when registering the tool.
// The output can be pasted into the LMS tool settings or fetched directly
// from this endpoint.
func GetConfigXML(w http.ResponseWriter, r *http.Request) {
	tc := NewToolConfig(Config.ToolName, Config.ToolDescription, launchURL(r))
	tc.Vendor = &ToolVendor{
		Code: Config.ToolID,
		Name: Config.ToolName,
	}
	tc.SetExtParam(canvasPlatform, "tool_id", Config.ToolID)
	tc.SetExtParam(canvasPlatform, "privacy_level", Config.PrivacyLevel)

	// vendor extension blocks from the config: string values become
	// properties, object values become named options groups
	platforms := make([]string, 0, len(Config.ExtensionParameters))
	for platform := range Config.ExtensionParameters {
		platforms = append(platforms, platform)
	}
	sort.Strings(platforms)
	for _, platform := range platforms {
		params := Config.ExtensionParameters[platform]
		names := make([]string, 0, len(params))
		for name := range params {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			switch value := params[name].(type) {
			case map[string]interface{}:
				options := make(map[string]string)
				for key, elt := range value {
					options[key] = fmt.Sprintf("%v", elt)
				}
				tc.SetExtOptions(platform, name, options)
			default:
				tc.SetExtParam(platform, name, fmt.Sprintf("%v", value))
			}
		}
	}

	raw, err := tc.ToXML()
	if err != nil {
		loggedHTTPErrorf(w, http.StatusInternalServerError, "%v", err)
		return
	}
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.Write(raw)
}

// launchURL returns the absolute launch URL as the consumer should sign it.
func launchURL(r *http.Request) string {
	scheme := "https"
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	} else if r.TLS == nil {
		scheme = "http"
	}
	host := r.Host
	if host == "" {
		host = Config.Hostname
	}
	return scheme + "://" + host + "/v2/lti/launch"
}

// GetAbout handles GET /v2/lti/about requests,
// rendering the configured markdown description as a simple HTML page.
// The first top-level heading, if any, becomes the page title.
func GetAbout(w http.ResponseWriter) {
	if Config.AboutText == "" {
		loggedHTTPErrorf(w, http.StatusNotFound, "no aboutText configured")
		return
	}

	var extensions blackfriday.Extensions
	extensions |= blackfriday.NoIntraEmphasis
	extensions |= blackfriday.Tables
	extensions |= blackfriday.FencedCode
	extensions |= blackfriday.Autolink
	extensions |= blackfriday.Strikethrough
	extensions |= blackfriday.SpaceHeadings

	justHTML := blackfriday.Run([]byte(Config.AboutText), blackfriday.WithExtensions(extensions))

	title := Config.ToolName
	if doc, err := html.Parse(bytes.NewReader(justHTML)); err == nil && doc != nil {
		if heading := firstHeading(doc); heading != "" {
			title = heading
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<!DOCTYPE html>\n<html><head><title>%s</title></head><body>\n", html.EscapeString(title))
	w.Write(justHTML)
	fmt.Fprintf(w, "</body></html>\n")
}

// firstHeading returns the text of the first h1 element in the document.
func firstHeading(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "h1" {
		var buf bytes.Buffer
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				buf.WriteString(c.Data)
			}
		}
		return buf.String()
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if heading := firstHeading(c); heading != "" {
			return heading
		}
	}
	return ""
}
