package types

import (
	"encoding/xml"
	"fmt"
	"sort"
)

// ToolConfig is the IMS Common Cartridge basic LTI link descriptor that
// consumers (e.g. Canvas) read when registering the tool. Marshalled
// element names carry the namespace prefixes the profile expects.
type ToolConfig struct {
	XMLName        xml.Name `xml:"cartridge_basiclti_link"`
	Xmlns          string   `xml:"xmlns,attr"`
	XmlnsBlti      string   `xml:"xmlns:blti,attr"`
	XmlnsLticm     string   `xml:"xmlns:lticm,attr"`
	XmlnsLticp     string   `xml:"xmlns:lticp,attr"`
	XmlnsXsi       string   `xml:"xmlns:xsi,attr"`
	SchemaLocation string   `xml:"xsi:schemaLocation,attr"`

	Title           string            `xml:"blti:title"`
	Description     string            `xml:"blti:description"`
	LaunchURL       string            `xml:"blti:launch_url"`
	SecureLaunchURL string            `xml:"blti:secure_launch_url"`
	Icon            string            `xml:"blti:icon,omitempty"`
	Vendor          *ToolVendor       `xml:"blti:vendor,omitempty"`
	Extensions      []*ToolExtensions `xml:"blti:extensions"`
}

type ToolVendor struct {
	Code        string `xml:"lticp:code"`
	Name        string `xml:"lticp:name"`
	Description string `xml:"lticp:description,omitempty"`
	URL         string `xml:"lticp:url,omitempty"`
}

// ToolExtensions is one platform-specific extension block,
// e.g. platform="canvas.instructure.com".
type ToolExtensions struct {
	Platform   string          `xml:"platform,attr"`
	Properties []*ToolProperty `xml:"lticm:property"`
	Options    []*ToolOptions  `xml:"lticm:options"`
}

type ToolProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

// ToolOptions is a named group of properties within an extension block,
// e.g. course_navigation.
type ToolOptions struct {
	Name       string          `xml:"name,attr"`
	Properties []*ToolProperty `xml:"lticm:property"`
}

func NewToolConfig(title, description, launchURL string) *ToolConfig {
	return &ToolConfig{
		Xmlns:      "http://www.imsglobal.org/xsd/imslticc_v1p0",
		XmlnsBlti:  "http://www.imsglobal.org/xsd/imsbasiclti_v1p0",
		XmlnsLticm: "http://www.imsglobal.org/xsd/imslticm_v1p0",
		XmlnsLticp: "http://www.imsglobal.org/xsd/imslticp_v1p0",
		XmlnsXsi:   "http://www.w3.org/2001/XMLSchema-instance",
		SchemaLocation: "http://www.imsglobal.org/xsd/imslticc_v1p0 http://www.imsglobal.org/xsd/lti/ltiv1p0/imslticc_v1p0.xsd " +
			"http://www.imsglobal.org/xsd/imsbasiclti_v1p0 http://www.imsglobal.org/xsd/lti/ltiv1p0/imsbasiclti_v1p0p1.xsd " +
			"http://www.imsglobal.org/xsd/imslticm_v1p0 http://www.imsglobal.org/xsd/lti/ltiv1p0/imslticm_v1p0.xsd " +
			"http://www.imsglobal.org/xsd/imslticp_v1p0 http://www.imsglobal.org/xsd/lti/ltiv1p0/imslticp_v1p0.xsd",
		Title:           title,
		Description:     description,
		LaunchURL:       launchURL,
		SecureLaunchURL: launchURL,
	}
}

func (tc *ToolConfig) extensions(platform string) *ToolExtensions {
	for _, elt := range tc.Extensions {
		if elt.Platform == platform {
			return elt
		}
	}
	ext := &ToolExtensions{Platform: platform}
	tc.Extensions = append(tc.Extensions, ext)
	return ext
}

// SetExtParam sets a single extension property for the given platform.
func (tc *ToolConfig) SetExtParam(platform, name, value string) {
	ext := tc.extensions(platform)
	for _, prop := range ext.Properties {
		if prop.Name == name {
			prop.Value = value
			return
		}
	}
	ext.Properties = append(ext.Properties, &ToolProperty{Name: name, Value: value})
}

// SetExtOptions sets a named options group (such as course_navigation) for
// the given platform. Properties are emitted in sorted order so the output
// is stable.
func (tc *ToolConfig) SetExtOptions(platform, name string, params map[string]string) {
	options := &ToolOptions{Name: name}
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		options.Properties = append(options.Properties, &ToolProperty{Name: key, Value: params[key]})
	}

	ext := tc.extensions(platform)
	for i, elt := range ext.Options {
		if elt.Name == name {
			ext.Options[i] = options
			return
		}
	}
	ext.Options = append(ext.Options, options)
}

// ToXML renders the descriptor as a complete XML document.
func (tc *ToolConfig) ToXML() ([]byte, error) {
	raw, err := xml.MarshalIndent(tc, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("error marshalling tool config: %v", err)
	}
	return append([]byte(xml.Header), append(raw, '\n')...), nil
}
