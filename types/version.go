package types

type Version struct {
	Version                  string `json:"version"`
	LtictlVersionRequired    string `json:"ltictlVersionRequired"`
	LtictlVersionRecommended string `json:"ltictlVersionRecommended"`
}

var CurrentVersion = Version{
	Version:                  "1.2.0",
	LtictlVersionRequired:    "1.0.0",
	LtictlVersionRecommended: "1.2.0",
}
