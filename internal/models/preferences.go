package models

// Preferences are per-installation settings persisted in the local snapshot
// cache. AutoRename false bypasses AI analysis entirely: the asset keeps its
// original name and default semantic fields.
type Preferences struct {
	Theme        string `json:"theme"`
	AutoRename   bool   `json:"autoRename"`
	ExportFormat string `json:"exportFormat"`
}

// DefaultPreferences returns the out-of-the-box settings.
func DefaultPreferences() Preferences {
	return Preferences{
		Theme:        "light",
		AutoRename:   true,
		ExportFormat: "markdown",
	}
}
