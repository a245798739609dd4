package models

// RetroTemplate defines the column layout a retrospective board starts with.
type RetroTemplate struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// DefaultTemplateID is used when session creation names an unknown template.
const DefaultTemplateID = "start-stop-continue"

// Templates is the built-in retrospective template catalog.
var Templates = map[string]RetroTemplate{
	"start-stop-continue": {
		ID:   "start-stop-continue",
		Name: "Start / Stop / Continue",
		Columns: []Column{
			{Key: "start", Title: "Start", Color: "#4caf50", IsMainColumn: true},
			{Key: "stop", Title: "Stop", Color: "#f44336"},
			{Key: "continue", Title: "Continue", Color: "#2196f3"},
		},
	},
	"mad-sad-glad": {
		ID:   "mad-sad-glad",
		Name: "Mad / Sad / Glad",
		Columns: []Column{
			{Key: "mad", Title: "Mad", Color: "#f44336", IsMainColumn: true},
			{Key: "sad", Title: "Sad", Color: "#ff9800"},
			{Key: "glad", Title: "Glad", Color: "#4caf50"},
		},
	},
	"4ls": {
		ID:   "4ls",
		Name: "4Ls",
		Columns: []Column{
			{Key: "liked", Title: "Liked", Color: "#4caf50", IsMainColumn: true},
			{Key: "learned", Title: "Learned", Color: "#2196f3"},
			{Key: "lacked", Title: "Lacked", Color: "#ff9800"},
			{Key: "longed-for", Title: "Longed for", Color: "#9c27b0"},
		},
	},
}

// TemplateByID returns the template for id, falling back to the default
// layout when id is unknown or empty.
func TemplateByID(id string) RetroTemplate {
	if t, ok := Templates[id]; ok {
		return t
	}
	return Templates[DefaultTemplateID]
}
