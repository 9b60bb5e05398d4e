package pushnotification

// Fallback values applied to a notification before it leaves the server and
// again by the device receiver, so a partially-filled payload still renders.
const (
	DefaultTitle = "Family News"
	DefaultBody  = "New article shared!"
	DefaultURL   = "/"
)

// Payload is the wire format delivered to each device.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

func (p *Payload) ApplyDefaults() {
	if p.Title == "" {
		p.Title = DefaultTitle
	}
	if p.Body == "" {
		p.Body = DefaultBody
	}
	if p.URL == "" {
		p.URL = DefaultURL
	}
}
