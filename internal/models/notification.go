package models

// Defaults applied to every optional notification field.
const (
	DefaultTitle = "Alien Food"
	DefaultBody  = "Tienes una nueva notificación"
	DefaultIcon  = "/icons/icon-192x192.png"
	DefaultBadge = "/icons/icon-72x72.png"
	DefaultTag   = "alien-food-notification"
	DefaultURL   = "/"
)

// NotificationPayload is what the push service delivers to the background worker.
// Every field is optional; producers may use either Body or Message.
type NotificationPayload struct {
	Title   string                 `json:"title,omitempty"`
	Body    string                 `json:"body,omitempty"`
	Message string                 `json:"message,omitempty"`
	Icon    string                 `json:"icon,omitempty"`
	Badge   string                 `json:"badge,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Tag     string                 `json:"tag,omitempty"`
}

// Notification is a rendered system notification.
type Notification struct {
	Title              string
	Body               string
	Icon               string
	Badge              string
	Tag                string
	Data               map[string]interface{}
	RequireInteraction bool
}

// URL returns data.url when it is a non-empty string.
func (n Notification) URL() string {
	if n.Data == nil {
		return ""
	}
	if u, ok := n.Data["url"].(string); ok {
		return u
	}
	return ""
}
