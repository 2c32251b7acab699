package session

// Event types emitted by a Controller.
const (
	EventLoaded            = "form.loaded"
	EventSaved             = "form.saved"
	EventReset             = "form.reset"
	EventImported          = "form.imported"
	EventValidated         = "form.validated"
	EventItemAdded         = "item.added"
	EventItemRemoved       = "item.removed"
	EventItemsReordered    = "items.reordered"
	EventValueChanged      = "value.changed"
	EventStyleChanged      = "style.changed"
	EventPreferenceToggled = "preference.toggled"
	EventPreviewToggled    = "preview.toggled"
	EventNotice            = "notice"
)

// Event describes a change in a session.
type Event struct {
	SessionID string `json:"sessionId"`
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
}

// EventFunc receives session events. It is called while the session is
// locked and must not call back into the controller.
type EventFunc func(Event)
