package models

// SessionOptions is the body of POST /api/v1/sessions
type SessionOptions struct {
	Width     int  `json:"width" binding:"required,min=1,max=4096"`
	Height    int  `json:"height" binding:"required,min=1,max=4096"`
	Mobile    bool `json:"mobile"`
	Heatmap   bool `json:"heatmap"`
	Satellite bool `json:"satellite"`
}

// Input event types
const (
	EventPointerDown = "pointerdown"
	EventPointerMove = "pointermove"
	EventPointerUp   = "pointerup"
	EventWheel       = "wheel"
	EventKeyDown     = "keydown"
)

// InputEvent is one pointer, wheel or key event forwarded by a client
type InputEvent struct {
	Type      string  `json:"type" binding:"required,oneof=pointerdown pointermove pointerup wheel keydown"`
	PointerID int     `json:"pointerId"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	DeltaY    float64 `json:"deltaY"`
	Key       string  `json:"key"`
	Editable  bool    `json:"editable"`
}

// EventsRequest is the body of POST /api/v1/sessions/:id/events
type EventsRequest struct {
	Events []InputEvent `json:"events" binding:"required,max=256,dive"`
}

// FlyToRequest is the body of POST /api/v1/sessions/:id/fly-to
type FlyToRequest struct {
	Lat  *float64 `json:"lat" binding:"required,min=-90,max=90"`
	Lng  *float64 `json:"lng" binding:"required,min=-180,max=180"`
	Zoom *float64 `json:"zoom" binding:"required"`
}

// LayersRequest is the body of PUT /api/v1/sessions/:id/layers.
// Omitted fields are left unchanged; an empty selectedId clears the selection.
type LayersRequest struct {
	Heatmap    *bool   `json:"heatmap"`
	Satellite  *bool   `json:"satellite"`
	SelectedID *string `json:"selectedId"`
}

// Notification types
const (
	NotificationMapClicked      = "map_clicked"
	NotificationMarkerClicked   = "marker_clicked"
	NotificationViewportChanged = "viewport_changed"
)

// Notification is a map callback delivered to the client
type Notification struct {
	Type     string   `json:"type"`
	MarkerID string   `json:"markerId,omitempty"`
	Lat      *float64 `json:"lat,omitempty"`
	Lng      *float64 `json:"lng,omitempty"`
	Zoom     *float64 `json:"zoom,omitempty"`
}

// MapClicked reports a click on empty map
func MapClicked(lat, lng float64) Notification {
	return Notification{Type: NotificationMapClicked, Lat: &lat, Lng: &lng}
}

// MarkerClicked reports a click on a marker
func MarkerClicked(id string) Notification {
	return Notification{Type: NotificationMarkerClicked, MarkerID: id}
}

// ViewportChanged reports a committed viewport
func ViewportChanged(v Viewport) Notification {
	return Notification{Type: NotificationViewportChanged, Lat: &v.CenterLat, Lng: &v.CenterLng, Zoom: &v.Zoom}
}

// SessionState describes a map session
type SessionState struct {
	ID            string         `json:"id"`
	Width         int            `json:"width"`
	Height        int            `json:"height"`
	Viewport      Viewport       `json:"viewport"`
	Basemap       string         `json:"basemap"`
	Heatmap       bool           `json:"heatmap"`
	Satellite     bool           `json:"satellite"`
	SelectedID    string         `json:"selectedId,omitempty"`
	Animating     bool           `json:"animating"`
	Cadence       string         `json:"cadence"`
	NextFrameMs   int64          `json:"nextFrameMs"`
	Markers       int            `json:"markers"`
	Clusters      int            `json:"clusters"`
	Notifications []Notification `json:"notifications,omitempty"`
}
