package domain

import "github.com/google/uuid"

// Action kinds understood by the session.
const (
	KindRequestModel   = "requestModel"
	KindSetModel       = "setModel"
	KindUpdateModel    = "updateModel"
	KindServerStatus   = "serverStatus"
	KindLayout         = "layout"
	KindRequestBounds  = "requestBounds"
	KindComputedBounds = "computedBounds"
	KindRejectRequest  = "rejectRequest"
)

// Action is a tagged message exchanged between the session and the remote client.
type Action interface {
	Kind() string
}

// RequestAction expects exactly one ResponseAction carrying the same identifier.
type RequestAction interface {
	Action
	RequestIdentifier() string
}

// ResponseAction answers a RequestAction.
type ResponseAction interface {
	Action
	ResponseIdentifier() string
}

// ActionMessage is the unit carried over the channel: an action addressed to one client.
type ActionMessage struct {
	ClientID string `json:"clientId"`
	Action   Action `json:"action"`
}

// NewRequestID returns a fresh identifier for a RequestAction.
func NewRequestID() string {
	return uuid.NewString()
}

// OptionDiagramType is the requestModel option naming the diagram to open.
const OptionDiagramType = "diagramType"

// DefaultDiagramType is used by model sources when the client names no diagram.
const DefaultDiagramType = "default"

// RequestModelAction is sent by the client when a diagram is opened.
// It is not correlated: the session answers with a SetModelAction echoing RequestID.
type RequestModelAction struct {
	Options   map[string]string `json:"options,omitempty"`
	RequestID string            `json:"requestId,omitempty"`
}

func (a *RequestModelAction) Kind() string { return KindRequestModel }

// SetModelAction replaces the client's model without animation.
type SetModelAction struct {
	NewRoot    *ModelRoot `json:"newRoot"`
	ResponseID string     `json:"responseId,omitempty"`
}

func (a *SetModelAction) Kind() string { return KindSetModel }

// UpdateModelAction replaces the client's model, animating the transition when Animate is set.
type UpdateModelAction struct {
	NewRoot *ModelRoot `json:"newRoot"`
	Animate bool       `json:"animate"`
}

func (a *UpdateModelAction) Kind() string { return KindUpdateModel }

// ServerStatusAction updates the client's status popup.
type ServerStatusAction struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message,omitempty"`
}

func (a *ServerStatusAction) Kind() string { return KindServerStatus }

// LayoutAction asks the server to lay out the current model once.
type LayoutAction struct {
	LayoutType string   `json:"layoutType,omitempty"`
	ElementIDs []string `json:"elementIds,omitempty"`
}

func (a *LayoutAction) Kind() string { return KindLayout }

// RequestBoundsAction asks the client to render NewRoot invisibly and report element bounds.
type RequestBoundsAction struct {
	RequestID string     `json:"requestId"`
	NewRoot   *ModelRoot `json:"newRoot"`
}

func (a *RequestBoundsAction) Kind() string              { return KindRequestBounds }
func (a *RequestBoundsAction) RequestIdentifier() string { return a.RequestID }

// ElementAndBounds carries the client-computed bounds of one element.
type ElementAndBounds struct {
	ElementID string `json:"elementId"`
	NewBounds Bounds `json:"newBounds"`
}

// ComputedBoundsAction answers a RequestBoundsAction.
type ComputedBoundsAction struct {
	ResponseID string             `json:"responseId"`
	Revision   int64              `json:"revision,omitempty"`
	Bounds     []ElementAndBounds `json:"bounds,omitempty"`
}

func (a *ComputedBoundsAction) Kind() string               { return KindComputedBounds }
func (a *ComputedBoundsAction) ResponseIdentifier() string { return a.ResponseID }

// RejectAction tells the requester that the request could not be served.
type RejectAction struct {
	ResponseID string `json:"responseId"`
	Message    string `json:"message"`
	Detail     any    `json:"detail,omitempty"`
}

func (a *RejectAction) Kind() string               { return KindRejectRequest }
func (a *RejectAction) ResponseIdentifier() string { return a.ResponseID }

// GenericAction holds an action whose kind has no dedicated type.
// Extension handlers decode Payload into their own types.
type GenericAction struct {
	KindName string         `json:"-"`
	Payload  map[string]any `json:"-"`
}

func (a *GenericAction) Kind() string { return a.KindName }

// ResponseIdentifier makes a GenericAction correlatable when the client
// answers a custom request; it is empty for plain actions.
func (a *GenericAction) ResponseIdentifier() string {
	id, _ := a.Payload["responseId"].(string)
	return id
}
