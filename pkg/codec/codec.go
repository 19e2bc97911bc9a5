package codec

import (
	"encoding/json"
	"fmt"
	"maps"
	"sync"

	"github.com/aretw0/diagram/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// kindField names the discriminator inside the action object.
const kindField = "kind"

// Factory returns a new, empty action of one kind.
type Factory func() domain.Action

// Codec encodes and decodes action messages. Safe for concurrent use.
type Codec struct {
	mu    sync.RWMutex
	kinds map[string]Factory
}

// New returns a codec that knows every built-in action kind.
func New() *Codec {
	c := &Codec{kinds: make(map[string]Factory)}
	c.Register(domain.KindRequestModel, func() domain.Action { return &domain.RequestModelAction{} })
	c.Register(domain.KindSetModel, func() domain.Action { return &domain.SetModelAction{} })
	c.Register(domain.KindUpdateModel, func() domain.Action { return &domain.UpdateModelAction{} })
	c.Register(domain.KindServerStatus, func() domain.Action { return &domain.ServerStatusAction{} })
	c.Register(domain.KindLayout, func() domain.Action { return &domain.LayoutAction{} })
	c.Register(domain.KindRequestBounds, func() domain.Action { return &domain.RequestBoundsAction{} })
	c.Register(domain.KindComputedBounds, func() domain.Action { return &domain.ComputedBoundsAction{} })
	c.Register(domain.KindRejectRequest, func() domain.Action { return &domain.RejectAction{} })
	return c
}

// Register maps a kind to its concrete type, replacing any previous mapping.
func (c *Codec) Register(kind string, factory Factory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kinds[kind] = factory
}

// Known reports whether kind has a registered type.
func (c *Codec) Known(kind string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.kinds[kind]
	return ok
}

type envelope struct {
	ClientID string         `json:"clientId"`
	Action   map[string]any `json:"action"`
}

// Encode returns the wire form of msg.
func (c *Codec) Encode(msg domain.ActionMessage) ([]byte, error) {
	if msg.Action == nil {
		return nil, domain.ErrNilAction
	}

	fields, err := c.fields(msg.Action)
	if err != nil {
		return nil, err
	}
	fields[kindField] = msg.Action.Kind()

	return json.Marshal(envelope{ClientID: msg.ClientID, Action: fields})
}

// Decode parses the wire form of one message.
func (c *Codec) Decode(data []byte) (domain.ActionMessage, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return domain.ActionMessage{}, fmt.Errorf("malformed message: %w", err)
	}
	if env.Action == nil {
		return domain.ActionMessage{}, ErrMissingAction
	}

	action, err := c.DecodeAction(env.Action)
	if err != nil {
		return domain.ActionMessage{}, err
	}
	return domain.ActionMessage{ClientID: env.ClientID, Action: action}, nil
}

// DecodeAction builds an action from its generic map form.
func (c *Codec) DecodeAction(fields map[string]any) (domain.Action, error) {
	kind, _ := fields[kindField].(string)
	if kind == "" {
		return nil, ErrMissingKind
	}

	c.mu.RLock()
	factory, ok := c.kinds[kind]
	c.mu.RUnlock()

	if !ok {
		payload := maps.Clone(fields)
		delete(payload, kindField)
		return &domain.GenericAction{KindName: kind, Payload: payload}, nil
	}

	action := factory()
	if err := DecodePayload(fields, action); err != nil {
		return nil, &DecodeError{Kind: kind, Err: err}
	}
	return action, nil
}

// fields flattens an action into a map keyed by its JSON field names.
func (c *Codec) fields(action domain.Action) (map[string]any, error) {
	if generic, ok := action.(*domain.GenericAction); ok {
		fields := maps.Clone(generic.Payload)
		if fields == nil {
			fields = make(map[string]any)
		}
		return fields, nil
	}

	raw, err := json.Marshal(action)
	if err != nil {
		return nil, fmt.Errorf("encoding %q action: %w", action.Kind(), err)
	}
	fields := make(map[string]any)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("encoding %q action: %w", action.Kind(), err)
	}
	return fields, nil
}

// DecodePayload decodes a generic map, such as GenericAction.Payload, into target
// using target's json field names. Extension handlers use it to read their own kinds.
func DecodePayload(payload map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Squash:           true,
		WeaklyTypedInput: true,
		Result:           target,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(payload)
}

// Default is the codec used by the package-level functions.
var Default = New()

// Encode encodes msg with the Default codec.
func Encode(msg domain.ActionMessage) ([]byte, error) { return Default.Encode(msg) }

// Decode decodes data with the Default codec.
func Decode(data []byte) (domain.ActionMessage, error) { return Default.Decode(data) }
