package changeevent

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/corray333/backend-labs/pharmacy/internal/service/models/order"
	"github.com/google/uuid"
)

// Kind is the type of mutation observed on the order store.
type Kind int

const (
	KindOther Kind = iota
	KindInserted
	KindModified
	KindRemoved
)

// Event names used on the wire.
const (
	EventInsert = "INSERT"
	EventModify = "MODIFY"
	EventRemove = "REMOVE"
)

// ParseKind maps a wire event name to a Kind. Unknown names are KindOther.
func ParseKind(eventName string) Kind {
	switch eventName {
	case EventInsert:
		return KindInserted
	case EventModify:
		return KindModified
	case EventRemove:
		return KindRemoved
	default:
		return KindOther
	}
}

func (k Kind) String() string {
	switch k {
	case KindInserted:
		return "inserted"
	case KindModified:
		return "modified"
	case KindRemoved:
		return "removed"
	default:
		return "other"
	}
}

// EventName is the wire name of k.
func (k Kind) EventName() string {
	switch k {
	case KindInserted:
		return EventInsert
	case KindModified:
		return EventModify
	case KindRemoved:
		return EventRemove
	default:
		return ""
	}
}

// ChangeEvent is one decoded mutation of an order.
type ChangeEvent struct {
	Kind   Kind
	Before *order.Order
	After  *order.Order
}

// Batch is the envelope of one stream delivery. Records stay raw so that a
// malformed record can be rejected without failing its neighbours.
type Batch struct {
	Records []json.RawMessage `json:"Records"`
}

// Record is one stream record as produced by the order store.
type Record struct {
	EventID   string     `json:"eventID,omitempty"`
	EventName string     `json:"eventName"`
	DynamoDB  StreamData `json:"dynamodb"`
}

// StreamData holds the key and the snapshots of a record.
type StreamData struct {
	Keys           Image  `json:"Keys,omitempty"`
	NewImage       Image  `json:"NewImage,omitempty"`
	OldImage       Image  `json:"OldImage,omitempty"`
	SequenceNumber string `json:"SequenceNumber,omitempty"`
}

// NewRecord builds the stream record describing a mutation from before to after.
func NewRecord(kind Kind, before, after *order.Order) Record {
	rec := Record{
		EventID:   uuid.NewString(),
		EventName: kind.EventName(),
	}
	if after != nil {
		rec.DynamoDB.Keys = Image{"id": String(after.ID)}
		rec.DynamoDB.NewImage = EncodeOrder(*after)
	}
	if before != nil {
		rec.DynamoDB.Keys = Image{"id": String(before.ID)}
		rec.DynamoDB.OldImage = EncodeOrder(*before)
	}

	return rec
}

// Kind returns the decoded event kind of the record.
func (r Record) Kind() Kind {
	return ParseKind(r.EventName)
}

// Event decodes the record images into a ChangeEvent.
// The old image is only decoded when present.
func (r Record) Event() (ChangeEvent, error) {
	ev := ChangeEvent{Kind: r.Kind()}

	if len(r.DynamoDB.NewImage) > 0 {
		after, err := DecodeOrder(r.DynamoDB.NewImage)
		if err != nil {
			return ChangeEvent{}, fmt.Errorf("failed to decode new image: %w", err)
		}
		ev.After = &after
	}

	if len(r.DynamoDB.OldImage) > 0 {
		before, err := DecodeOrder(r.DynamoDB.OldImage)
		if err != nil {
			return ChangeEvent{}, fmt.Errorf("failed to decode old image: %w", err)
		}
		ev.Before = &before
	}

	return ev, nil
}

// EncodeOrder converts an order into its tagged image.
func EncodeOrder(o order.Order) Image {
	items := make([]AttributeValue, len(o.Medicamentos))
	for i, m := range o.Medicamentos {
		items[i] = String(m)
	}

	img := Image{
		"id":           String(o.ID),
		"medicamentos": List(items...),
		"cliente":      String(o.Cliente),
		"total":        Number(o.Total),
		"entregue":     Bool(o.Entregue),
		"recebido":     Bool(o.Recebido),
	}
	if !o.CreatedAt.IsZero() {
		img["created_at"] = String(o.CreatedAt.UTC().Format(time.RFC3339Nano))
	}
	if !o.UpdatedAt.IsZero() {
		img["updated_at"] = String(o.UpdatedAt.UTC().Format(time.RFC3339Nano))
	}

	return img
}

// DecodeOrder converts a tagged image into an order snapshot.
// Missing attributes keep their zero value; attributes carrying the wrong tag fail.
// Attributes unknown to the order are ignored.
func DecodeOrder(img Image) (order.Order, error) {
	var (
		o   order.Order
		err error
	)

	if o.ID, err = stringAttr(img, "id"); err != nil {
		return order.Order{}, err
	}
	if o.Cliente, err = stringAttr(img, "cliente"); err != nil {
		return order.Order{}, err
	}
	if o.Medicamentos, err = stringsAttr(img, "medicamentos"); err != nil {
		return order.Order{}, err
	}
	if o.Total, err = numberAttr(img, "total"); err != nil {
		return order.Order{}, err
	}
	if o.Entregue, err = boolAttr(img, "entregue"); err != nil {
		return order.Order{}, err
	}
	if o.Recebido, err = boolAttr(img, "recebido"); err != nil {
		return order.Order{}, err
	}
	if o.CreatedAt, err = timeAttr(img, "created_at"); err != nil {
		return order.Order{}, err
	}
	if o.UpdatedAt, err = timeAttr(img, "updated_at"); err != nil {
		return order.Order{}, err
	}

	return o, nil
}

// lookup returns the attribute under name, reporting false for absent or NULL values.
func lookup(img Image, name string) (AttributeValue, bool) {
	v, ok := img[name]
	if !ok || v.Tag == TagNull {
		return AttributeValue{}, false
	}

	return v, true
}

func tagError(name string, want []Tag, got Tag) error {
	return fmt.Errorf("attribute %q: expected tag %v, got %q", name, want, got)
}

func stringAttr(img Image, name string) (string, error) {
	v, ok := lookup(img, name)
	if !ok {
		return "", nil
	}
	if v.Tag != TagString {
		return "", tagError(name, []Tag{TagString}, v.Tag)
	}

	return v.S, nil
}

func numberAttr(img Image, name string) (float64, error) {
	v, ok := lookup(img, name)
	if !ok {
		return 0, nil
	}
	if v.Tag != TagNumber {
		return 0, tagError(name, []Tag{TagNumber}, v.Tag)
	}

	f, err := ParseNumber(v.S)
	if err != nil {
		return 0, fmt.Errorf("attribute %q: %w", name, err)
	}

	return f, nil
}

func boolAttr(img Image, name string) (bool, error) {
	v, ok := lookup(img, name)
	if !ok {
		return false, nil
	}
	if v.Tag != TagBool {
		return false, tagError(name, []Tag{TagBool}, v.Tag)
	}

	return v.BOOL, nil
}

func stringsAttr(img Image, name string) ([]string, error) {
	v, ok := lookup(img, name)
	if !ok {
		return nil, nil
	}

	switch v.Tag {
	case TagStringSet:
		return append([]string{}, v.SS...), nil
	case TagList:
		out := make([]string, 0, len(v.L))
		for i, item := range v.L {
			if item.Tag != TagString {
				return nil, fmt.Errorf("attribute %q item %d: expected tag S, got %q", name, i, item.Tag)
			}
			out = append(out, item.S)
		}

		return out, nil
	default:
		return nil, tagError(name, []Tag{TagList, TagStringSet}, v.Tag)
	}
}

func timeAttr(img Image, name string) (time.Time, error) {
	s, err := stringAttr(img, name)
	if err != nil || s == "" {
		return time.Time{}, err
	}

	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("attribute %q: malformed timestamp: %w", name, err)
	}

	return t, nil
}
