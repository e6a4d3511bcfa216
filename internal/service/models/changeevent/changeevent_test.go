package changeevent

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/corray333/backend-labs/pharmacy/internal/service/models/order"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttributeValueUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    AttributeValue
		wantErr bool
	}{
		{name: "string", input: `{"S":"Maria"}`, want: String("Maria")},
		{name: "number", input: `{"N":"20.5"}`, want: AttributeValue{Tag: TagNumber, S: "20.5"}},
		{name: "bool", input: `{"BOOL":true}`, want: Bool(true)},
		{name: "list", input: `{"L":[{"S":"Dipirona"}]}`, want: List(String("Dipirona"))},
		{name: "empty list", input: `{"L":[]}`, want: List()},
		{name: "string set", input: `{"SS":["a","b"]}`, want: StringSet("a", "b")},
		{name: "null", input: `{"NULL":true}`, want: Null()},
		{name: "unknown tag", input: `{"M":{}}`, wantErr: true},
		{name: "binary tag", input: `{"B":"AAE="}`, wantErr: true},
		{name: "two tags", input: `{"S":"a","N":"1"}`, wantErr: true},
		{name: "no tag", input: `{}`, wantErr: true},
		{name: "not an object", input: `"Maria"`, wantErr: true},
		{name: "number not numeric", input: `{"N":"abc"}`, wantErr: true},
		{name: "number as json number", input: `{"N":20}`, wantErr: true},
		{name: "number NaN", input: `{"N":"NaN"}`, wantErr: true},
		{name: "number Inf", input: `{"N":"Inf"}`, wantErr: true},
		{name: "number +Infinity", input: `{"N":"+Infinity"}`, wantErr: true},
		{name: "number hex", input: `{"N":"0x1p-2"}`, wantErr: true},
		{name: "number overflow", input: `{"N":"1e999"}`, wantErr: true},
		{name: "number exponent", input: `{"N":"-1.5e3"}`, want: AttributeValue{Tag: TagNumber, S: "-1.5e3"}},
		{name: "bool as string", input: `{"BOOL":"true"}`, wantErr: true},
		{name: "null bool payload", input: `{"BOOL":null}`, wantErr: true},
		{name: "nested unknown tag", input: `{"L":[{"X":"1"}]}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got AttributeValue
			err := json.Unmarshal([]byte(tt.input), &got)
			if tt.wantErr {
				assert.Error(t, err)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAttributeValueMarshal(t *testing.T) {
	data, err := json.Marshal(Image{
		"cliente": String("Maria"),
		"total":   Number(20),
		"items":   List(String("Dipirona")),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"cliente":{"S":"Maria"},"total":{"N":"20"},"items":{"L":[{"S":"Dipirona"}]}}`, string(data))

	_, err = json.Marshal(AttributeValue{Tag: "M"})
	assert.Error(t, err)
}

func TestParseNumber(t *testing.T) {
	valid := map[string]float64{"20": 20, "20.5": 20.5, "-3": -3, ".5": 0.5, "1e2": 100, "+7": 7}
	for in, want := range valid {
		got, err := ParseNumber(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "NaN", "nan", "Inf", "-Infinity", "0x10", "1_000", "abc", "1e999"} {
		_, err := ParseNumber(in)
		assert.Error(t, err, in)
	}
}

func TestDecodeOrderRejectsNonFiniteTotal(t *testing.T) {
	_, err := DecodeOrder(Image{"total": {Tag: TagNumber, S: "NaN"}})
	assert.Error(t, err)
}

func TestParseKind(t *testing.T) {
	assert.Equal(t, KindInserted, ParseKind("INSERT"))
	assert.Equal(t, KindModified, ParseKind("MODIFY"))
	assert.Equal(t, KindRemoved, ParseKind("REMOVE"))
	assert.Equal(t, KindOther, ParseKind("TRUNCATE"))
	assert.Equal(t, KindOther, ParseKind(""))
	assert.Equal(t, "MODIFY", KindModified.EventName())
	assert.Equal(t, "inserted", KindInserted.String())
}

func TestDecodeOrder(t *testing.T) {
	t.Run("full image", func(t *testing.T) {
		o, err := DecodeOrder(Image{
			"id":           String("o-1"),
			"cliente":      String("Maria"),
			"medicamentos": List(String("Dipirona"), String("Paracetamol")),
			"total":        Number(20),
			"entregue":     Bool(true),
			"recebido":     Bool(false),
			"created_at":   String("2024-01-02T03:04:05Z"),
		})
		require.NoError(t, err)
		assert.Equal(t, "o-1", o.ID)
		assert.Equal(t, "Maria", o.Cliente)
		assert.Equal(t, []string{"Dipirona", "Paracetamol"}, o.Medicamentos)
		assert.Equal(t, 20.0, o.Total)
		assert.True(t, o.Entregue)
		assert.False(t, o.Recebido)
		assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), o.CreatedAt)
		assert.True(t, o.UpdatedAt.IsZero())
	})

	t.Run("string set medicamentos", func(t *testing.T) {
		o, err := DecodeOrder(Image{"medicamentos": StringSet("Dipirona")})
		require.NoError(t, err)
		assert.Equal(t, []string{"Dipirona"}, o.Medicamentos)
	})

	t.Run("missing and null attributes stay zero", func(t *testing.T) {
		o, err := DecodeOrder(Image{"cliente": Null(), "unknown": Number(1)})
		require.NoError(t, err)
		assert.Equal(t, order.Order{}, o)
	})

	t.Run("wrong tag fails", func(t *testing.T) {
		_, err := DecodeOrder(Image{"entregue": String("true")})
		assert.Error(t, err)

		_, err = DecodeOrder(Image{"total": String("20")})
		assert.Error(t, err)

		_, err = DecodeOrder(Image{"medicamentos": List(Number(1))})
		assert.Error(t, err)
	})

	t.Run("malformed timestamp fails", func(t *testing.T) {
		_, err := DecodeOrder(Image{"created_at": String("yesterday")})
		assert.Error(t, err)
	})
}

func TestNewRecordEvent(t *testing.T) {
	now := time.Date(2024, 5, 6, 7, 8, 9, 123456789, time.UTC)
	before := order.Order{
		ID:           "o-1",
		Medicamentos: []string{"Dipirona"},
		Cliente:      "Maria",
		Total:        20,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	after := before
	after.Entregue = true
	after.UpdatedAt = now.Add(time.Minute)

	rec := NewRecord(KindModified, &before, &after)
	assert.NotEmpty(t, rec.EventID)
	assert.Equal(t, EventModify, rec.EventName)

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var decoded Record
	require.NoError(t, json.Unmarshal(data, &decoded))

	ev, err := decoded.Event()
	require.NoError(t, err)
	assert.Equal(t, KindModified, ev.Kind)
	require.NotNil(t, ev.Before)
	require.NotNil(t, ev.After)
	assert.Equal(t, before, *ev.Before)
	assert.Equal(t, after, *ev.After)
}

func TestRecordEventWithoutOldImage(t *testing.T) {
	raw := `{"eventName":"INSERT","dynamodb":{"NewImage":{"id":{"S":"o-2"},"cliente":{"S":"Joao"}}}}`

	var rec Record
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))

	ev, err := rec.Event()
	require.NoError(t, err)
	assert.Equal(t, KindInserted, ev.Kind)
	assert.Nil(t, ev.Before)
	require.NotNil(t, ev.After)
	assert.Equal(t, "Joao", ev.After.Cliente)
}

func TestBatchKeepsRecordsRaw(t *testing.T) {
	var batch Batch
	err := json.Unmarshal([]byte(`{"Records":[{"eventName":"INSERT"},{"eventName":"MODIFY","dynamodb":{"NewImage":{"x":{"Q":1}}}}]}`), &batch)
	require.NoError(t, err)
	assert.Len(t, batch.Records, 2)
}
