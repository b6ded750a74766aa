package mq

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type checkedMsg struct {
	Name string `json:"name"`
}

func (m *checkedMsg) Validate() error {
	if m.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

func TestJSONDecoder(t *testing.T) {
	decode := JSONDecoder[testMsg](false)

	msg, err := decode([]byte(` {"id": 7, "extra": true} `))
	require.NoError(t, err)
	assert.Equal(t, 7, msg.ID)

	tests := []struct {
		name string
		body string
		want error
	}{
		{name: "empty", body: "", want: ErrEmptyPayload},
		{name: "whitespace", body: " \n ", want: ErrEmptyPayload},
		{name: "null", body: "null", want: ErrEmptyPayload},
		{name: "invalid json", body: `{"id":`, want: ErrMalformedPayload},
		{name: "wrong type", body: `{"id":"seven"}`, want: ErrMalformedPayload},
		{name: "trailing data", body: `{"id":1} {"id":2}`, want: ErrMalformedPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decode([]byte(tt.body))
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, KindFormatCast, KindOf(err))
		})
	}
}

func TestJSONDecoder_Strict(t *testing.T) {
	_, err := JSONDecoder[testMsg](true)([]byte(`{"id":1,"extra":true}`))
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestJSONDecoder_Validate(t *testing.T) {
	decode := JSONDecoder[checkedMsg](false)

	_, err := decode([]byte(`{"name":""}`))
	assert.ErrorIs(t, err, ErrMalformedPayload)
	assert.ErrorContains(t, err, "name is required")

	msg, err := decode([]byte(`{"name":"ok"}`))
	require.NoError(t, err)
	assert.Equal(t, "ok", msg.Name)
}
