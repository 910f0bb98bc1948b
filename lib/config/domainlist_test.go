package config

import (
	"encoding/json"
	"errors"
	"slices"
	"testing"
)

func TestDomainListUnmarshalJSON(t *testing.T) {
	for _, tt := range []struct {
		name  string
		input string
		want  DomainList
		err   error
	}{
		{
			name:  "single string",
			input: `"example.com"`,
			want:  DomainList{"example.com"},
		},
		{
			name:  "list",
			input: `["example.com", "auth.example.com"]`,
			want:  DomainList{"example.com", "auth.example.com"},
		},
		{
			name:  "number",
			input: `42`,
			err:   ErrDomainListMustBeStringOrList,
		},
		{
			name:  "object",
			input: `{"domain": "example.com"}`,
			err:   ErrDomainListMustBeStringOrList,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			var got DomainList
			if err := json.Unmarshal([]byte(tt.input), &got); !errors.Is(err, tt.err) {
				t.Logf("want: %v", tt.err)
				t.Logf("got:  %v", err)
				t.Fatal("wrong error")
			}

			if tt.err == nil && !slices.Equal(got, tt.want) {
				t.Errorf("wanted %v, got: %v", tt.want, got)
			}
		})
	}
}

func TestDomainListValid(t *testing.T) {
	for _, tt := range []struct {
		name  string
		input DomainList
		err   error
	}{
		{
			name:  "one domain",
			input: DomainList{"example.com"},
		},
		{
			name:  "empty",
			input: DomainList{},
			err:   ErrDomainListEmpty,
		},
		{
			name:  "blank entry",
			input: DomainList{"example.com", " "},
			err:   ErrDomainInvalid,
		},
		{
			name:  "url instead of domain",
			input: DomainList{"https://example.com/"},
			err:   ErrDomainInvalid,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.input.Valid(); !errors.Is(err, tt.err) {
				t.Logf("want: %v", tt.err)
				t.Logf("got:  %v", err)
				t.Error("invalid error returned")
			}
		})
	}
}
