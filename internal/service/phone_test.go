package service

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{name: "plain digits", in: "77011234567", want: "+77011234567", ok: true},
		{name: "eight prefix", in: "87011234567", want: "+77011234567", ok: true},
		{name: "76 prefix", in: "76011234567", want: "+76011234567", ok: true},
		{name: "70 prefix", in: "70011234567", want: "+70011234567", ok: true},
		{name: "with separators", in: "8 (701) 123-45-67", want: "+77011234567", ok: true},
		{name: "with plus", in: "+77011234567", want: "+77011234567", ok: true},
		{name: "too short", in: "7701123456", ok: false},
		{name: "too long", in: "770112345678", ok: false},
		{name: "wrong prefix", in: "79011234567", ok: false},
		{name: "letters", in: "abc", ok: false},
		{name: "empty", in: "", ok: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizePhone(tc.in)
			if !tc.ok {
				require.ErrorIs(t, err, ErrInvalidPhone)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}
