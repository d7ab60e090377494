package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFilter(t *testing.T) {
	tests := []struct {
		name    string
		filter  string
		want    string
		wantErr error
	}{
		{"empty", "   ", "", nil},
		{"simple", " timestamp < '2014-11-25' ", "timestamp < '2014-11-25'", nil},
		{"trailing semicolon", "seen = 0;", "seen = 0", nil},
		{"backticks", "`seen` = 0 AND `account` IN (1, 2)", "`seen` = 0 AND `account` IN (1, 2)", nil},
		{"semicolon in identifier", "`a;b` = 1", "`a;b` = 1", nil},
		{"escaped backtick", "`a``;b` = 1;", "`a``;b` = 1", nil},
		{"backtick in string", "note = '`;' AND seen = 0", "note = '`;' AND seen = 0", nil},
		{"stacked after identifier", "`a;b` = 1; DROP TABLE comments", "", ErrMultiStatement},
		{"stacked statement", "seen = 0; DROP TABLE comments", "", ErrMultiStatement},
		{"only semicolons", ";;", "", ErrEmptyFilter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeFilter(tt.filter)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, ErrConfiguration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
