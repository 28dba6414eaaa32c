package script_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/pgscripts/internal/fingerprint"
	"github.com/aqasim81/pgscripts/internal/script"
)

func TestParseName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{name: "zero padded prefix", input: "001__init.sql", want: 1},
		{name: "unpadded prefix", input: "42__add_index.sql", want: 42},
		{name: "timestamp prefix", input: "20240101120000__create_posts.sql", want: 20240101120000},
		{name: "only first separator splits", input: "7__a__b.sql", want: 7},
		{name: "zero prefix", input: "000__create_pg_scripts.sql", want: 0},
		{name: "no prefix", input: "init.sql", wantErr: true},
		{name: "empty prefix", input: "__init.sql", wantErr: true},
		{name: "single underscore", input: "001_init.sql", wantErr: true},
		{name: "alphabetic prefix", input: "V001__init.sql", wantErr: true},
		{name: "signed prefix", input: "+1__init.sql", wantErr: true},
		{name: "overflowing prefix", input: "99999999999999999999__big.sql", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := script.ParseName(tt.input)

			if tt.wantErr {
				require.ErrorIs(t, err, script.ErrMalformedScriptName)
				assert.Contains(t, err.Error(), tt.input)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_populatesFields(t *testing.T) {
	t.Parallel()

	body := []byte("CREATE TABLE t (id INT);\n")

	sc, err := script.New("001__init.sql", body)

	require.NoError(t, err)
	assert.Equal(t, int64(1), sc.SequenceID)
	assert.Equal(t, "001__init.sql", sc.Name)
	assert.Equal(t, body, sc.Body)
	assert.Equal(t, fingerprint.Sum(body), sc.Hash)
}

func TestNew_malformedName_returnsError(t *testing.T) {
	t.Parallel()

	_, err := script.New("init.sql", []byte("SELECT 1;"))

	require.ErrorIs(t, err, script.ErrMalformedScriptName)
}

func TestIsScript(t *testing.T) {
	t.Parallel()

	assert.True(t, script.IsScript("001__init.sql"))
	assert.False(t, script.IsScript("001__init.sql.bak"))
	assert.False(t, script.IsScript("README.md"))
}
