package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeInput(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadItems(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
		want []string
	}{
		{
			name: "json array",
			file: "items.json",
			body: `[{"sku":"a"}, {"sku":"b"}, 3]`,
			want: []string{`{"sku":"a"}`, `{"sku":"b"}`, `3`},
		},
		{
			name: "empty json array",
			file: "items.json",
			body: "[]",
			want: []string{},
		},
		{
			name: "ndjson skips blank lines",
			file: "items.ndjson",
			body: "{\"sku\":\"a\"}\n\n  {\"sku\":\"b\"}  \n",
			want: []string{`{"sku":"a"}`, `{"sku":"b"}`},
		},
		{
			name: "jsonl extension",
			file: "ITEMS.JSONL",
			body: "1\n2\n",
			want: []string{`1`, `2`},
		},
		{
			name: "yaml sequence",
			file: "items.yaml",
			body: "- sku: a\n  qty: 2\n- sku: b\n",
			want: []string{`{"qty":2,"sku":"a"}`, `{"sku":"b"}`},
		},
		{
			name: "empty yaml",
			file: "items.yml",
			body: "",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := LoadItems(writeInput(t, tt.file, tt.body))
			require.NoError(t, err)

			got := make([]string, len(items))
			for i, it := range items {
				got[i] = string(it)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadItems_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr error
	}{
		{name: "unsupported extension", file: "items.csv", body: "a,b", wantErr: ErrUnsupportedFormat},
		{name: "json object", file: "items.json", body: `{"sku":"a"}`, wantErr: ErrNotAList},
		{name: "yaml mapping", file: "items.yaml", body: "sku: a\n", wantErr: ErrNotAList},
		{name: "bad ndjson line", file: "items.ndjson", body: "1\n{oops\n"},
		{name: "truncated json", file: "items.json", body: `[1, 2`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadItems(writeInput(t, tt.file, tt.body))
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadItems(filepath.Join(t.TempDir(), "nope.json"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}
