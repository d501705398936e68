package core

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDumpType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    DumpType
		wantErr bool
	}{
		{in: "links", want: Links},
		{in: "LINKS", want: Links},
		{in: "Comments", want: Comments},
		{in: "posts", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseDumpType(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "links, comments")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDumpType_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "LINKS", Links.String())
	assert.Equal(t, "COMMENTS", Comments.String())
	assert.Equal(t, "DumpType(7)", DumpType(7).String())
}

func TestLineError_Unwrap(t *testing.T) {
	t.Parallel()

	err := &LineError{File: "RS_2011-01.bz2", Line: 29876, Err: io.ErrUnexpectedEOF}
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, `line 29876 of file "RS_2011-01.bz2": unexpected EOF`, err.Error())
}

func TestBulkError_IsBulkFailed(t *testing.T) {
	t.Parallel()

	var err error = &BulkError{Succeeded: 10, Failed: 2}
	assert.ErrorIs(t, err, ErrBulkFailed)

	var bulkErr *BulkError
	require.True(t, errors.As(err, &bulkErr))
	assert.Equal(t, int64(2), bulkErr.Failed)
	assert.Equal(t, "failed to index 2 documents (10 succeeded)", err.Error())
}
