package protos

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLabelMapRoundTrip(t *testing.T) {
	items := []LabelMapItem{
		{ID: 1, Name: "cat"},
		{ID: 3, Name: `it's a \ path`, DisplayName: "Odd"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteLabelMap(&buf, items))
	want := `item {
  id: 1
  name: 'cat'
}
item {
  id: 3
  name: 'it\'s a \\ path'
  display_name: 'Odd'
}
`
	require.Equal(t, want, buf.String())

	got, err := ParseLabelMap(buf.String())
	require.NoError(t, err)
	require.Equal(t, items, got)
}

func TestParseLabelMap(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    []LabelMapItem
		wantErr bool
	}{
		{
			name: "single quotes without colon",
			text: "item {\n  id: 1\n  name: 'person'\n}\nitem {\n  id: 2\n  name: 'bicycle'\n}\n",
			want: []LabelMapItem{{ID: 1, Name: "person"}, {ID: 2, Name: "bicycle"}},
		},
		{
			name: "double quotes and display names",
			text: `item: { name: "/m/01g317" id: 1 display_name: "person" }`,
			want: []LabelMapItem{{ID: 1, Name: "/m/01g317", DisplayName: "person"}},
		},
		{
			name: "keypoints and frequency",
			text: `item {
  name: "/m/01g317"
  id: 1
  display_name: "person"
  keypoints { id: 0 label: "nose" }
  keypoints { id: 1 label: "left_eye" }
  ancestor_ids: 3
  frequency: FREQUENT
  instance_count: 12
}
item { name: "rare_bird" id: 2 frequency: RARE }`,
			want: []LabelMapItem{{ID: 1, Name: "/m/01g317", DisplayName: "person"},
				{ID: 2, Name: "rare_bird"}},
		},
		{
			name: "empty",
			text: "",
			want: []LabelMapItem{},
		},
		{
			name:    "zero id",
			text:    "item { id: 0 name: 'bg' }",
			wantErr: true,
		},
		{
			name:    "unknown field",
			text:    "item { id: 1 label: 'x' }",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLabelMap(tt.text)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}
