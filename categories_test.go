package detconv

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCategoriesAppendIsIdempotent(t *testing.T) {
	c := NewCategories()
	c.Append("cat", "animal", 0)
	id, err := c.ResolveID("cat", "animal")
	require.NoError(t, err)

	c.Append("cat", "animal", 0)
	c.Append("cat", "animal", 7)
	require.Equal(t, 1, c.Len())

	again, err := c.ResolveID("cat", "animal")
	require.NoError(t, err)
	require.Equal(t, id, again)
}

func TestCategoriesIDs(t *testing.T) {
	c := NewCategories()
	c.Append("person", "", 0)
	c.Append("bicycle", "", 0)
	c.Append("car", "vehicle", 10)
	c.Append("person", "human", 0) // Same name, different super-category.

	tests := []struct {
		name, super string
		want        int
	}{
		{"person", "", 1},
		{"person", DefaultSupercategory, 1},
		{"bicycle", "", 2},
		{"car", "vehicle", 10},
		{"person", "human", 4},
	}
	for _, tt := range tests {
		id, err := c.ResolveID(tt.name, tt.super)
		require.NoError(t, err, tt.name)
		require.Equal(t, tt.want, id, tt.name)
	}

	require.Equal(t, 4, c.Len())
	require.Equal(t, 3, c.NumSupercategories())
	require.Equal(t, 10, c.MaxID())

	name, super, err := c.ResolveName(10)
	require.NoError(t, err)
	require.Equal(t, "car", name)
	require.Equal(t, "vehicle", super)

	var names []string
	for _, cat := range c.All() {
		names = append(names, cat.Name)
	}
	require.Equal(t, []string{"person", "bicycle", "car", "person"}, names)
}

func TestCategoriesAutomaticIDsSkipSuppliedOnes(t *testing.T) {
	tests := []struct {
		name    string
		entries []Category // Appended in order, ID 0 asks for an automatic one.
		want    []int
		wantMax int
	}{
		{
			name:    "supplied id ahead of the sequence",
			entries: []Category{{Name: "a", ID: 2}, {Name: "b"}},
			want:    []int{2, 3},
			wantMax: 3,
		},
		{
			name:    "gap is filled",
			entries: []Category{{Name: "a", ID: 3}, {Name: "b"}, {Name: "c"}, {Name: "d"}},
			want:    []int{3, 2, 4, 5},
			wantMax: 5,
		},
		{
			name:    "run of supplied ids",
			entries: []Category{{Name: "a", ID: 2}, {Name: "b", ID: 3}, {Name: "c", ID: 4}, {Name: "d"}},
			want:    []int{2, 3, 4, 5},
			wantMax: 5,
		},
		{
			name:    "sparse ids",
			entries: []Category{{Name: "a", ID: 90}, {Name: "b"}, {Name: "c", ID: 1}},
			want:    []int{90, 2, 1},
			wantMax: 90,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCategories()
			for _, e := range tt.entries {
				c.Append(e.Name, "", e.ID)
			}

			var got []int
			for _, e := range tt.entries {
				id, err := c.ResolveID(e.Name, "")
				require.NoError(t, err)
				got = append(got, id)

				name, _, err := c.ResolveName(id)
				require.NoError(t, err)
				require.Equal(t, e.Name, name)
			}
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.wantMax, c.MaxID())
		})
	}
}

func TestCategoriesLookupErrors(t *testing.T) {
	c := NewCategories()
	c.Append("a", "", 1)
	c.Append("b", "", 1) // Clashing numeric IDs from a corrupt source.

	_, err := c.ResolveID("missing", "")
	var notFound *NotFoundError
	require.True(t, errors.As(err, &notFound))

	_, _, err = c.ResolveName(42)
	require.True(t, errors.As(err, &notFound))

	_, _, err = c.ResolveName(1)
	var ambiguous *AmbiguousError
	require.True(t, errors.As(err, &ambiguous))
	require.Equal(t, 2, ambiguous.Count)
}

func TestEmptyCategories(t *testing.T) {
	c := NewCategories()
	require.Equal(t, 0, c.Len())
	require.Equal(t, 0, c.MaxID())
	require.Equal(t, 0, c.NumSupercategories())
}
