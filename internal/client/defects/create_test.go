package defects

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sitebatch/maintenance/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDraft() Draft {
	return Draft{
		Asset:       "BX22",
		Title:       "Leak",
		Description: "Oil leak at pump",
		Priority:    "1",
		Category:    "Quality",
	}
}

func TestDraftValidate_Order(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*Draft)
		field string
		msg   string
	}{
		{"everything missing", func(d *Draft) { *d = Draft{} }, "asset", "Please select an asset."},
		{"title blank", func(d *Draft) { d.Title = "  "; d.Description = "" }, "title", "Please enter a title."},
		{"description blank", func(d *Draft) { d.Description = "\t"; d.Priority = "" }, "description", "Please enter a description."},
		{"priority missing", func(d *Draft) { d.Priority = ""; d.Category = "" }, "priority", "Please select a priority."},
		{"priority out of range", func(d *Draft) { d.Priority = "9" }, "priority", "Please select a priority."},
		{"category missing", func(d *Draft) { d.Category = "" }, "category", "Please select a category."},
		{"category unknown", func(d *Draft) { d.Category = "Cosmetic" }, "category", "Please select a category."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDraft()
			tt.edit(&d)
			err := d.Validate()
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.Equal(t, tt.msg, ve.Message)
		})
	}

	d := validDraft()
	assert.NoError(t, d.Validate())
}

func TestSubmit_InvalidSendsNothing(t *testing.T) {
	rows := newFakeRows()
	c := NewCreator(rows, newFakeObjects(), tech, nil)

	_, err := c.Submit(context.Background(), Draft{Title: "Leak"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Empty(t, rows.callLog())
}

func TestSubmit_NoPhotos(t *testing.T) {
	rows := newFakeRows()
	c := NewCreator(rows, newFakeObjects(), tech, nil)

	d, err := c.Submit(context.Background(), validDraft())
	require.NoError(t, err)

	stored := rows.defects[d.ID]
	assert.Equal(t, "BX22", stored.Asset)
	assert.Equal(t, models.StatusReported, stored.Status)
	assert.False(t, stored.Locked)
	assert.Equal(t, 1, stored.Priority)
	assert.Equal(t, models.CategoryQuality, stored.Category)
	assert.Equal(t, "tech@example.com", stored.SubmittedBy)
	assert.Equal(t, "u1", stored.CreatedBy)
	assert.Nil(t, stored.PhotoURLs)

	assert.Equal(t, []string{"insert defects"}, rows.callLog())
	assert.Empty(t, rows.activity, "creation writes no activity entry")
}

func TestSubmit_UnknownSubmitter(t *testing.T) {
	rows := newFakeRows()
	c := NewCreator(rows, newFakeObjects(), fakeUsers{}, nil)

	d, err := c.Submit(context.Background(), validDraft())
	require.NoError(t, err)
	assert.Equal(t, "Unknown", rows.defects[d.ID].SubmittedBy)
	assert.Empty(t, rows.defects[d.ID].CreatedBy)
}

func TestSubmit_WithPhotos(t *testing.T) {
	rows := newFakeRows()
	objects := newFakeObjects()
	objects.fail[0] = true
	c := NewCreator(rows, objects, tech, nil)
	c.now = func() time.Time { return time.UnixMilli(42) }

	draft := validDraft()
	draft.AddPhoto(Photo{Name: "one.jpg", Data: []byte("1")})
	draft.AddPhoto(Photo{Name: "two.jpg", Data: []byte("2")})
	draft.AddPhoto(Photo{Name: "three.heic", Data: []byte("3")})
	require.NoError(t, draft.RemovePhoto(2))
	assert.Error(t, draft.RemovePhoto(5))

	d, err := c.Submit(context.Background(), draft)
	require.NoError(t, err)

	assert.Equal(t, []string{"d1_42_0.jpg", "d1_42_1.jpg"}, objects.names)
	want := []string{"https://files.example/defect-photos/d1_42_1.jpg?token=t"}
	assert.Equal(t, want, rows.defects[d.ID].PhotoURLs)
	assert.Equal(t, want, d.PhotoURLs)
	assert.Equal(t, []string{"insert defects", "update defects"}, rows.callLog())
}

func TestSubmit_InsertFailure(t *testing.T) {
	rows := newFakeRows()
	rows.insertErr[tableDefects] = errors.New("permission denied for table defects")
	objects := newFakeObjects()
	c := NewCreator(rows, objects, tech, nil)

	draft := validDraft()
	draft.AddPhoto(Photo{Name: "one.jpg"})
	_, err := c.Submit(context.Background(), draft)
	require.Error(t, err)
	assert.Zero(t, objects.uploads, "photos are only uploaded once the row exists")
}

func TestPriorities(t *testing.T) {
	require.Len(t, Priorities, 5)
	for i, p := range Priorities {
		assert.Equal(t, i+1, p.Value)
		assert.NotEmpty(t, p.Guidance)
	}
	assert.Contains(t, Assets, "FOAM MIX PLANT")
}
