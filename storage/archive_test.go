package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leaguehub/roster-service/models"
)

type recordingUploader struct {
	key         string
	contentType string
	body        []byte
	err         error
}

func (u *recordingUploader) Upload(_ context.Context, key, contentType string, r io.Reader) (*UploadResult, error) {
	if u.err != nil {
		return nil, u.err
	}
	u.key, u.contentType = key, contentType
	u.body, _ = io.ReadAll(r)
	return &UploadResult{Key: key, Location: publicURL("https://cdn.example.org/league/", key)}, nil
}

func (u *recordingUploader) Delete(context.Context, string) error { return nil }

func (u *recordingUploader) GetPublicURL(key string) string { return key }

func TestDreamTeamArchiver_UploadsSnapshot(t *testing.T) {
	up := &recordingUploader{}
	layout, err := models.ParseFormation("1-2-3-1")
	require.NoError(t, err)

	view := models.DreamTeamView{
		DreamTeam: &models.DreamTeam{ID: 1, CategoryEditionID: 5, Jornada: 4, Formation: "1-2-3-1", Published: true},
		Layout:    layout,
		Occupancy: 0,
	}
	loc, err := NewDreamTeamArchiver(up).ArchiveDreamTeam(context.Background(), view)
	require.NoError(t, err)

	assert.Equal(t, "dreamteams/ce_5/jornada_4.json", up.key)
	assert.Equal(t, "application/json", up.contentType)
	assert.Equal(t, "https://cdn.example.org/league/dreamteams/ce_5/jornada_4.json", loc)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(up.body, &decoded))
	assert.Contains(t, decoded, "layout")
}

func TestDreamTeamArchiver_PropagatesUploadError(t *testing.T) {
	boom := errors.New("bucket gone")
	_, err := NewDreamTeamArchiver(&recordingUploader{err: boom}).ArchiveDreamTeam(context.Background(),
		models.DreamTeamView{DreamTeam: &models.DreamTeam{ID: 1}})
	assert.ErrorIs(t, err, boom)
}

func TestPublicURL(t *testing.T) {
	assert.Equal(t, "https://pub.r2.dev/a/b.json", publicURL("https://pub.r2.dev", "/a/b.json"))
	assert.Empty(t, publicURL("", "a"))
}
