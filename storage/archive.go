package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/leaguehub/roster-service/models"
)

// DreamTeamArchiver writes a JSON snapshot of a published dream team.
type DreamTeamArchiver struct {
	uploader FileUploader
}

func NewDreamTeamArchiver(uploader FileUploader) *DreamTeamArchiver {
	return &DreamTeamArchiver{uploader: uploader}
}

func DreamTeamKey(dt *models.DreamTeam) string {
	return fmt.Sprintf("dreamteams/ce_%d/jornada_%d.json", dt.CategoryEditionID, dt.Jornada)
}

// ArchiveDreamTeam uploads view and returns the public location of the snapshot.
func (a *DreamTeamArchiver) ArchiveDreamTeam(ctx context.Context, view models.DreamTeamView) (string, error) {
	if view.DreamTeam == nil {
		return "", fmt.Errorf("archive dream team: empty view")
	}
	body, err := json.Marshal(view)
	if err != nil {
		return "", fmt.Errorf("archive dream team %d: %w", view.DreamTeam.ID, err)
	}
	res, err := a.uploader.Upload(ctx, DreamTeamKey(view.DreamTeam), "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	return res.Location, nil
}
