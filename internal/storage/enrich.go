package storage

import (
	"context"

	"github.com/samber/lo"

	"duochat/internal/models"
)

// Enrich fills Sender and Receiver on msgs with one directory lookup.
// Users missing from the directory are projected with their id only.
func Enrich(ctx context.Context, users UserDirectory, msgs ...*models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	ids := lo.Uniq(lo.FlatMap(msgs, func(m *models.Message, _ int) []string {
		return []string{m.SenderID, m.ReceiverID}
	}))
	infos, err := users.GetMultipleBasicInfoByIDs(ctx, ids)
	if err != nil {
		return err
	}
	byID := lo.KeyBy(infos, func(info *models.UserBasicInfo) string { return info.ID })

	lookup := func(id string) *models.UserBasicInfo {
		if info, ok := byID[id]; ok {
			return info
		}
		return &models.UserBasicInfo{ID: id}
	}
	for _, m := range msgs {
		m.Sender = lookup(m.SenderID)
		m.Receiver = lookup(m.ReceiverID)
	}
	return nil
}
