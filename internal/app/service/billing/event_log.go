package billing

import (
	"context"
	"encoding/json"

	"gorm.io/datatypes"

	"github.com/fatflowers/fplcoach/internal/models"
	"github.com/fatflowers/fplcoach/pkg/logctx"
	"github.com/fatflowers/fplcoach/pkg/tool"
)

// saveLog asynchronously persists a billing event log. Nil input is ignored.
func (s *Service) saveLog(ctx context.Context, log *models.BillingEventLog) {
	if log == nil {
		return
	}
	if log.ID == "" {
		log.ID = tool.GenerateUUIDV7()
	}
	go func() {
		if err := s.db.Create(log).Error; err != nil {
			logctx.FromCtx(ctx, s.log).Errorf("failed to save billing event log: %v", err)
		}
	}()
}

func resultJSON(result map[string]any) *datatypes.JSON {
	b, err := json.Marshal(result)
	if err != nil {
		return nil
	}
	j := datatypes.JSON(b)
	return &j
}
